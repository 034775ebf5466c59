// Package mnemonic generates and validates BIP-39 recovery phrases and
// derives the wallet signing key from them over the NIP-06 path.
package mnemonic

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sort"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

var (
	ErrEntropyBits      = errors.New("entropy size must be 128 or 256 bits")
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
	ErrInvalidWordCount = errors.New("mnemonic word count must be 12, 15, 18, 21 or 24")
	ErrSampleSize       = errors.New("sample size must be positive and not exceed the word count")
)

var validWordCounts = map[int]struct{}{12: {}, 15: {}, 18: {}, 21: {}, 24: {}}

// Generate draws fresh entropy of the requested size and maps it to a phrase.
// 128 bits yields 12 words, 256 bits yields 24.
func Generate(entropyBits int) (string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return "", ErrEntropyBits
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// Normalize trims the phrase, lowercases it and collapses internal whitespace
// to single spaces. Validation and derivation both operate on this form, so a
// phrase validates and derives identically however the user typed it.
func Normalize(candidate string) string {
	return strings.Join(strings.Fields(strings.ToLower(candidate)), " ")
}

// Validate reports whether the candidate is a well-formed BIP-39 phrase:
// accepted word count, every word in the wordlist, checksum intact.
func Validate(candidate string) bool {
	normalized := Normalize(candidate)
	if normalized == "" {
		return false
	}
	if _, ok := validWordCounts[len(strings.Split(normalized, " "))]; !ok {
		return false
	}
	return bip39.IsMnemonicValid(normalized)
}

// WordCount returns the number of words in the normalized phrase.
func WordCount(candidate string) int {
	normalized := Normalize(candidate)
	if normalized == "" {
		return 0
	}
	return len(strings.Split(normalized, " "))
}

// SampleWordIndices picks sample distinct random positions in [0, wordCount),
// sorted ascending. Backup verification uses this to challenge the user to
// retype specific words of the phrase.
func SampleWordIndices(wordCount, sample int) ([]int, error) {
	if _, ok := validWordCounts[wordCount]; !ok {
		return nil, ErrInvalidWordCount
	}
	if sample <= 0 || sample > wordCount {
		return nil, ErrSampleSize
	}

	picked := make(map[int]struct{}, sample)
	for len(picked) < sample {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(wordCount)))
		if err != nil {
			return nil, err
		}
		picked[int(n.Int64())] = struct{}{}
	}

	out := make([]int, 0, sample)
	for i := range picked {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}
