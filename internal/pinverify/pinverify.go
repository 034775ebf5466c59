// Package pinverify hashes a user PIN for fast verification ahead of the
// real unlock. The hash gates a UI decision only; the envelope's AEAD tag
// remains the sole authority for granting access to the key.
package pinverify

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is deliberately far below the envelope KDF cost:
	// this hash only answers "worth attempting a decrypt?".
	DefaultIterations = 100_000
	saltSize          = 16
	hashSize          = 32
)

var ErrEmptyPIN = errors.New("pin must not be empty")

// Verification is the persisted advisory hash for a PIN.
type Verification struct {
	Hash       []byte `json:"hash"`
	Salt       []byte `json:"salt"`
	Iterations int    `json:"iterations"`
}

// HashForVerification derives a fresh-salted PBKDF2 hash of the PIN.
func HashForVerification(pin string) (Verification, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return Verification{}, ErrEmptyPIN
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return Verification{}, err
	}
	return Verification{
		Hash:       pbkdf2.Key([]byte(pin), salt, DefaultIterations, hashSize, sha256.New),
		Salt:       salt,
		Iterations: DefaultIterations,
	}, nil
}

// Verify recomputes the hash with the stored salt and iteration count and
// compares in constant time, so timing does not reveal how many leading
// digits matched.
func Verify(pin string, v Verification) bool {
	pin = strings.TrimSpace(pin)
	if pin == "" || len(v.Hash) == 0 || len(v.Salt) == 0 || v.Iterations <= 0 {
		return false
	}
	computed := pbkdf2.Key([]byte(pin), v.Salt, v.Iterations, len(v.Hash), sha256.New)
	defer func() {
		for i := range computed {
			computed[i] = 0
		}
	}()
	return subtle.ConstantTimeCompare(computed, v.Hash) == 1
}
