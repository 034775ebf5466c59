package mnemonic

import (
	"errors"
	"strings"
	"testing"
)

const validPhrase = "leader monkey parrot ring guide accident before fence cannon height naive bean"

func TestGenerateWordCounts(t *testing.T) {
	cases := []struct {
		bits  int
		words int
	}{
		{128, 12},
		{256, 24},
	}
	for _, tc := range cases {
		phrase, err := Generate(tc.bits)
		if err != nil {
			t.Fatalf("generate %d bits: %v", tc.bits, err)
		}
		if got := len(strings.Fields(phrase)); got != tc.words {
			t.Fatalf("%d bits: expected %d words, got %d", tc.bits, tc.words, got)
		}
		if !Validate(phrase) {
			t.Fatalf("generated phrase failed validation: %s", phrase)
		}
	}
}

func TestGenerateRejectsOtherEntropySizes(t *testing.T) {
	for _, bits := range []int{0, 64, 160, 192, 224, 512} {
		if _, err := Generate(bits); !errors.Is(err, ErrEntropyBits) {
			t.Fatalf("bits=%d: expected ErrEntropyBits, got %v", bits, err)
		}
	}
}

func TestValidateNormalizesInput(t *testing.T) {
	messy := "  Leader  MONKEY parrot\tring guide accident before fence cannon height naive bean \n"
	if !Validate(messy) {
		t.Fatal("messy but valid phrase should validate")
	}
	if Normalize(messy) != validPhrase {
		t.Fatalf("normalize mismatch: %q", Normalize(messy))
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := []string{
		"",
		"leader monkey",
		validPhrase + " extra",
		strings.Replace(validPhrase, "monkey", "notaword", 1),
	}
	for _, candidate := range cases {
		if Validate(candidate) {
			t.Fatalf("expected rejection of %q", candidate)
		}
	}
}

func TestSingleWordMutationFailsChecksum(t *testing.T) {
	// Swapping one word for another wordlist word almost always breaks the
	// embedded checksum. "zoo" is on the wordlist, so only the checksum can
	// catch this.
	mutated := strings.Replace(validPhrase, "monkey", "zoo", 1)
	if Validate(mutated) {
		t.Fatal("mutated phrase should fail checksum validation")
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount(validPhrase); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
	if got := WordCount("   "); got != 0 {
		t.Fatalf("expected 0 for blank input, got %d", got)
	}
}

func TestSampleWordIndices(t *testing.T) {
	for run := 0; run < 50; run++ {
		indices, err := SampleWordIndices(24, 5)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if len(indices) != 5 {
			t.Fatalf("expected 5 indices, got %d", len(indices))
		}
		for i, idx := range indices {
			if idx < 0 || idx >= 24 {
				t.Fatalf("index %d out of range", idx)
			}
			if i > 0 && indices[i-1] >= idx {
				t.Fatalf("indices not strictly ascending: %v", indices)
			}
		}
	}
}

func TestSampleWordIndicesRejectsBadArgs(t *testing.T) {
	if _, err := SampleWordIndices(13, 3); !errors.Is(err, ErrInvalidWordCount) {
		t.Fatalf("expected ErrInvalidWordCount, got %v", err)
	}
	if _, err := SampleWordIndices(12, 0); !errors.Is(err, ErrSampleSize) {
		t.Fatalf("expected ErrSampleSize for zero, got %v", err)
	}
	if _, err := SampleWordIndices(12, 13); !errors.Is(err, ErrSampleSize) {
		t.Fatalf("expected ErrSampleSize for oversized sample, got %v", err)
	}
}
