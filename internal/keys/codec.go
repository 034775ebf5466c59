package keys

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Bech32 prefixes for the two key encodings. Feeding one into the other's
// decoder fails with ErrWrongPrefix rather than silently misinterpreting.
const (
	PrefixNsec = "nsec"
	PrefixNpub = "npub"
)

var (
	ErrInvalidEncoding = errors.New("invalid bech32 encoding")
	ErrWrongPrefix     = errors.New("unexpected bech32 prefix")
)

// EncodeNsec encodes a raw 32-byte private key as an nsec string.
func EncodeNsec(priv []byte) (Nsec, error) {
	if len(priv) != keySize {
		return "", ErrInvalidPrivateKey
	}
	s, err := encodeKey(PrefixNsec, priv)
	return Nsec(s), err
}

// EncodeNpub encodes a raw 32-byte x-only public key as an npub string.
func EncodeNpub(pub []byte) (Npub, error) {
	if len(pub) != keySize {
		return "", ErrInvalidPublicKey
	}
	s, err := encodeKey(PrefixNpub, pub)
	return Npub(s), err
}

// DecodeNsec decodes an nsec string back to raw private key bytes.
func DecodeNsec(s Nsec) ([]byte, error) {
	return decodeKey(PrefixNsec, string(s))
}

// DecodeNpub decodes an npub string back to raw public key bytes.
func DecodeNpub(s Npub) ([]byte, error) {
	return decodeKey(PrefixNpub, string(s))
}

func encodeKey(hrp string, raw []byte) (string, error) {
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, conv)
}

func decodeKey(wantHRP, s string) ([]byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if hrp != wantHRP {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongPrefix, hrp, wantHRP)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("%w: payload is %d bytes", ErrInvalidEncoding, len(raw))
	}
	return raw, nil
}
