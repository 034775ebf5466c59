// Package keys holds the signing key pair and its textual projections.
//
// Secret material lives in mutable byte slices so it can be zeroed on every
// exit path; the string projections are produced on demand and never cached.
package keys

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidPublicKey  = errors.New("invalid public key")
)

const keySize = 32

// Nominal string types keep the different textual key forms from being mixed
// up at compile time. Conversions go through the validated constructors below.
type (
	PrivateKeyHex string
	PublicKeyHex  string
	Nsec          string
	Npub          string
)

// KeyPair couples a secp256k1 private key with its x-only public projection.
// The public half is always recomputed from the private half, never trusted
// from storage.
type KeyPair struct {
	priv []byte
	pub  []byte
}

// Generate draws a fresh random private key.
func Generate() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	raw := priv.Serialize()
	defer zero(raw)
	priv.Zero()
	return FromPrivateKeyBytes(raw)
}

// FromPrivateKeyBytes builds a key pair from a raw 32-byte scalar and derives
// the public key from it.
func FromPrivateKeyBytes(priv []byte) (*KeyPair, error) {
	pub, err := DerivePublicKey(priv)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		priv: append([]byte(nil), priv...),
		pub:  pub,
	}, nil
}

// FromPrivateKeyHex parses a lowercase 64-character hex private key.
func FromPrivateKeyHex(h PrivateKeyHex) (*KeyPair, error) {
	s := string(h)
	if len(s) != keySize*2 || s != strings.ToLower(s) {
		return nil, ErrInvalidPrivateKey
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	defer zero(raw)
	return FromPrivateKeyBytes(raw)
}

// FromNsec decodes a bech32 nsec string into a key pair.
func FromNsec(s Nsec) (*KeyPair, error) {
	raw, err := DecodeNsec(s)
	if err != nil {
		return nil, err
	}
	defer zero(raw)
	return FromPrivateKeyBytes(raw)
}

// DerivePublicKey returns the x-only compressed public key for a 32-byte
// private scalar.
func DerivePublicKey(priv []byte) ([]byte, error) {
	if len(priv) != keySize || allZero(priv) {
		return nil, ErrInvalidPrivateKey
	}
	sk, pk := btcec.PrivKeyFromBytes(priv)
	defer sk.Zero()
	return schnorr.SerializePubKey(pk), nil
}

// PrivateKeyBytes returns a copy of the raw private key. Callers own the copy
// and are expected to zero it when done.
func (k *KeyPair) PrivateKeyBytes() []byte {
	return append([]byte(nil), k.priv...)
}

// PublicKeyBytes returns a copy of the 32-byte x-only public key.
func (k *KeyPair) PublicKeyBytes() []byte {
	return append([]byte(nil), k.pub...)
}

func (k *KeyPair) PrivateKeyHex() PrivateKeyHex {
	return PrivateKeyHex(hex.EncodeToString(k.priv))
}

func (k *KeyPair) PublicKeyHex() PublicKeyHex {
	return PublicKeyHex(hex.EncodeToString(k.pub))
}

func (k *KeyPair) Nsec() (Nsec, error) {
	return EncodeNsec(k.priv)
}

func (k *KeyPair) Npub() (Npub, error) {
	return EncodeNpub(k.pub)
}

// Clone returns an independent copy so callers can hold a snapshot without
// sharing the underlying buffers.
func (k *KeyPair) Clone() *KeyPair {
	return &KeyPair{
		priv: append([]byte(nil), k.priv...),
		pub:  append([]byte(nil), k.pub...),
	}
}

// Zero overwrites the private key bytes in place. The pair is unusable after.
func (k *KeyPair) Zero() {
	if k == nil {
		return
	}
	zero(k.priv)
	zero(k.pub)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
