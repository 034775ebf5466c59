// Package nip49 implements the password-encrypted envelope format used to
// keep the signing key and recovery phrase at rest: an NFKC-normalized
// password stretched through scrypt, XChaCha20-Poly1305 over the plaintext,
// and the whole thing serialized as a bech32 string.
//
// Wire layout of the data part, bit-exact and version-gated:
//
//	[version:1][logN:1][salt:16][nonce:24][aad:1][ciphertext+tag:N]
package nip49

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

// Envelope prefixes. Key and mnemonic envelopes are deliberately not
// interchangeable; decoding checks the expected prefix.
const (
	PrefixKey      = "ncryptsec"
	PrefixMnemonic = "ncryptmne"
)

const (
	envelopeVersion = 0x02
	saltSize        = 16
	nonceSize       = chacha20poly1305.NonceSizeX
	scryptR         = 8
	scryptP         = 1
)

// Work factor presets. The value W encodes a cost of 2^W scrypt iterations;
// it is stored in the envelope so under-strength envelopes can be detected
// later and re-encrypted.
const (
	// WorkFactorStrong is the default for user-chosen PINs and passwords.
	WorkFactorStrong uint8 = 16
	// WorkFactorMinimal exists only for the explicitly-insecure storage mode
	// where the password is a fixed public constant and KDF cost buys nothing.
	WorkFactorMinimal uint8 = 1
)

// Associated-data byte. Key envelopes carry a key-security flag, mnemonic
// envelopes a fixed marker.
const (
	KeySecurityInsecure    byte = 0x00
	KeySecuritySecure      byte = 0x01
	KeySecurityNotTracked  byte = 0x02
	MnemonicAssociatedData byte = 0xff
)

// ErrDecryptFailed is the single opaque failure for every decryption problem:
// wrong prefix, unknown version, truncated data or AEAD tag mismatch. Not
// distinguishing them keeps the error from acting as an oracle.
var ErrDecryptFailed = errors.New("incorrect password or corrupted data")

var errBadWorkFactor = errors.New("work factor out of range")

// Encrypt seals plaintext under the password at the given work factor and
// returns a bech32 envelope with the given prefix. Salt and nonce are fresh
// per call, so encrypting the same plaintext twice yields distinct envelopes.
func Encrypt(plaintext []byte, password string, workFactor uint8, aad byte, prefix string) (string, error) {
	if workFactor == 0 || workFactor > 22 {
		return "", errBadWorkFactor
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key, err := deriveKey(password, salt, workFactor)
	if err != nil {
		return "", err
	}
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	payload := make([]byte, 0, 2+saltSize+nonceSize+1+len(plaintext)+aead.Overhead())
	payload = append(payload, envelopeVersion, workFactor)
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, aad)
	payload = aead.Seal(payload, nonce, plaintext, []byte{aad})

	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(prefix, conv)
}

// Decrypt opens an envelope with the password. It fails closed: any prefix,
// version, structure or authentication problem surfaces as ErrDecryptFailed
// with no partial plaintext.
func Decrypt(envelope, password, prefix string) ([]byte, error) {
	payload, err := decodePayload(envelope, prefix)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	if len(payload) < 2+saltSize+nonceSize+1+chacha20poly1305.Overhead {
		return nil, ErrDecryptFailed
	}
	if payload[0] != envelopeVersion {
		return nil, ErrDecryptFailed
	}
	workFactor := payload[1]
	if workFactor == 0 || workFactor > 22 {
		return nil, ErrDecryptFailed
	}

	salt := payload[2 : 2+saltSize]
	nonce := payload[2+saltSize : 2+saltSize+nonceSize]
	aad := payload[2+saltSize+nonceSize]
	ciphertext := payload[2+saltSize+nonceSize+1:]

	key, err := deriveKey(password, salt, workFactor)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte{aad})
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// WorkFactor reports the stored work factor of an envelope without
// decrypting it, so callers can flag under-strength envelopes.
func WorkFactor(envelope, prefix string) (uint8, error) {
	payload, err := decodePayload(envelope, prefix)
	if err != nil {
		return 0, err
	}
	if len(payload) < 2 || payload[0] != envelopeVersion {
		return 0, fmt.Errorf("unsupported envelope")
	}
	return payload[1], nil
}

func decodePayload(envelope, prefix string) ([]byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(envelope)
	if err != nil {
		return nil, err
	}
	if hrp != prefix {
		return nil, fmt.Errorf("prefix mismatch: %q", hrp)
	}
	return bech32.ConvertBits(data, 5, 8, false)
}

func deriveKey(password string, salt []byte, workFactor uint8) ([]byte, error) {
	normalized := norm.NFKC.Bytes([]byte(password))
	defer zeroBytes(normalized)
	return scrypt.Key(normalized, salt, 1<<uint(workFactor), scryptR, scryptP, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
