// Package securestore persists the single security record per installation:
// encrypted envelopes, verification hashes and unlock preferences. Plaintext
// secrets never pass through this package.
package securestore

import (
	"context"
	"time"

	"github.com/PlebeiusGaragicus/plebtap/internal/pinverify"
	"github.com/PlebeiusGaragicus/plebtap/internal/platformauth"
)

// SchemaVersion gates record parsing; unknown future versions fail closed.
const SchemaVersion = 1

// AuthMethod names how the stored key is protected.
type AuthMethod string

const (
	MethodUninitialized AuthMethod = ""
	MethodNone          AuthMethod = "none"
	MethodPIN           AuthMethod = "pin"
	MethodWebAuthn      AuthMethod = "webauthn"
)

// PlatformKey is the random symmetric secret a platform-authenticator
// ceremony gates. It stands in for a password; it is not the signing key.
type PlatformKey struct {
	KeyMaterial []byte    `json:"key_material"`
	CreatedAt   time.Time `json:"created_at"`
}

// Preferences carries unlock policy plus the persisted rate-limit counters.
type Preferences struct {
	AuthMethod          AuthMethod `json:"auth_method"`
	PINLength           int        `json:"pin_length"`
	AutoLockEnabled     bool       `json:"auto_lock_enabled"`
	LastUnlockAt        time.Time  `json:"last_unlock_at"`
	FailedPINAttempts   int        `json:"failed_pin_attempts"`
	LastFailedAttemptAt time.Time  `json:"last_failed_attempt_at"`
}

// SecurityRecord is the one persisted document. Envelope fields hold bech32
// ncryptsec/ncryptmne strings; empty means absent. Mutations go through
// read-full/merge/write-full, never partial updates.
type SecurityRecord struct {
	SchemaVersion      int                      `json:"schema_version"`
	PublicKeyHex       string                   `json:"public_key_hex"`
	EncryptedKey       string                   `json:"encrypted_key"`
	EncryptedMnemonic  string                   `json:"encrypted_mnemonic"`
	PINVerification    *pinverify.Verification  `json:"pin_verification,omitempty"`
	PlatformCredential *platformauth.Credential `json:"platform_credential,omitempty"`
	PlatformKey        *PlatformKey             `json:"platform_key,omitempty"`
	Preferences        Preferences              `json:"preferences"`
}

// DefaultRecord is the fresh-install state: nothing protected yet.
func DefaultRecord() SecurityRecord {
	return SecurityRecord{
		SchemaVersion: SchemaVersion,
		Preferences: Preferences{
			AuthMethod: MethodUninitialized,
		},
	}
}

// HasKey reports whether an encrypted key has been stored.
func (r SecurityRecord) HasKey() bool {
	return r.EncryptedKey != ""
}

// Store is the durable collaborator. Read returns DefaultRecord when nothing
// has been persisted; it never fails on absence. The whole record is read and
// written as one unit.
type Store interface {
	Read(ctx context.Context) (SecurityRecord, error)
	Write(ctx context.Context, record SecurityRecord) error
	Delete(ctx context.Context) error
}
