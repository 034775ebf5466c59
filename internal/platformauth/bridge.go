// Package platformauth bridges the security core to a platform authenticator
// (biometric / device PIN). The bridge never touches key material: a
// successful ceremony only gates access to the random secret the envelope
// engine uses as its password.
package platformauth

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	ErrUnavailable    = errors.New("platform authenticator unavailable")
	ErrCeremonyFailed = errors.New("verification failed or was cancelled")
)

// CeremonyTimeout bounds a registration or assertion ceremony. A user or
// platform cancellation inside this window resolves to a clean failure.
const CeremonyTimeout = 30 * time.Second

// Credential is the opaque handle returned by a registration ceremony. The
// public key and counter are local bookkeeping only; nothing verifies them
// against a remote party in this trust model.
type Credential struct {
	CredentialID []byte    `json:"credential_id"`
	PublicKey    []byte    `json:"public_key"`
	Counter      uint32    `json:"counter"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Assertion is the outcome of a verification ceremony.
type Assertion struct {
	Verified bool
	Counter  uint32
}

// Authenticator is the platform collaborator: availability detection plus the
// attestation and assertion ceremonies, bound to a relying-party identity.
type Authenticator interface {
	Available(ctx context.Context) bool
	Register(ctx context.Context, identity string) (Credential, error)
	Verify(ctx context.Context, cred Credential) (Assertion, error)
}

type Bridge struct {
	auth   Authenticator
	logger *slog.Logger
}

func NewBridge(auth Authenticator, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{auth: auth, logger: logger}
}

// Available reports whether a platform authenticator can be used at all.
// Callers gate feature visibility on this rather than hitting ErrUnavailable
// at unlock time.
func (b *Bridge) Available(ctx context.Context) bool {
	return b != nil && b.auth != nil && b.auth.Available(ctx)
}

// RegisterCredential runs the attestation ceremony under the fixed timeout.
func (b *Bridge) RegisterCredential(ctx context.Context, identity string) (Credential, error) {
	if b == nil || b.auth == nil {
		return Credential{}, ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, CeremonyTimeout)
	defer cancel()

	cred, err := b.auth.Register(ctx, identity)
	if err != nil {
		return Credential{}, ErrCeremonyFailed
	}
	if cred.RegisteredAt.IsZero() {
		cred.RegisteredAt = time.Now().UTC()
	}
	return cred, nil
}

// RequestVerification runs the assertion ceremony. Success proves the same
// human who registered is present now. A non-incrementing replay counter is
// logged but tolerated: the local trust model has no remote verifier to
// protect, though a stricter deployment may want to hard-fail here.
func (b *Bridge) RequestVerification(ctx context.Context, cred Credential) (Assertion, error) {
	if b == nil || b.auth == nil {
		return Assertion{}, ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, CeremonyTimeout)
	defer cancel()

	assertion, err := b.auth.Verify(ctx, cred)
	if err != nil || !assertion.Verified {
		return Assertion{}, ErrCeremonyFailed
	}
	if assertion.Counter != 0 && assertion.Counter <= cred.Counter {
		b.logger.Warn("authenticator counter did not increase",
			slog.Uint64("stored", uint64(cred.Counter)),
			slog.Uint64("asserted", uint64(assertion.Counter)))
	}
	return assertion, nil
}
