package platformauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"time"
)

// LocalAuthenticator is an in-process authenticator used by headless builds
// and tests. It performs no user interaction: every ceremony succeeds unless
// configured otherwise, and counters increment like a real device.
type LocalAuthenticator struct {
	mu       sync.Mutex
	counters map[string]uint32
	denyNext bool
	offline  bool
}

func NewLocalAuthenticator() *LocalAuthenticator {
	return &LocalAuthenticator{counters: make(map[string]uint32)}
}

// DenyNext makes the next ceremony fail, simulating a cancelled prompt.
func (a *LocalAuthenticator) DenyNext() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.denyNext = true
}

// SetOffline toggles availability.
func (a *LocalAuthenticator) SetOffline(offline bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offline = offline
}

func (a *LocalAuthenticator) Available(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.offline
}

func (a *LocalAuthenticator) Register(ctx context.Context, identity string) (Credential, error) {
	if err := a.consumeDenial(ctx); err != nil {
		return Credential{}, err
	}
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Credential{}, err
	}
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return Credential{}, err
	}

	a.mu.Lock()
	a.counters[string(id)] = 0
	a.mu.Unlock()

	return Credential{
		CredentialID: id,
		PublicKey:    pub,
		Counter:      0,
		RegisteredAt: time.Now().UTC(),
	}, nil
}

func (a *LocalAuthenticator) Verify(ctx context.Context, cred Credential) (Assertion, error) {
	if err := a.consumeDenial(ctx); err != nil {
		return Assertion{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.counters[string(cred.CredentialID)]; !ok {
		return Assertion{}, ErrCeremonyFailed
	}
	a.counters[string(cred.CredentialID)]++
	return Assertion{Verified: true, Counter: a.counters[string(cred.CredentialID)]}, nil
}

func (a *LocalAuthenticator) consumeDenial(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.offline {
		return ErrUnavailable
	}
	if a.denyNext {
		a.denyNext = false
		return ErrCeremonyFailed
	}
	return nil
}
