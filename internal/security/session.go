package security

import (
	"time"

	"github.com/PlebeiusGaragicus/plebtap/internal/keys"
)

// UnlockSession holds the only plaintext copy of the key outside brief
// decryption scopes. It lives in memory only, owned exclusively by the
// Manager; everything handed out is a copy.
type UnlockSession struct {
	key       *keys.KeyPair
	mnemonic  []byte
	openedAt  time.Time
	expiresAt time.Time // zero means no expiry
}

func newUnlockSession(key *keys.KeyPair, mnemonic string, openedAt, expiresAt time.Time) *UnlockSession {
	s := &UnlockSession{
		key:       key,
		openedAt:  openedAt,
		expiresAt: expiresAt,
	}
	if mnemonic != "" {
		s.mnemonic = []byte(mnemonic)
	}
	return s
}

func (s *UnlockSession) expired(now time.Time) bool {
	return s != nil && !s.expiresAt.IsZero() && now.After(s.expiresAt)
}

// zero overwrites the plaintext fields before the session is dropped, rather
// than waiting on the garbage collector.
func (s *UnlockSession) zero() {
	if s == nil {
		return
	}
	s.key.Zero()
	s.key = nil
	for i := range s.mnemonic {
		s.mnemonic[i] = 0
	}
	s.mnemonic = nil
}
