package security

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoStoredKey    = errors.New("no key has been stored")
	ErrMethodMismatch = errors.New("stored auth method does not match the requested unlock")
	// ErrIncorrectPIN deliberately carries no detail about which check failed.
	ErrIncorrectPIN = errors.New("incorrect PIN")
	// ErrThrottled is the in-process pacing guard, distinct from the
	// persisted lockout below.
	ErrThrottled = errors.New("unlock attempts arriving too fast")
)

// PINFormatError rejects a malformed PIN before any storage or crypto work.
type PINFormatError struct {
	Length int
}

func (e *PINFormatError) Error() string {
	if e.Length == 0 {
		return "PIN must be exactly 4 or 6 digits"
	}
	return fmt.Sprintf("PIN must be exactly %d digits", e.Length)
}

// RateLimitedError refuses an unlock while the lockout window is active.
// It names the wait explicitly: a lockout refusal is not a guessing signal,
// unlike ErrIncorrectPIN.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	secs := int(e.RetryAfter.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("too many failed attempts, try again in %d seconds", secs)
}
