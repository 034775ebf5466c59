package security

import "time"

// PIN guessing limits. The counters live in the persisted record so a
// restart does not clear an active lockout.
const (
	MaxPINAttempts  = 5
	LockoutDuration = 5 * time.Minute
	// ResetAfter is the longer rolling window after which isolated failures
	// below the lockout threshold are forgiven. Whether to apply that
	// forgiveness is the caller's policy; EvaluateLockout only reports it.
	ResetAfter = time.Hour
)

// LockoutDecision is the outcome of checking the counters before a PIN
// unlock attempt.
type LockoutDecision struct {
	// Locked means the attempt must be refused without touching the KDF.
	Locked bool
	// RetryAfter is how long until the lockout window elapses.
	RetryAfter time.Duration
	// EffectiveFailures is the failure count after window expiry: a full
	// lockout whose window has elapsed resets to zero, and sub-threshold
	// failures older than ResetAfter are forgiven.
	EffectiveFailures int
}

// EvaluateLockout computes the lockout state from the persisted counters at
// now. It never mutates anything; callers persist the reset alongside the
// outcome of the attempt they go on to make.
func EvaluateLockout(failedAttempts int, lastFailedAt, now time.Time) LockoutDecision {
	if failedAttempts <= 0 || lastFailedAt.IsZero() {
		return LockoutDecision{}
	}
	elapsed := now.Sub(lastFailedAt)

	if failedAttempts >= MaxPINAttempts {
		if elapsed < LockoutDuration {
			return LockoutDecision{
				Locked:            true,
				RetryAfter:        LockoutDuration - elapsed,
				EffectiveFailures: failedAttempts,
			}
		}
		return LockoutDecision{}
	}

	if elapsed >= ResetAfter {
		return LockoutDecision{}
	}
	return LockoutDecision{EffectiveFailures: failedAttempts}
}
