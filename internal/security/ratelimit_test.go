package security

import (
	"testing"
	"time"
)

func TestEvaluateLockout(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		failed     int
		lastFailed time.Time
		now        time.Time
		wantLocked bool
		wantFails  int
	}{
		{
			name: "no failures",
			now:  base,
		},
		{
			name:       "below threshold recent failures stand",
			failed:     3,
			lastFailed: base.Add(-time.Minute),
			now:        base,
			wantFails:  3,
		},
		{
			name:       "at threshold inside window locks",
			failed:     5,
			lastFailed: base.Add(-time.Minute),
			now:        base,
			wantLocked: true,
			wantFails:  5,
		},
		{
			name:       "above threshold inside window locks",
			failed:     9,
			lastFailed: base.Add(-LockoutDuration + time.Second),
			now:        base,
			wantLocked: true,
			wantFails:  9,
		},
		{
			name:       "lockout window elapsed resets",
			failed:     5,
			lastFailed: base.Add(-LockoutDuration - time.Second),
			now:        base,
		},
		{
			name:       "old sub-threshold failures forgiven",
			failed:     2,
			lastFailed: base.Add(-ResetAfter - time.Minute),
			now:        base,
		},
		{
			name:       "recent sub-threshold failures kept",
			failed:     2,
			lastFailed: base.Add(-ResetAfter + time.Minute),
			now:        base,
			wantFails:  2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateLockout(tc.failed, tc.lastFailed, tc.now)
			if got.Locked != tc.wantLocked {
				t.Fatalf("locked=%v, want %v", got.Locked, tc.wantLocked)
			}
			if got.EffectiveFailures != tc.wantFails {
				t.Fatalf("effective failures=%d, want %d", got.EffectiveFailures, tc.wantFails)
			}
			if got.Locked && got.RetryAfter <= 0 {
				t.Fatalf("locked decision must carry a positive retry-after, got %v", got.RetryAfter)
			}
		})
	}
}

func TestRateLimitedErrorMessage(t *testing.T) {
	err := &RateLimitedError{RetryAfter: 90 * time.Second}
	if got := err.Error(); got != "too many failed attempts, try again in 90 seconds" {
		t.Fatalf("unexpected message: %q", got)
	}
	// Sub-second remainders round up to a positive wait.
	err = &RateLimitedError{RetryAfter: 200 * time.Millisecond}
	if got := err.Error(); got != "too many failed attempts, try again in 1 seconds" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestPINFormatErrorMessage(t *testing.T) {
	if got := (&PINFormatError{Length: 6}).Error(); got != "PIN must be exactly 6 digits" {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := (&PINFormatError{}).Error(); got != "PIN must be exactly 4 or 6 digits" {
		t.Fatalf("unexpected message: %q", got)
	}
}
