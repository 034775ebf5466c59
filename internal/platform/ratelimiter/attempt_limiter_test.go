package ratelimiter

import (
	"testing"
	"time"
)

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *AttemptLimiter
	now := time.Now()
	for i := 0; i < 100; i++ {
		if !l.Allow("pin", now) {
			t.Fatal("nil limiter must allow all")
		}
	}
}

func TestInvalidArgsDisableLimiting(t *testing.T) {
	if New(0, 5, 0) != nil {
		t.Fatal("zero rps should disable the limiter")
	}
	if New(3, 0, 0) != nil {
		t.Fatal("zero burst should disable the limiter")
	}
}

func TestBurstThenRefill(t *testing.T) {
	l := New(1, 2, 0)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	if !l.Allow("pin", now) || !l.Allow("pin", now) {
		t.Fatal("burst of 2 should pass")
	}
	if l.Allow("pin", now) {
		t.Fatal("third immediate attempt should be denied")
	}
	// One token refills after one second at 1 rps.
	now = now.Add(time.Second)
	if !l.Allow("pin", now) {
		t.Fatal("attempt after refill should pass")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(1, 1, 0)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	if !l.Allow("pin", now) {
		t.Fatal("first pin attempt should pass")
	}
	if l.Allow("pin", now) {
		t.Fatal("second pin attempt should be denied")
	}
	if !l.Allow("webauthn", now) {
		t.Fatal("webauthn bucket should be untouched by pin attempts")
	}
}

func TestBlankKeyBypasses(t *testing.T) {
	l := New(1, 1, 0)
	now := time.Now()
	for i := 0; i < 10; i++ {
		if !l.Allow("  ", now) {
			t.Fatal("blank keys are not limited")
		}
	}
}

func TestIdleEntriesEvicted(t *testing.T) {
	l := New(1000, 1000, time.Minute)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	l.Allow("stale", now)
	// Drive enough hits on a fresh key to cross an eviction boundary after
	// the stale entry's TTL has lapsed.
	now = now.Add(2 * time.Minute)
	for i := 0; i < 512; i++ {
		l.Allow("fresh", now)
	}

	l.mu.Lock()
	_, ok := l.byKey["stale"]
	l.mu.Unlock()
	if ok {
		t.Fatal("idle entry should have been evicted")
	}
}
