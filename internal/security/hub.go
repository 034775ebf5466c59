package security

import (
	"sync"
	"time"

	"github.com/PlebeiusGaragicus/plebtap/internal/keys"
	"github.com/PlebeiusGaragicus/plebtap/internal/securestore"
)

// Status is the read-only snapshot the rest of the application observes.
// The Manager is the sole writer.
type Status struct {
	Method            securestore.AuthMethod
	HasKey            bool
	Unlocked          bool
	PublicKeyHex      keys.PublicKeyHex
	FailedPINAttempts int
	LockoutRemaining  time.Duration
	AutoLockEnabled   bool
	UnlockExpiresAt   time.Time
	WeakEnvelope      bool
}

// StateHub broadcasts Status snapshots to subscribers. Slow subscribers are
// dropped rather than blocking the state machine.
type StateHub struct {
	mu      sync.Mutex
	current Status
	subs    map[int]chan Status
	nextSub int
}

func NewStateHub() *StateHub {
	return &StateHub{subs: make(map[int]chan Status)}
}

func (h *StateHub) Publish(s Status) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = s
	for id, ch := range h.subs {
		select {
		case ch <- s:
		default:
			close(ch)
			delete(h.subs, id)
		}
	}
}

// Current returns the latest published snapshot.
func (h *StateHub) Current() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Subscribe returns the current snapshot, a channel of future snapshots and
// a cancel func that releases the subscription.
func (h *StateHub) Subscribe() (Status, <-chan Status, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSub
	h.nextSub++
	ch := make(chan Status, 16)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			close(sub)
			delete(h.subs, id)
		}
	}
	return h.current, ch, cancel
}
