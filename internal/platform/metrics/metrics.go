// Package metrics exposes Prometheus collectors for the key-custody core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the security collectors so callers register them once.
type Set struct {
	UnlockAttempts  *prometheus.CounterVec
	LockoutRefusals prometheus.Counter
	KDFDuration     prometheus.Histogram
	SessionUnlocked prometheus.Gauge
}

// New builds the collectors and registers them on reg when non-nil.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		UnlockAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plebtap",
			Subsystem: "security",
			Name:      "unlock_attempts_total",
			Help:      "Unlock attempts by auth method and result.",
		}, []string{"method", "result"}),
		LockoutRefusals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plebtap",
			Subsystem: "security",
			Name:      "lockout_refusals_total",
			Help:      "PIN unlock attempts refused while the lockout window was active.",
		}),
		KDFDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plebtap",
			Subsystem: "security",
			Name:      "kdf_duration_seconds",
			Help:      "Wall time spent stretching passwords for envelope operations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		SessionUnlocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plebtap",
			Subsystem: "security",
			Name:      "session_unlocked",
			Help:      "1 while an unlock session is open, else 0.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.UnlockAttempts, s.LockoutRefusals, s.KDFDuration, s.SessionUnlocked)
	}
	return s
}

// Attempt records one unlock attempt outcome. Nil-safe.
func (s *Set) Attempt(method, result string) {
	if s == nil {
		return
	}
	s.UnlockAttempts.WithLabelValues(method, result).Inc()
}

// Refused records a lockout refusal. Nil-safe.
func (s *Set) Refused() {
	if s == nil {
		return
	}
	s.LockoutRefusals.Inc()
}

// SetUnlocked flips the session gauge. Nil-safe.
func (s *Set) SetUnlocked(unlocked bool) {
	if s == nil {
		return
	}
	if unlocked {
		s.SessionUnlocked.Set(1)
	} else {
		s.SessionUnlocked.Set(0)
	}
}

// ObserveKDF records one KDF stretch duration in seconds. Nil-safe.
func (s *Set) ObserveKDF(seconds float64) {
	if s == nil {
		return
	}
	s.KDFDuration.Observe(seconds)
}
