// Package security orchestrates the key-custody lifecycle: choosing an auth
// method, sealing the key and recovery phrase into envelopes, unlocking them
// into a time-bounded in-memory session, and enforcing the PIN lockout.
package security

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PlebeiusGaragicus/plebtap/internal/keys"
	"github.com/PlebeiusGaragicus/plebtap/internal/mnemonic"
	"github.com/PlebeiusGaragicus/plebtap/internal/nip49"
	"github.com/PlebeiusGaragicus/plebtap/internal/pinverify"
	"github.com/PlebeiusGaragicus/plebtap/internal/platform/metrics"
	"github.com/PlebeiusGaragicus/plebtap/internal/platform/ratelimiter"
	"github.com/PlebeiusGaragicus/plebtap/internal/platformauth"
	"github.com/PlebeiusGaragicus/plebtap/internal/securestore"
)

// insecurePassword is the fixed, publicly known password for the explicit
// "no protection" mode. It exists only to keep the envelope format uniform
// so the secure-later upgrade path reuses the same decrypt/re-encrypt flow.
// It provides no confidentiality and must not be mistaken for a boundary.
const insecurePassword = "plebtap-insecure-storage"

// DefaultSessionDuration bounds an unlock session when auto-lock is enabled.
const DefaultSessionDuration = 5 * time.Minute

// PIN is the user-chosen numeric unlock secret. The nominal type keeps it from
// being passed where a password or key string is expected.
type PIN string

type Config struct {
	// SessionDuration applies when the record has auto-lock enabled.
	SessionDuration time.Duration
	// AutoLock is the initial preference written at setup.
	AutoLock bool
	// Work factors for envelope encryption.
	StrongWorkFactor  uint8
	MinimalWorkFactor uint8
	// In-process pacing of unlock attempts; zero disables the throttle.
	UnlockRPS   float64
	UnlockBurst int
}

func DefaultConfig() Config {
	return Config{
		SessionDuration:   DefaultSessionDuration,
		StrongWorkFactor:  nip49.WorkFactorStrong,
		MinimalWorkFactor: nip49.WorkFactorMinimal,
		UnlockRPS:         3,
		UnlockBurst:       5,
	}
}

// Manager is the single authoritative security state machine. All mutations
// of the persisted record and the in-memory session pass through it.
type Manager struct {
	mu      sync.Mutex
	store   securestore.Store
	bridge  *platformauth.Bridge
	limiter *ratelimiter.AttemptLimiter
	metrics *metrics.Set
	logger  *slog.Logger
	cfg     Config
	hub     *StateHub

	session   *UnlockSession
	lockTimer *time.Timer
	now       func() time.Time
}

func NewManager(store securestore.Store, bridge *platformauth.Bridge, cfg Config, logger *slog.Logger, set *metrics.Set) *Manager {
	return newManagerWithClock(store, bridge, cfg, logger, set, time.Now)
}

func newManagerWithClock(store securestore.Store, bridge *platformauth.Bridge, cfg Config, logger *slog.Logger, set *metrics.Set, now func() time.Time) *Manager {
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = DefaultSessionDuration
	}
	if cfg.StrongWorkFactor == 0 {
		cfg.StrongWorkFactor = nip49.WorkFactorStrong
	}
	if cfg.MinimalWorkFactor == 0 {
		cfg.MinimalWorkFactor = nip49.WorkFactorMinimal
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		bridge:  bridge,
		limiter: ratelimiter.New(cfg.UnlockRPS, cfg.UnlockBurst, 0),
		metrics: set,
		logger:  logger,
		cfg:     cfg,
		hub:     NewStateHub(),
		now:     now,
	}
}

// Hub exposes the observable state container. Read-only outside the Manager.
func (m *Manager) Hub() *StateHub {
	return m.hub
}

// ---- setup ----

// SetupPIN protects the key (and optional recovery phrase) under a numeric
// PIN of exactly 4 or 6 digits. The just-entered PIN is proof of possession,
// so the session opens immediately.
func (m *Manager) SetupPIN(ctx context.Context, kp *keys.KeyPair, phrase string, pin PIN) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.setupPINLocked(ctx, kp, phrase, pin)
	return err
}

func (m *Manager) setupPINLocked(ctx context.Context, kp *keys.KeyPair, phrase string, pin PIN) (securestore.SecurityRecord, error) {
	pin = PIN(strings.TrimSpace(string(pin)))
	if err := validatePINFormat(pin, 0); err != nil {
		return securestore.SecurityRecord{}, err
	}
	verification, err := pinverify.HashForVerification(string(pin))
	if err != nil {
		return securestore.SecurityRecord{}, err
	}

	encKey, encMnemonic, err := m.sealMaterial(kp, phrase, string(pin), m.cfg.StrongWorkFactor, nip49.KeySecuritySecure)
	if err != nil {
		return securestore.SecurityRecord{}, err
	}

	record, err := m.store.Read(ctx)
	if err != nil {
		return securestore.SecurityRecord{}, err
	}
	now := m.now()
	record.PublicKeyHex = string(kp.PublicKeyHex())
	record.EncryptedKey = encKey
	record.EncryptedMnemonic = encMnemonic
	record.PINVerification = &verification
	record.PlatformCredential = nil
	record.PlatformKey = nil
	record.Preferences = securestore.Preferences{
		AuthMethod:      securestore.MethodPIN,
		PINLength:       len(pin),
		AutoLockEnabled: m.cfg.AutoLock,
		LastUnlockAt:    now,
	}
	if err := m.store.Write(ctx, record); err != nil {
		return securestore.SecurityRecord{}, err
	}

	m.logger.Info("pin protection configured", "pin_length", len(pin))
	m.openSessionLocked(kp.Clone(), mnemonic.Normalize(phrase), record)
	return record, nil
}

// SetupWebAuthn registers a platform credential and protects the key under a
// fresh random 256-bit secret that the credential gates.
func (m *Manager) SetupWebAuthn(ctx context.Context, kp *keys.KeyPair, phrase, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.bridge.RegisterCredential(ctx, identity)
	if err != nil {
		return err
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	defer zeroBytes(secret)

	encKey, encMnemonic, err := m.sealMaterial(kp, phrase, hex.EncodeToString(secret), m.cfg.StrongWorkFactor, nip49.KeySecuritySecure)
	if err != nil {
		return err
	}

	record, err := m.store.Read(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	record.PublicKeyHex = string(kp.PublicKeyHex())
	record.EncryptedKey = encKey
	record.EncryptedMnemonic = encMnemonic
	record.PINVerification = nil
	record.PlatformCredential = &cred
	record.PlatformKey = &securestore.PlatformKey{
		KeyMaterial: append([]byte(nil), secret...),
		CreatedAt:   now,
	}
	record.Preferences = securestore.Preferences{
		AuthMethod:      securestore.MethodWebAuthn,
		AutoLockEnabled: m.cfg.AutoLock,
		LastUnlockAt:    now,
	}
	if err := m.store.Write(ctx, record); err != nil {
		return err
	}

	m.logger.Info("platform credential configured", "credential_id", hex.EncodeToString(cred.CredentialID))
	m.openSessionLocked(kp.Clone(), mnemonic.Normalize(phrase), record)
	return nil
}

// StoreInsecure persists the key under the fixed public constant at minimal
// work factor. This provides no confidentiality whatsoever; it only keeps
// the storage format uniform for the secure-later upgrade path.
func (m *Manager) StoreInsecure(ctx context.Context, kp *keys.KeyPair, phrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	encKey, encMnemonic, err := m.sealMaterial(kp, phrase, insecurePassword, m.cfg.MinimalWorkFactor, nip49.KeySecurityInsecure)
	if err != nil {
		return err
	}

	record, err := m.store.Read(ctx)
	if err != nil {
		return err
	}
	record.PublicKeyHex = string(kp.PublicKeyHex())
	record.EncryptedKey = encKey
	record.EncryptedMnemonic = encMnemonic
	record.PINVerification = nil
	record.PlatformCredential = nil
	record.PlatformKey = nil
	record.Preferences = securestore.Preferences{
		AuthMethod:   securestore.MethodNone,
		LastUnlockAt: m.now(),
	}
	if err := m.store.Write(ctx, record); err != nil {
		return err
	}

	m.logger.Warn("key stored without protection")
	m.openSessionLocked(kp.Clone(), mnemonic.Normalize(phrase), record)
	return nil
}

// ---- unlock ----

// UnlockWithPIN checks the lockout counters, the advisory hash and finally
// the envelope's AEAD tag, in that order. Only the AEAD tag grants access.
// The returned key pair is the caller's copy to zero.
func (m *Manager) UnlockWithPIN(ctx context.Context, pin PIN) (*keys.KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kp, phrase, record, err := m.unlockPINLocked(ctx, pin)
	if err != nil {
		return nil, err
	}
	m.openSessionLocked(kp, phrase, record)
	return kp.Clone(), nil
}

func (m *Manager) unlockPINLocked(ctx context.Context, pin PIN) (*keys.KeyPair, string, securestore.SecurityRecord, error) {
	var none securestore.SecurityRecord
	now := m.now()
	if !m.limiter.Allow("pin", now) {
		return nil, "", none, ErrThrottled
	}

	// Malformed input is rejected before storage or crypto are touched.
	pin = PIN(strings.TrimSpace(string(pin)))
	if err := validatePINFormat(pin, 0); err != nil {
		return nil, "", none, err
	}

	record, err := m.store.Read(ctx)
	if err != nil {
		return nil, "", none, err
	}
	if !record.HasKey() {
		return nil, "", none, ErrNoStoredKey
	}
	if record.Preferences.AuthMethod != securestore.MethodPIN {
		return nil, "", none, ErrMethodMismatch
	}

	decision := EvaluateLockout(record.Preferences.FailedPINAttempts, record.Preferences.LastFailedAttemptAt, now)
	if decision.Locked {
		m.metrics.Refused()
		m.logger.Warn("pin unlock refused by lockout", "retry_after", decision.RetryAfter)
		return nil, "", none, &RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	// A well-formed PIN of the wrong stored length is a guess like any other:
	// reporting the length would leak it, so it lands in the same generic
	// failure as a hash mismatch and counts against the lockout.
	if record.PINVerification == nil ||
		len(pin) != record.Preferences.PINLength ||
		!pinverify.Verify(string(pin), *record.PINVerification) {
		record.Preferences.FailedPINAttempts = decision.EffectiveFailures + 1
		record.Preferences.LastFailedAttemptAt = now
		if err := m.store.Write(ctx, record); err != nil {
			return nil, "", none, err
		}
		m.metrics.Attempt("pin", "failure")
		m.publishRecordLocked(record)
		return nil, "", none, ErrIncorrectPIN
	}

	// The hash matched, but it is only a fail-fast gate; the AEAD tag below
	// is the sole source of truth for granting access.
	priv, err := m.openEnvelope(record.EncryptedKey, string(pin))
	if err != nil {
		m.metrics.Attempt("pin", "failure")
		return nil, "", none, err
	}
	defer zeroBytes(priv)

	kp, err := keys.FromPrivateKeyBytes(priv)
	if err != nil {
		return nil, "", none, err
	}
	phrase := m.recoverMnemonic(record.EncryptedMnemonic, string(pin))

	record.Preferences.FailedPINAttempts = 0
	record.Preferences.LastFailedAttemptAt = time.Time{}
	record.Preferences.LastUnlockAt = now
	if err := m.store.Write(ctx, record); err != nil {
		kp.Zero()
		return nil, "", none, err
	}
	m.metrics.Attempt("pin", "success")
	return kp, phrase, record, nil
}

// UnlockWithWebAuthn runs the platform assertion ceremony and, on success,
// decrypts with the stored random secret. Biometric attempts are not rate
// limited; the platform already gates them.
func (m *Manager) UnlockWithWebAuthn(ctx context.Context) (*keys.KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kp, phrase, record, err := m.unlockWebAuthnLocked(ctx)
	if err != nil {
		return nil, err
	}
	m.openSessionLocked(kp, phrase, record)
	return kp.Clone(), nil
}

func (m *Manager) unlockWebAuthnLocked(ctx context.Context) (*keys.KeyPair, string, securestore.SecurityRecord, error) {
	var none securestore.SecurityRecord
	record, err := m.store.Read(ctx)
	if err != nil {
		return nil, "", none, err
	}
	if !record.HasKey() {
		return nil, "", none, ErrNoStoredKey
	}
	if record.Preferences.AuthMethod != securestore.MethodWebAuthn ||
		record.PlatformCredential == nil || record.PlatformKey == nil {
		return nil, "", none, ErrMethodMismatch
	}

	assertion, err := m.bridge.RequestVerification(ctx, *record.PlatformCredential)
	if err != nil {
		m.metrics.Attempt("webauthn", "failure")
		return nil, "", none, err
	}

	priv, err := m.openEnvelope(record.EncryptedKey, hex.EncodeToString(record.PlatformKey.KeyMaterial))
	if err != nil {
		m.metrics.Attempt("webauthn", "failure")
		return nil, "", none, err
	}
	defer zeroBytes(priv)

	kp, err := keys.FromPrivateKeyBytes(priv)
	if err != nil {
		return nil, "", none, err
	}
	phrase := m.recoverMnemonic(record.EncryptedMnemonic, hex.EncodeToString(record.PlatformKey.KeyMaterial))

	if assertion.Counter > record.PlatformCredential.Counter {
		record.PlatformCredential.Counter = assertion.Counter
	}
	record.Preferences.LastUnlockAt = m.now()
	if err := m.store.Write(ctx, record); err != nil {
		kp.Zero()
		return nil, "", none, err
	}
	m.metrics.Attempt("webauthn", "success")
	return kp, phrase, record, nil
}

// UnlockInsecure opens the no-protection envelope with the fixed constant.
// Nothing meaningful can be brute-forced, so no rate limiting applies.
func (m *Manager) UnlockInsecure(ctx context.Context) (*keys.KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, err := m.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	if !record.HasKey() {
		return nil, ErrNoStoredKey
	}
	if record.Preferences.AuthMethod != securestore.MethodNone {
		return nil, ErrMethodMismatch
	}

	priv, err := m.openEnvelope(record.EncryptedKey, insecurePassword)
	if err != nil {
		m.metrics.Attempt("none", "failure")
		return nil, err
	}
	defer zeroBytes(priv)

	kp, err := keys.FromPrivateKeyBytes(priv)
	if err != nil {
		return nil, err
	}
	phrase := m.recoverMnemonic(record.EncryptedMnemonic, insecurePassword)

	record.Preferences.LastUnlockAt = m.now()
	if err := m.store.Write(ctx, record); err != nil {
		kp.Zero()
		return nil, err
	}
	m.metrics.Attempt("none", "success")
	m.openSessionLocked(kp, phrase, record)
	return kp.Clone(), nil
}

// ---- rotation ----

// ChangePIN unlocks with the old PIN and runs PIN setup again with the new
// one. The old envelope is discarded wholesale; re-encryption always starts
// from plaintext.
func (m *Manager) ChangePIN(ctx context.Context, oldPIN, newPIN PIN) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kp, phrase, _, err := m.unlockPINLocked(ctx, oldPIN)
	if err != nil {
		return err
	}
	defer kp.Zero()

	if _, err := m.setupPINLocked(ctx, kp, phrase, newPIN); err != nil {
		return err
	}
	return nil
}

// RotateCredential verifies the current platform credential, then registers
// a new one with a fresh random secret and re-encrypts everything under it.
func (m *Manager) RotateCredential(ctx context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kp, phrase, _, err := m.unlockWebAuthnLocked(ctx)
	if err != nil {
		return err
	}
	defer kp.Zero()

	cred, err := m.bridge.RegisterCredential(ctx, identity)
	if err != nil {
		return err
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	defer zeroBytes(secret)

	encKey, encMnemonic, err := m.sealMaterial(kp, phrase, hex.EncodeToString(secret), m.cfg.StrongWorkFactor, nip49.KeySecuritySecure)
	if err != nil {
		return err
	}

	record, err := m.store.Read(ctx)
	if err != nil {
		return err
	}
	record.EncryptedKey = encKey
	record.EncryptedMnemonic = encMnemonic
	record.PlatformCredential = &cred
	record.PlatformKey = &securestore.PlatformKey{
		KeyMaterial: append([]byte(nil), secret...),
		CreatedAt:   m.now(),
	}
	if err := m.store.Write(ctx, record); err != nil {
		return err
	}

	m.logger.Info("platform credential rotated", "credential_id", hex.EncodeToString(cred.CredentialID))
	m.openSessionLocked(kp.Clone(), phrase, record)
	return nil
}

// ---- session ----

// LockSession zeroes the in-memory plaintext and drops the session.
func (m *Manager) LockSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockSessionLocked()
}

func (m *Manager) lockSessionLocked() {
	if m.lockTimer != nil {
		m.lockTimer.Stop()
		m.lockTimer = nil
	}
	if m.session == nil {
		return
	}
	m.session.zero()
	m.session = nil
	m.metrics.SetUnlocked(false)

	status := m.hub.Current()
	status.Unlocked = false
	status.UnlockExpiresAt = time.Time{}
	m.hub.Publish(status)
	m.logger.Info("session locked")
}

// CurrentKey returns a copy of the unlocked key, or false when locked. A
// session past its expiry is force-locked here even if the timer never
// fired, e.g. after a process suspend.
func (m *Manager) CurrentKey() (*keys.KeyPair, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionExpiredLocked() {
		return nil, false
	}
	if m.session == nil {
		return nil, false
	}
	return m.session.key.Clone(), true
}

// MnemonicPhrase returns the recovery phrase held by the session, if the
// mnemonic envelope was present and decrypted.
func (m *Manager) MnemonicPhrase() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionExpiredLocked() {
		return "", false
	}
	if m.session == nil || len(m.session.mnemonic) == 0 {
		return "", false
	}
	return string(m.session.mnemonic), true
}

// IsUnlocked reports whether a live session exists, applying lazy expiry.
func (m *Manager) IsUnlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionExpiredLocked() {
		return false
	}
	return m.session != nil
}

func (m *Manager) sessionExpiredLocked() bool {
	if m.session != nil && m.session.expired(m.now()) {
		m.lockSessionLocked()
		return true
	}
	return false
}

func (m *Manager) openSessionLocked(kp *keys.KeyPair, phrase string, record securestore.SecurityRecord) {
	if m.lockTimer != nil {
		m.lockTimer.Stop()
		m.lockTimer = nil
	}
	if m.session != nil {
		m.session.zero()
	}

	now := m.now()
	var expiresAt time.Time
	if record.Preferences.AutoLockEnabled {
		expiresAt = now.Add(m.cfg.SessionDuration)
		m.lockTimer = time.AfterFunc(m.cfg.SessionDuration, m.LockSession)
	}
	m.session = newUnlockSession(kp, phrase, now, expiresAt)
	m.metrics.SetUnlocked(true)
	m.publishRecordLocked(record)
}

// ---- status & wipe ----

// Status reads the persisted record and reports the full state snapshot.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, err := m.store.Read(ctx)
	if err != nil {
		return Status{}, err
	}
	m.sessionExpiredLocked()
	return m.statusLocked(record), nil
}

// Wipe locks the session and deletes the persisted record entirely.
func (m *Manager) Wipe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lockSessionLocked()
	if err := m.store.Delete(ctx); err != nil {
		return err
	}
	m.logger.Warn("security record wiped")
	m.hub.Publish(Status{})
	return nil
}

func (m *Manager) statusLocked(record securestore.SecurityRecord) Status {
	now := m.now()
	decision := EvaluateLockout(record.Preferences.FailedPINAttempts, record.Preferences.LastFailedAttemptAt, now)

	status := Status{
		Method:            record.Preferences.AuthMethod,
		HasKey:            record.HasKey(),
		Unlocked:          m.session != nil,
		PublicKeyHex:      keys.PublicKeyHex(record.PublicKeyHex),
		FailedPINAttempts: decision.EffectiveFailures,
		AutoLockEnabled:   record.Preferences.AutoLockEnabled,
	}
	if decision.Locked {
		status.LockoutRemaining = decision.RetryAfter
	}
	if m.session != nil {
		status.UnlockExpiresAt = m.session.expiresAt
	}
	if record.HasKey() && record.Preferences.AuthMethod != securestore.MethodNone {
		if wf, err := nip49.WorkFactor(record.EncryptedKey, nip49.PrefixKey); err == nil && wf < m.cfg.StrongWorkFactor {
			status.WeakEnvelope = true
		}
	}
	return status
}

func (m *Manager) publishRecordLocked(record securestore.SecurityRecord) {
	m.hub.Publish(m.statusLocked(record))
}

// ---- helpers ----

func (m *Manager) sealMaterial(kp *keys.KeyPair, phrase, password string, workFactor uint8, aad byte) (encKey, encMnemonic string, err error) {
	priv := kp.PrivateKeyBytes()
	defer zeroBytes(priv)

	start := time.Now()
	encKey, err = nip49.Encrypt(priv, password, workFactor, aad, nip49.PrefixKey)
	if err != nil {
		return "", "", err
	}
	normalized := mnemonic.Normalize(phrase)
	if normalized != "" {
		encMnemonic, err = nip49.Encrypt([]byte(normalized), password, workFactor, nip49.MnemonicAssociatedData, nip49.PrefixMnemonic)
		if err != nil {
			return "", "", err
		}
	}
	m.metrics.ObserveKDF(time.Since(start).Seconds())
	return encKey, encMnemonic, nil
}

func (m *Manager) openEnvelope(envelope, password string) ([]byte, error) {
	start := time.Now()
	plaintext, err := nip49.Decrypt(envelope, password, nip49.PrefixKey)
	m.metrics.ObserveKDF(time.Since(start).Seconds())
	return plaintext, err
}

// recoverMnemonic is best effort: a mnemonic envelope that fails to decrypt
// is logged and omitted, never fatal to the key unlock.
func (m *Manager) recoverMnemonic(envelope, password string) string {
	if envelope == "" {
		return ""
	}
	plaintext, err := nip49.Decrypt(envelope, password, nip49.PrefixMnemonic)
	if err != nil {
		m.logger.Warn("mnemonic envelope failed to decrypt, omitting from session")
		return ""
	}
	phrase := string(plaintext)
	zeroBytes(plaintext)
	return phrase
}

func validatePINFormat(pin PIN, wantLength int) error {
	if !allDigits(string(pin)) {
		return &PINFormatError{Length: wantLength}
	}
	if wantLength == 0 {
		if len(pin) != 4 && len(pin) != 6 {
			return &PINFormatError{}
		}
		return nil
	}
	if len(pin) != wantLength {
		return &PINFormatError{Length: wantLength}
	}
	return nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
