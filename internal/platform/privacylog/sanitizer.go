// Package privacylog wraps an slog handler so key material and credentials
// cannot reach a log sink in plaintext. Secret-bearing attributes are
// redacted outright; identifying attributes (public keys, credential IDs)
// are reduced to a per-boot fingerprint so log lines stay correlatable
// within one run without being linkable across runs.
package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

var (
	bootNonce = randomNonce()

	// Attributes carrying these keys are fingerprinted, never logged raw.
	fingerprintedIDs = map[string]struct{}{
		"public_key":    {},
		"npub":          {},
		"credential_id": {},
	}

	// Any key containing one of these fragments is secret material.
	sensitiveKeyParts = []string{
		"pin", "password", "passphrase", "mnemonic", "phrase",
		"nsec", "private_key", "secret", "token", "envelope",
	}
)

type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, SanitizeAttr(attr))
	}
	return &SanitizingHandler{next: h.next.WithAttrs(out)}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lowerKey := strings.ToLower(key)
	if isSensitiveKey(lowerKey) {
		return slog.String(key, redactedValue)
	}
	if _, ok := fingerprintedIDs[lowerKey]; ok {
		return slog.String(key+"_fp", Fingerprint(attrValueString(attr.Value)))
	}
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		out := make([]any, 0, len(group))
		for _, member := range group {
			out = append(out, SanitizeAttr(member))
		}
		return slog.Group(key, out...)
	}
	return attr
}

// Fingerprint hashes a value with a per-boot nonce to a short stable tag.
func Fingerprint(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed + "|" + bootNonce))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func isSensitiveKey(lowerKey string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lowerKey, part) {
			return true
		}
	}
	return false
}

func attrValueString(v slog.Value) string {
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return fmt.Sprint(v.Any())
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "static-fallback-nonce"
	}
	return hex.EncodeToString(buf)
}
