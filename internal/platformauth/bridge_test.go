package platformauth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestRegisterAndVerify(t *testing.T) {
	auth := NewLocalAuthenticator()
	bridge := NewBridge(auth, slog.Default())
	ctx := context.Background()

	if !bridge.Available(ctx) {
		t.Fatal("local authenticator should be available")
	}
	cred, err := bridge.RegisterCredential(ctx, "plebtap")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(cred.CredentialID) == 0 || len(cred.PublicKey) == 0 {
		t.Fatal("credential missing id or public key")
	}
	if cred.RegisteredAt.IsZero() {
		t.Fatal("credential missing registration time")
	}

	assertion, err := bridge.RequestVerification(ctx, cred)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !assertion.Verified {
		t.Fatal("assertion should be verified")
	}
	if assertion.Counter <= cred.Counter {
		t.Fatalf("counter should increment: stored=%d asserted=%d", cred.Counter, assertion.Counter)
	}
}

func TestDeniedCeremonyFailsCleanly(t *testing.T) {
	auth := NewLocalAuthenticator()
	bridge := NewBridge(auth, slog.Default())
	ctx := context.Background()

	cred, err := bridge.RegisterCredential(ctx, "plebtap")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	auth.DenyNext()
	if _, err := bridge.RequestVerification(ctx, cred); !errors.Is(err, ErrCeremonyFailed) {
		t.Fatalf("expected ErrCeremonyFailed, got %v", err)
	}

	// The denial consumed itself; the next ceremony succeeds.
	if _, err := bridge.RequestVerification(ctx, cred); err != nil {
		t.Fatalf("ceremony after denial should succeed: %v", err)
	}
}

func TestOfflineAuthenticator(t *testing.T) {
	auth := NewLocalAuthenticator()
	auth.SetOffline(true)
	bridge := NewBridge(auth, slog.Default())
	ctx := context.Background()

	if bridge.Available(ctx) {
		t.Fatal("offline authenticator should not be available")
	}
	if _, err := bridge.RegisterCredential(ctx, "plebtap"); !errors.Is(err, ErrCeremonyFailed) {
		t.Fatalf("expected ErrCeremonyFailed for offline register, got %v", err)
	}
}

func TestUnknownCredentialFailsVerification(t *testing.T) {
	auth := NewLocalAuthenticator()
	bridge := NewBridge(auth, slog.Default())
	ctx := context.Background()

	unknown := Credential{CredentialID: []byte("missing"), PublicKey: []byte("pk")}
	if _, err := bridge.RequestVerification(ctx, unknown); !errors.Is(err, ErrCeremonyFailed) {
		t.Fatalf("expected ErrCeremonyFailed, got %v", err)
	}
}

func TestNonIncrementingCounterIsLoggedNotFatal(t *testing.T) {
	auth := NewLocalAuthenticator()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	bridge := NewBridge(auth, logger)
	ctx := context.Background()

	cred, err := bridge.RegisterCredential(ctx, "plebtap")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// Claim a stored counter ahead of the device, simulating a cloned or
	// rolled-back authenticator.
	cred.Counter = 1000

	assertion, err := bridge.RequestVerification(ctx, cred)
	if err != nil {
		t.Fatalf("verification should tolerate counter regression: %v", err)
	}
	if !assertion.Verified {
		t.Fatal("assertion should still verify")
	}
	if !bytes.Contains(buf.Bytes(), []byte("counter did not increase")) {
		t.Fatal("expected a warning about the replay counter")
	}
}
