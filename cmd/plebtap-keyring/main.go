package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/PlebeiusGaragicus/plebtap/internal/config"
	"github.com/PlebeiusGaragicus/plebtap/internal/keys"
	"github.com/PlebeiusGaragicus/plebtap/internal/mnemonic"
	"github.com/PlebeiusGaragicus/plebtap/internal/platform/metrics"
	"github.com/PlebeiusGaragicus/plebtap/internal/platform/privacylog"
	"github.com/PlebeiusGaragicus/plebtap/internal/platformauth"
	"github.com/PlebeiusGaragicus/plebtap/internal/securestore"
	"github.com/PlebeiusGaragicus/plebtap/internal/security"
)

var (
	version = "dev"
	commit  = "unknown"
)

const usage = `plebtap-keyring <command> [flags]

commands:
  generate                     generate a recovery phrase and show the derived keys
  setup-pin                    protect the key behind a numeric PIN
  setup-webauthn               protect the key behind the platform authenticator
  setup-insecure               store the key with no protection (explicitly insecure)
  unlock                       unlock with the configured auth method
  change-pin                   rotate the PIN
  status                       show the security state
  wipe                         delete the security record
`

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to keyring.yaml (optional)")
	storagePath := flag.String("storage", "", "Security record path override (optional)")
	entropyBits := flag.Int("bits", 128, "Entropy bits for generate: 128 or 256")
	phrase := flag.String("mnemonic", "", "Recovery phrase for setup commands (optional)")
	pin := flag.String("pin", "", "PIN for pin commands")
	newPIN := flag.String("new-pin", "", "New PIN for change-pin")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("plebtap-keyring version=%s commit=%s\n", version, commit)
		return
	}
	command := flag.Arg(0)
	if command == "" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(privacylog.WrapHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.LoadFromPath(*configPath)
	if *storagePath != "" {
		cfg.Storage.Path = *storagePath
	}

	if err := run(context.Background(), command, cfg, logger, cliOptions{
		entropyBits: *entropyBits,
		phrase:      *phrase,
		pin:         *pin,
		newPIN:      *newPIN,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "plebtap-keyring: %v\n", err)
		os.Exit(1)
	}
}

type cliOptions struct {
	entropyBits int
	phrase      string
	pin         string
	newPIN      string
}

func run(ctx context.Context, command string, cfg config.Config, logger *slog.Logger, opts cliOptions) error {
	if command == "generate" {
		return runGenerate(opts.entropyBits)
	}

	store, err := securestore.NewFileStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	bridge := platformauth.NewBridge(platformauth.NewLocalAuthenticator(), logger)
	set := metrics.New(prometheus.NewRegistry())

	mgrCfg := security.DefaultConfig()
	if cfg.Security.SessionDuration > 0 {
		mgrCfg.SessionDuration = cfg.Security.SessionDuration
	}
	if cfg.Security.AutoLock != nil {
		mgrCfg.AutoLock = *cfg.Security.AutoLock
	}
	if cfg.Security.StrongWorkFactor > 0 {
		mgrCfg.StrongWorkFactor = uint8(cfg.Security.StrongWorkFactor)
	}
	if cfg.Security.UnlockRPS > 0 {
		mgrCfg.UnlockRPS = cfg.Security.UnlockRPS
		mgrCfg.UnlockBurst = cfg.Security.UnlockBurst
	}
	manager := security.NewManager(store, bridge, mgrCfg, logger, set)

	switch command {
	case "setup-pin":
		return withKeyMaterial(opts.phrase, func(kp *keys.KeyPair, normalized string) error {
			return manager.SetupPIN(ctx, kp, normalized, security.PIN(opts.pin))
		})
	case "setup-webauthn":
		return withKeyMaterial(opts.phrase, func(kp *keys.KeyPair, normalized string) error {
			return manager.SetupWebAuthn(ctx, kp, normalized, "plebtap")
		})
	case "setup-insecure":
		return withKeyMaterial(opts.phrase, func(kp *keys.KeyPair, normalized string) error {
			return manager.StoreInsecure(ctx, kp, normalized)
		})
	case "unlock":
		return runUnlock(ctx, manager, store, opts.pin)
	case "change-pin":
		return manager.ChangePIN(ctx, security.PIN(opts.pin), security.PIN(opts.newPIN))
	case "status":
		return runStatus(ctx, manager)
	case "wipe":
		return manager.Wipe(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runGenerate(entropyBits int) error {
	phrase, err := mnemonic.Generate(entropyBits)
	if err != nil {
		return err
	}
	kp, err := mnemonic.DeriveKeyPair(phrase, "", 0)
	if err != nil {
		return err
	}
	defer kp.Zero()

	npub, err := kp.Npub()
	if err != nil {
		return err
	}
	fmt.Printf("mnemonic: %s\n", phrase)
	fmt.Printf("npub:     %s\n", npub)
	fmt.Printf("pubkey:   %s\n", kp.PublicKeyHex())
	fmt.Println("write the mnemonic down; it is the only backup of this key")
	return nil
}

// withKeyMaterial builds the key pair for a setup command: derived from the
// given phrase, or freshly generated (with a new phrase) when none is given.
func withKeyMaterial(phrase string, fn func(kp *keys.KeyPair, normalized string) error) error {
	normalized := mnemonic.Normalize(phrase)
	if normalized == "" {
		generated, err := mnemonic.Generate(128)
		if err != nil {
			return err
		}
		normalized = generated
		fmt.Printf("mnemonic: %s\n", normalized)
	}
	if !mnemonic.Validate(normalized) {
		return mnemonic.ErrInvalidMnemonic
	}
	kp, err := mnemonic.DeriveKeyPair(normalized, "", 0)
	if err != nil {
		return err
	}
	defer kp.Zero()
	return fn(kp, normalized)
}

func runUnlock(ctx context.Context, manager *security.Manager, store securestore.Store, pin string) error {
	record, err := store.Read(ctx)
	if err != nil {
		return err
	}

	var kp *keys.KeyPair
	switch record.Preferences.AuthMethod {
	case securestore.MethodPIN:
		kp, err = manager.UnlockWithPIN(ctx, security.PIN(pin))
	case securestore.MethodWebAuthn:
		kp, err = manager.UnlockWithWebAuthn(ctx)
	case securestore.MethodNone:
		kp, err = manager.UnlockInsecure(ctx)
	default:
		return security.ErrNoStoredKey
	}
	if err != nil {
		return err
	}
	defer kp.Zero()

	npub, err := kp.Npub()
	if err != nil {
		return err
	}
	fmt.Printf("unlocked npub: %s\n", npub)
	return nil
}

func runStatus(ctx context.Context, manager *security.Manager) error {
	status, err := manager.Status(ctx)
	if err != nil {
		return err
	}
	method := string(status.Method)
	if method == "" {
		method = "uninitialized"
	}
	fmt.Printf("method:        %s\n", method)
	fmt.Printf("key stored:    %v\n", status.HasKey)
	fmt.Printf("unlocked:      %v\n", status.Unlocked)
	if status.PublicKeyHex != "" {
		fmt.Printf("pubkey:        %s\n", status.PublicKeyHex)
	}
	if status.FailedPINAttempts > 0 {
		fmt.Printf("failed PINs:   %d\n", status.FailedPINAttempts)
	}
	if status.LockoutRemaining > 0 {
		fmt.Printf("locked out:    retry in %s\n", status.LockoutRemaining.Round(time.Second))
	}
	if status.WeakEnvelope {
		fmt.Println("warning: envelope uses an under-strength work factor; re-encryption recommended")
	}
	if status.AutoLockEnabled {
		fmt.Println("auto-lock:     enabled")
	} else {
		fmt.Println("auto-lock:     disabled")
	}
	return nil
}
