package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultPointsIntoHome(t *testing.T) {
	cfg := Default()
	if cfg.Storage.Path == "" {
		t.Fatal("default storage path should be set")
	}
	if filepath.Base(cfg.Storage.Path) != "security.json" {
		t.Fatalf("unexpected default file name: %s", cfg.Storage.Path)
	}
	if cfg.Security.SessionDuration != 5*time.Minute {
		t.Fatalf("unexpected default session duration: %v", cfg.Security.SessionDuration)
	}
}

func TestLoadFromPathMergesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyring.yaml")
	payload := `
storage:
  path: /tmp/custom/security.json
security:
  autoLock: true
  sessionDuration: 2m
  strongWorkFactor: 18
  unlockRps: 2
  unlockBurst: 3
`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadFromPath(path)
	if cfg.Storage.Path != "/tmp/custom/security.json" {
		t.Fatalf("storage path not merged: %s", cfg.Storage.Path)
	}
	if cfg.Security.AutoLock == nil || !*cfg.Security.AutoLock {
		t.Fatal("autoLock not merged")
	}
	if cfg.Security.SessionDuration != 2*time.Minute {
		t.Fatalf("session duration not merged: %v", cfg.Security.SessionDuration)
	}
	if cfg.Security.StrongWorkFactor != 18 {
		t.Fatalf("work factor not merged: %d", cfg.Security.StrongWorkFactor)
	}
	if cfg.Security.UnlockRPS != 2 || cfg.Security.UnlockBurst != 3 {
		t.Fatalf("throttle not merged: rps=%v burst=%d", cfg.Security.UnlockRPS, cfg.Security.UnlockBurst)
	}
}

func TestLoadFromPathMissingFileFallsBack(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg.Storage.Path != Default().Storage.Path {
		t.Fatal("missing config file should fall back to defaults")
	}
}

func TestLoadFromPathUnparsableFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyring.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := LoadFromPath(path)
	if cfg.Storage.Path != Default().Storage.Path {
		t.Fatal("unparsable config file should fall back to defaults")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PLEBTAP_STORAGE_PATH", "/tmp/env/security.json")
	t.Setenv("PLEBTAP_AUTO_LOCK", "true")
	t.Setenv("PLEBTAP_SESSION_DURATION", "90s")
	t.Setenv("PLEBTAP_STRONG_WORK_FACTOR", "17")

	cfg := Default()
	ApplyEnvOverrides(&cfg)
	if cfg.Storage.Path != "/tmp/env/security.json" {
		t.Fatalf("storage path override missed: %s", cfg.Storage.Path)
	}
	if cfg.Security.AutoLock == nil || !*cfg.Security.AutoLock {
		t.Fatal("auto lock override missed")
	}
	if cfg.Security.SessionDuration != 90*time.Second {
		t.Fatalf("session duration override missed: %v", cfg.Security.SessionDuration)
	}
	if cfg.Security.StrongWorkFactor != 17 {
		t.Fatalf("work factor override missed: %d", cfg.Security.StrongWorkFactor)
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("PLEBTAP_AUTO_LOCK", "maybe")
	t.Setenv("PLEBTAP_SESSION_DURATION", "soon")
	t.Setenv("PLEBTAP_STRONG_WORK_FACTOR", "99")

	cfg := Default()
	ApplyEnvOverrides(&cfg)
	if cfg.Security.AutoLock != nil {
		t.Fatal("bad bool should be ignored")
	}
	if cfg.Security.SessionDuration != 5*time.Minute {
		t.Fatal("bad duration should be ignored")
	}
	if cfg.Security.StrongWorkFactor != 0 {
		t.Fatal("out-of-range work factor should be ignored")
	}
}
