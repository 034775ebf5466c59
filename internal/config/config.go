// Package config loads keyring configuration from YAML with environment
// overrides layered on top.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Security SecurityConfig `yaml:"security"`
}

type StorageConfig struct {
	// Path of the security record file.
	Path string `yaml:"path"`
}

type SecurityConfig struct {
	AutoLock         *bool         `yaml:"autoLock"`
	SessionDuration  time.Duration `yaml:"sessionDuration"`
	StrongWorkFactor int           `yaml:"strongWorkFactor"`
	UnlockRPS        float64       `yaml:"unlockRps"`
	UnlockBurst      int           `yaml:"unlockBurst"`
}

func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Storage: StorageConfig{
			Path: filepath.Join(home, ".plebtap", "security.json"),
		},
		Security: SecurityConfig{
			SessionDuration: 5 * time.Minute,
		},
	}
}

// LoadFromPath layers an optional YAML file and env overrides over defaults.
// A missing or unparsable file falls back to defaults rather than failing:
// the keyring must start on a fresh install with no config present.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates, "configs/keyring.yaml")
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src Config) {
	if src.Storage.Path != "" {
		dst.Storage.Path = src.Storage.Path
	}
	if src.Security.AutoLock != nil {
		dst.Security.AutoLock = src.Security.AutoLock
	}
	if src.Security.SessionDuration > 0 {
		dst.Security.SessionDuration = src.Security.SessionDuration
	}
	if src.Security.StrongWorkFactor > 0 {
		dst.Security.StrongWorkFactor = src.Security.StrongWorkFactor
	}
	if src.Security.UnlockRPS > 0 {
		dst.Security.UnlockRPS = src.Security.UnlockRPS
	}
	if src.Security.UnlockBurst > 0 {
		dst.Security.UnlockBurst = src.Security.UnlockBurst
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PLEBTAP_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("PLEBTAP_AUTO_LOCK"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Security.AutoLock = &parsed
		}
	}
	if v := os.Getenv("PLEBTAP_SESSION_DURATION"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			cfg.Security.SessionDuration = parsed
		}
	}
	if v := os.Getenv("PLEBTAP_STRONG_WORK_FACTOR"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 22 {
			cfg.Security.StrongWorkFactor = parsed
		}
	}
}
