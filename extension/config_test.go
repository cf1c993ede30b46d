package extension

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pullpay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"flat", `
token_decimals: 6
signing_domain: staging
keeper_interval: 30s
keeper_batch_size: 25
`},
		{"nested", `
pullpay:
  token_decimals: 6
  signing_domain: staging
  keeper_interval: 30s
  keeper_batch_size: 25
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfigFile(writeConfig(t, tt.body))
			if err != nil {
				t.Fatalf("LoadConfigFile: %v", err)
			}
			if cfg.TokenDecimals != 6 {
				t.Errorf("TokenDecimals = %d, want 6", cfg.TokenDecimals)
			}
			if cfg.SigningDomain != "staging" {
				t.Errorf("SigningDomain = %q, want staging", cfg.SigningDomain)
			}
			if cfg.KeeperInterval != 30*time.Second {
				t.Errorf("KeeperInterval = %v, want 30s", cfg.KeeperInterval)
			}
			if cfg.KeeperBatchSize != 25 {
				t.Errorf("KeeperBatchSize = %d, want 25", cfg.KeeperBatchSize)
			}
		})
	}
}

func TestLoadConfigFile_Errors(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadConfigFile(writeConfig(t, "token_decimals: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestMergeConfigurations(t *testing.T) {
	file := Config{KeeperBatchSize: 10}
	programmatic := Config{
		DisableKeeper:   true,
		SigningDomain:   "prod",
		KeeperBatchSize: 500,
		TokenDecimals:   6,
	}

	got := mergeConfigurations(file, programmatic)

	if !got.DisableKeeper {
		t.Error("programmatic DisableKeeper should carry over")
	}
	if got.KeeperBatchSize != 10 {
		t.Errorf("KeeperBatchSize = %d, file value should win", got.KeeperBatchSize)
	}
	if got.SigningDomain != "prod" || got.TokenDecimals != 6 {
		t.Errorf("programmatic values should fill gaps, got %+v", got)
	}
	if got.KeeperInterval != DefaultConfig().KeeperInterval {
		t.Errorf("KeeperInterval = %v, want default", got.KeeperInterval)
	}
}

func TestWithDefaults(t *testing.T) {
	got := withDefaults(Config{KeeperBurst: 1})
	want := DefaultConfig()
	want.KeeperBurst = 1
	if got != want {
		t.Errorf("withDefaults = %+v, want %+v", got, want)
	}
}

func TestOptions(t *testing.T) {
	e := New(
		WithDisableMigrate(),
		WithTokenDecimals(6),
		WithKeeperRateLimit(2, 1),
		WithConfigFile("pullpay.yaml"),
	)
	if !e.config.DisableMigrate || e.config.TokenDecimals != 6 {
		t.Errorf("config = %+v", e.config)
	}
	if e.config.KeeperRatePerSecond != 2 || e.config.KeeperBurst != 1 {
		t.Errorf("keeper rate = %v/%d", e.config.KeeperRatePerSecond, e.config.KeeperBurst)
	}
	if e.configFile != "pullpay.yaml" {
		t.Errorf("configFile = %q", e.configFile)
	}
	if e.Engine() != nil {
		t.Error("engine should be nil before Register")
	}
}
