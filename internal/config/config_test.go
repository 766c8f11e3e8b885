package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.MaxTasksPerUser != 50 || cfg.MaxRemindersPerUser != 20 || cfg.MaxTaskLength != 200 {
		t.Fatalf("unexpected limit defaults: %+v", cfg)
	}
	if cfg.DeadlineLookaheadHours != 12 || cfg.ScanInterval.Duration != 2*time.Minute {
		t.Fatalf("unexpected scan defaults: %+v", cfg)
	}
	if cfg.SaveDebounce.Duration != 30*time.Second || cfg.MaxConcurrentDeliveries != 10 {
		t.Fatalf("unexpected persistence defaults: %+v", cfg)
	}
	if !cfg.EncryptionEnabled || !cfg.UsesDefaultKey() {
		t.Fatalf("expected encryption on with default key: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestFromEnvPrefixedAndLegacyNames(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "legacy-secret")
	t.Setenv("ENABLE_ENCRYPTION", "false")
	t.Setenv("REMINDER_CHECK_INTERVAL", "5")
	t.Setenv("DATABASE_SAVE_DEBOUNCE", "10")
	t.Setenv("MAX_CONCURRENT_REMINDERS", "3")
	t.Setenv("TODOBOT_MAX_TASKS_PER_USER", "7")
	t.Setenv("TODOBOT_DATA_FILE", "state/db.json")

	cfg := FromEnv(Default())
	if cfg.EncryptionKey != "legacy-secret" || cfg.EncryptionEnabled {
		t.Fatalf("unexpected encryption config: %+v", cfg)
	}
	if cfg.ScanInterval.Duration != 5*time.Minute {
		t.Fatalf("expected legacy interval in minutes, got %s", cfg.ScanInterval)
	}
	if cfg.SaveDebounce.Duration != 10*time.Second {
		t.Fatalf("expected legacy debounce in seconds, got %s", cfg.SaveDebounce)
	}
	if cfg.MaxConcurrentDeliveries != 3 || cfg.MaxTasksPerUser != 7 || cfg.DataFile != "state/db.json" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}

	t.Setenv("TODOBOT_ENCRYPTION_KEY", "prefixed-secret")
	t.Setenv("TODOBOT_SCAN_INTERVAL", "45s")
	cfg = FromEnv(Default())
	if cfg.EncryptionKey != "prefixed-secret" {
		t.Fatalf("expected prefixed key to win, got %q", cfg.EncryptionKey)
	}
	if cfg.ScanInterval.Duration != 45*time.Second {
		t.Fatalf("expected prefixed interval to win, got %s", cfg.ScanInterval)
	}
}

func TestFromEnvPrefixedDurationsAcceptBareIntegers(t *testing.T) {
	t.Setenv("TODOBOT_SCAN_INTERVAL", "3")
	t.Setenv("TODOBOT_SAVE_DEBOUNCE", "0")
	t.Setenv("TODOBOT_LEDGER_RETENTION", "48")
	t.Setenv("REMINDER_CHECK_INTERVAL", "9")
	cfg := FromEnv(Default())
	if cfg.ScanInterval.Duration != 3*time.Minute {
		t.Fatalf("expected bare prefixed interval in minutes, got %s", cfg.ScanInterval)
	}
	if cfg.SaveDebounce.Duration != 0 {
		t.Fatalf("expected zero debounce, got %s", cfg.SaveDebounce)
	}
	if cfg.LedgerRetention.Duration != 48*time.Hour {
		t.Fatalf("expected bare retention in hours, got %s", cfg.LedgerRetention)
	}

	t.Setenv("TODOBOT_SCAN_INTERVAL", "soon")
	if cfg := FromEnv(Default()); cfg.ScanInterval.Duration != 9*time.Minute {
		t.Fatalf("expected invalid prefixed value to fall back to legacy name, got %s", cfg.ScanInterval)
	}
}

func TestFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("TODOBOT_MAX_TASKS_PER_USER", "lots")
	t.Setenv("TODOBOT_ENABLE_ENCRYPTION", "maybe")
	t.Setenv("TODOBOT_CACHE_SIZE", "-4")
	cfg := FromEnv(Default())
	if cfg.MaxTasksPerUser != 50 || !cfg.EncryptionEnabled || cfg.CacheSize != 128 {
		t.Fatalf("expected invalid env to be ignored: %+v", cfg)
	}
}

func TestLoadReadsTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	body := strings.Join([]string{
		`data-file = "tasks.json"`,
		`max-reminders-per-user = 5`,
		`scan-interval = "90s"`,
		`timezone = "UTC"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataFile != "tasks.json" || cfg.MaxRemindersPerUser != 5 {
		t.Fatalf("unexpected file values: %+v", cfg)
	}
	if cfg.ScanInterval.Duration != 90*time.Second {
		t.Fatalf("unexpected scan interval: %s", cfg.ScanInterval)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC location, got %v (%v)", loc, err)
	}

	t.Setenv("TODOBOT_DATA_FILE", "env.json")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if cfg.DataFile != "env.json" {
		t.Fatalf("expected env to override file, got %q", cfg.DataFile)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidateRejectsNonPositiveLimits(t *testing.T) {
	cfg := Default()
	cfg.MaxTasksPerUser = 0
	cfg.Timezone = "Not/AZone"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "max-tasks-per-user") || !strings.Contains(err.Error(), "timezone") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}
