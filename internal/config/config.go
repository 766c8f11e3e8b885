// Package config loads todobot settings from defaults, an optional TOML file,
// a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultEncryptionKey is the placeholder key of the legacy .env template.
// Running with it logs a warning.
const DefaultEncryptionKey = "your-secret-key-change-this-in-production"

const DefaultConfigFile = "todobot.toml"

// Duration decodes TOML strings such as "90s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	DataFile                string   `toml:"data-file"`
	LedgerFile              string   `toml:"ledger-file"`
	LedgerRetention         Duration `toml:"ledger-retention"`
	EncryptionKey           string   `toml:"encryption-key"`
	EncryptionEnabled       bool     `toml:"encryption-enabled"`
	MaxTasksPerUser         int      `toml:"max-tasks-per-user"`
	MaxTaskLength           int      `toml:"max-task-length"`
	MaxRemindersPerUser     int      `toml:"max-reminders-per-user"`
	DeadlineLookaheadHours  int      `toml:"deadline-lookahead-hours"`
	ScanInterval            Duration `toml:"scan-interval"`
	SaveDebounce            Duration `toml:"save-debounce"`
	MaxConcurrentDeliveries int      `toml:"max-concurrent-deliveries"`
	CacheSize               int      `toml:"cache-size"`
	LogLevel                string   `toml:"log-level"`
	LogFormat               string   `toml:"log-format"`
	Timezone                string   `toml:"timezone"`
	ConsoleUser             string   `toml:"console-user"`
	DesktopNotifications    bool     `toml:"desktop-notifications"`
}

func Default() Config {
	return Config{
		DataFile:                "todo_database.json",
		LedgerFile:              "todo_deliveries.db",
		LedgerRetention:         Duration{30 * 24 * time.Hour},
		EncryptionKey:           DefaultEncryptionKey,
		EncryptionEnabled:       true,
		MaxTasksPerUser:         50,
		MaxTaskLength:           200,
		MaxRemindersPerUser:     20,
		DeadlineLookaheadHours:  12,
		ScanInterval:            Duration{2 * time.Minute},
		SaveDebounce:            Duration{30 * time.Second},
		MaxConcurrentDeliveries: 10,
		CacheSize:               128,
		LogLevel:                "info",
		LogFormat:               "text",
		Timezone:                "Local",
		ConsoleUser:             defaultConsoleUser(),
	}
}

// Load applies, in order: defaults, the TOML file at path (or todobot.toml in
// the working directory when path is empty and the file exists), .env, and
// environment variables. An explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	filePath, explicit := path, path != ""
	if !explicit {
		filePath = DefaultConfigFile
	}
	if err := loadFile(&cfg, filePath, explicit); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg = FromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.DataFile) == "" {
		problems = append(problems, "data-file is required")
	}
	if c.EncryptionKey == "" {
		problems = append(problems, "encryption-key is required")
	}
	positive := []struct {
		name  string
		value int
	}{
		{"max-tasks-per-user", c.MaxTasksPerUser},
		{"max-task-length", c.MaxTaskLength},
		{"max-reminders-per-user", c.MaxRemindersPerUser},
		{"deadline-lookahead-hours", c.DeadlineLookaheadHours},
		{"max-concurrent-deliveries", c.MaxConcurrentDeliveries},
		{"cache-size", c.CacheSize},
	}
	for _, p := range positive {
		if p.value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %d", p.name, p.value))
		}
	}
	if c.ScanInterval.Duration <= 0 {
		problems = append(problems, "scan-interval must be positive")
	}
	if c.SaveDebounce.Duration < 0 {
		problems = append(problems, "save-debounce must not be negative")
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

func (c Config) UsesDefaultKey() bool {
	return c.EncryptionKey == DefaultEncryptionKey
}

func (c Config) DeadlineLookahead() time.Duration {
	return time.Duration(c.DeadlineLookaheadHours) * time.Hour
}

func defaultConsoleUser() string {
	for _, name := range []string{"USER", "USERNAME"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return "console"
}
