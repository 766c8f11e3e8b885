package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv overrides cfg from TODOBOT_* variables. Legacy unprefixed names
// (ENCRYPTION_KEY, REMINDER_CHECK_INTERVAL, ...) are read when the prefixed
// form is unset. Durations take Go syntax ("90s") or a bare integer: minutes
// for the scan interval, seconds for the save debounce, hours for ledger
// retention.
func FromEnv(base Config) Config {
	cfg := base
	if v, ok := getEnvString("TODOBOT_DATA_FILE"); ok {
		cfg.DataFile = v
	}
	if v, ok := getEnvString("TODOBOT_LEDGER_FILE"); ok {
		cfg.LedgerFile = v
	}
	if v, ok := getEnvDuration("TODOBOT_LEDGER_RETENTION", time.Hour); ok && v > 0 {
		cfg.LedgerRetention = Duration{v}
	}
	if v, ok := getEnvString("TODOBOT_ENCRYPTION_KEY", "ENCRYPTION_KEY"); ok {
		cfg.EncryptionKey = v
	}
	if v, ok := getEnvBool("TODOBOT_ENABLE_ENCRYPTION", "ENABLE_ENCRYPTION"); ok {
		cfg.EncryptionEnabled = v
	}
	if v, ok := getEnvInt("TODOBOT_MAX_TASKS_PER_USER"); ok && v > 0 {
		cfg.MaxTasksPerUser = v
	}
	if v, ok := getEnvInt("TODOBOT_MAX_TASK_LENGTH"); ok && v > 0 {
		cfg.MaxTaskLength = v
	}
	if v, ok := getEnvInt("TODOBOT_MAX_REMINDERS_PER_USER"); ok && v > 0 {
		cfg.MaxRemindersPerUser = v
	}
	if v, ok := getEnvInt("TODOBOT_DEADLINE_LOOKAHEAD_HOURS"); ok && v > 0 {
		cfg.DeadlineLookaheadHours = v
	}
	if v, ok := getEnvDuration("TODOBOT_SCAN_INTERVAL", time.Minute); ok && v > 0 {
		cfg.ScanInterval = Duration{v}
	} else if v, ok := getEnvDuration("REMINDER_CHECK_INTERVAL", time.Minute); ok && v > 0 {
		cfg.ScanInterval = Duration{v}
	}
	if v, ok := getEnvDuration("TODOBOT_SAVE_DEBOUNCE", time.Second); ok && v >= 0 {
		cfg.SaveDebounce = Duration{v}
	} else if v, ok := getEnvDuration("DATABASE_SAVE_DEBOUNCE", time.Second); ok && v >= 0 {
		cfg.SaveDebounce = Duration{v}
	}
	if v, ok := getEnvInt("TODOBOT_MAX_CONCURRENT_DELIVERIES", "MAX_CONCURRENT_REMINDERS"); ok && v > 0 {
		cfg.MaxConcurrentDeliveries = v
	}
	if v, ok := getEnvInt("TODOBOT_CACHE_SIZE", "CACHE_SIZE"); ok && v > 0 {
		cfg.CacheSize = v
	}
	if v, ok := getEnvString("TODOBOT_LOG_LEVEL", "LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := getEnvString("TODOBOT_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := getEnvString("TODOBOT_TIMEZONE"); ok {
		cfg.Timezone = v
	}
	if v, ok := getEnvString("TODOBOT_CONSOLE_USER"); ok {
		cfg.ConsoleUser = v
	}
	if v, ok := getEnvBool("TODOBOT_DESKTOP_NOTIFICATIONS"); ok {
		cfg.DesktopNotifications = v
	}
	return cfg
}

func lookupEnv(names ...string) (string, bool) {
	for _, name := range names {
		raw := strings.TrimSpace(os.Getenv(name))
		if raw != "" {
			return raw, true
		}
	}
	return "", false
}

func getEnvString(names ...string) (string, bool) {
	return lookupEnv(names...)
}

func getEnvInt(names ...string) (int, bool) {
	raw, ok := lookupEnv(names...)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// getEnvDuration accepts Go duration strings or a bare integer in units of
// bareUnit.
func getEnvDuration(name string, bareUnit time.Duration) (time.Duration, bool) {
	raw, ok := lookupEnv(name)
	if !ok {
		return 0, false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * bareUnit, true
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func getEnvBool(names ...string) (bool, bool) {
	raw, ok := lookupEnv(names...)
	if !ok {
		return false, false
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}
