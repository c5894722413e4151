package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Recognized configuration keys.
const (
	KeyEndpoint    = "endpoint"
	KeyTimeout     = "timeout"
	KeyLogLevel    = "log_level"
	KeyHistoryPath = "history_path"
)

// Settings is the runtime configuration for the CLI and adapter.
// Generation limits are deliberately absent: they are fixed by the llm package.
type Settings struct {
	// Endpoint is the completions URL. Empty means the llm default.
	Endpoint string
	// Timeout bounds a single model call.
	Timeout time.Duration
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// HistoryPath is the SQLite file for run history. Empty disables history.
	HistoryPath string
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		Timeout:  60 * time.Second,
		LogLevel: "info",
	}
}

// SettingsFrom overlays cfg onto DefaultSettings.
func SettingsFrom(cfg Config) (Settings, error) {
	def := DefaultSettings()
	s := Settings{
		Endpoint:    cfg.String(KeyEndpoint, def.Endpoint),
		Timeout:     cfg.Duration(KeyTimeout, def.Timeout),
		LogLevel:    strings.ToLower(cfg.String(KeyLogLevel, def.LogLevel)),
		HistoryPath: cfg.String(KeyHistoryPath, def.HistoryPath),
	}
	if s.Timeout < 0 {
		return Settings{}, fmt.Errorf("%s must not be negative: %s", KeyTimeout, s.Timeout)
	}
	if _, err := s.Level(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Level converts LogLevel to a slog.Level.
func (s Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid %s %q: %w", KeyLogLevel, s.LogLevel, err)
	}
	return level, nil
}
