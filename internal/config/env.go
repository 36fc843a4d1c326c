package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// LoadFromEnv loads configuration from environment variables
// Environment variables override default values
func LoadFromEnv(cfg *Config) {
	// Database configuration
	if dbPath := os.Getenv("FOCUSNUDGE_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	// Nudge configuration
	if evalInterval := os.Getenv("FOCUSNUDGE_EVAL_INTERVAL"); evalInterval != "" {
		if seconds, err := strconv.Atoi(evalInterval); err == nil && seconds > 0 {
			interval := time.Duration(seconds) * time.Second
			if interval >= cfg.Nudge.MinEvaluationInterval && interval <= cfg.Nudge.MaxEvaluationInterval {
				cfg.Nudge.EvaluationInterval = interval
			}
		}
	}

	if window := os.Getenv("FOCUSNUDGE_SWITCH_WINDOW"); window != "" {
		if seconds, err := strconv.Atoi(window); err == nil && seconds > 0 {
			cfg.Signals.SwitchWindow = time.Duration(seconds) * time.Second
		}
	}

	// Daemon configuration
	if pidFile := os.Getenv("FOCUSNUDGE_PID_FILE"); pidFile != "" {
		cfg.Daemon.PIDFile = pidFile
	}

	if logFile := os.Getenv("FOCUSNUDGE_LOG_FILE"); logFile != "" {
		cfg.Daemon.LogFile = logFile
	}

	// Report configuration
	if timeZone := os.Getenv("FOCUSNUDGE_TIMEZONE"); timeZone != "" {
		cfg.Report.TimeZone = timeZone
	}

	// Web configuration
	if webHost := os.Getenv("FOCUSNUDGE_WEB_HOST"); webHost != "" {
		cfg.Web.Host = webHost
	}

	if webPort := os.Getenv("FOCUSNUDGE_WEB_PORT"); webPort != "" {
		if port, err := strconv.Atoi(webPort); err == nil && port > 0 && port <= 65535 {
			cfg.Web.Port = port
		}
	}
}

// LoadFile decodes a TOML file over cfg. Keys missing from the file keep
// their current values.
func LoadFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

// DefaultFilePath returns $XDG_CONFIG_HOME/focusnudge/config.toml, falling
// back to ~/.config/focusnudge/config.toml
func DefaultFilePath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "focusnudge", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "focusnudge", "config.toml")
}

// New creates a new Config with default values and loads from environment
func New() *Config {
	cfg := Default()
	LoadFromEnv(cfg)
	return cfg
}

// Load creates a Config from defaults, then the TOML file at path (or the
// default file path when empty) if it exists, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("FOCUSNUDGE_CONFIG")
	}
	if path == "" {
		path = DefaultFilePath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := LoadFile(cfg, path); err != nil {
				return nil, err
			}
		}
	}
	LoadFromEnv(cfg)
	return cfg, nil
}
