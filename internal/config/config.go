package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig `toml:"database"`

	// Session tracker configuration
	Session SessionConfig `toml:"session"`

	// Nudge engine configuration
	Nudge NudgeConfig `toml:"nudge"`

	// Interruption signal configuration
	Signals SignalsConfig `toml:"signals"`

	// Background persistence configuration
	Recorder RecorderConfig `toml:"recorder"`

	// Daemon configuration
	Daemon DaemonConfig `toml:"daemon"`

	// Report configuration
	Report ReportConfig `toml:"report"`

	// Web server configuration
	Web WebConfig `toml:"web"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string `toml:"path"` // Path to SQLite database file
}

// SessionConfig holds session timer configuration
type SessionConfig struct {
	TickInterval time.Duration `toml:"tick_interval"` // How often elapsed time is recomputed
}

// NudgeConfig holds nudge evaluation configuration
type NudgeConfig struct {
	EvaluationInterval    time.Duration `toml:"evaluation_interval"`
	MinEvaluationInterval time.Duration `toml:"-"`
	MaxEvaluationInterval time.Duration `toml:"-"`
}

// SignalsConfig holds app switch counting configuration
type SignalsConfig struct {
	SwitchWindow time.Duration `toml:"switch_window"` // Trailing window app switches are counted over
}

// RecorderConfig holds background writer configuration
type RecorderConfig struct {
	Buffer int `toml:"buffer"`
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `toml:"pid_file"` // Path to PID file for daemon management
	LogFile string `toml:"log_file"`
}

// ReportConfig holds report generation configuration
type ReportConfig struct {
	TimeZone string `toml:"time_zone"`
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host string `toml:"host"` // Host to bind web server to
	Port int    `toml:"port"` // Port for web server
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "", // Empty means use default ~/.config/focusnudge/focusnudge.db
		},
		Session: SessionConfig{
			TickInterval: time.Second,
		},
		Nudge: NudgeConfig{
			EvaluationInterval:    30 * time.Second,
			MinEvaluationInterval: 5 * time.Second,
			MaxEvaluationInterval: 300 * time.Second,
		},
		Signals: SignalsConfig{
			SwitchWindow: 10 * time.Minute,
		},
		Recorder: RecorderConfig{
			Buffer: 256,
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/focusnudge-%d.pid", os.Getuid()),
			LogFile: fmt.Sprintf("/tmp/focusnudge-%d.log", os.Getuid()),
		},
		Report: ReportConfig{
			TimeZone: "Local",
		},
		Web: WebConfig{
			Host: "localhost",
			Port: 8417,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Session.TickInterval <= 0 || c.Session.TickInterval > time.Minute {
		return fmt.Errorf("tick interval must be between 0 and 1m, got %v", c.Session.TickInterval)
	}

	if c.Nudge.EvaluationInterval < c.Nudge.MinEvaluationInterval {
		return fmt.Errorf("evaluation interval (%v) cannot be less than minimum (%v)",
			c.Nudge.EvaluationInterval, c.Nudge.MinEvaluationInterval)
	}

	if c.Nudge.EvaluationInterval > c.Nudge.MaxEvaluationInterval {
		return fmt.Errorf("evaluation interval (%v) cannot be greater than maximum (%v)",
			c.Nudge.EvaluationInterval, c.Nudge.MaxEvaluationInterval)
	}

	if c.Signals.SwitchWindow <= 0 {
		return fmt.Errorf("switch window must be positive, got %v", c.Signals.SwitchWindow)
	}

	if c.Recorder.Buffer < 1 {
		return fmt.Errorf("recorder buffer must be at least 1, got %d", c.Recorder.Buffer)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	// Validate web config
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	// Validate daemon config
	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	return nil
}

// SetEvaluationInterval sets the nudge evaluation interval with validation
func (c *Config) SetEvaluationInterval(interval time.Duration) error {
	if interval < c.Nudge.MinEvaluationInterval {
		return fmt.Errorf("evaluation interval cannot be less than %v", c.Nudge.MinEvaluationInterval)
	}
	if interval > c.Nudge.MaxEvaluationInterval {
		return fmt.Errorf("evaluation interval cannot be greater than %v", c.Nudge.MaxEvaluationInterval)
	}
	c.Nudge.EvaluationInterval = interval
	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// Location resolves the report time zone
func (c *Config) Location() (*time.Location, error) {
	if c.Report.TimeZone == "" || c.Report.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Report.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid report time zone %q: %w", c.Report.TimeZone, err)
	}
	return loc, nil
}

// Address returns the host:port the web server binds to
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Database:
    Path: %s
  Session:
    Tick Interval: %v
  Nudge:
    Evaluation Interval: %v
  Signals:
    Switch Window: %v
  Recorder:
    Buffer: %d
  Daemon:
    PID File: %s
    Log File: %s
  Report:
    Time Zone: %s
  Web:
    Host: %s
    Port: %d`,
		c.Database.Path,
		c.Session.TickInterval,
		c.Nudge.EvaluationInterval,
		c.Signals.SwitchWindow,
		c.Recorder.Buffer,
		c.Daemon.PIDFile,
		c.Daemon.LogFile,
		c.Report.TimeZone,
		c.Web.Host,
		c.Web.Port,
	)
}
