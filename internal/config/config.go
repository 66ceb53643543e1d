// Package config provides configuration management for the overlay editor.
// Configuration is loaded from a .env file and environment variables with
// sensible defaults; command line flags may override the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort         = 8788
	DefaultLogLevel     = "info"
	DefaultDataDir      = ".overlay-editor"
	DefaultImageTimeout = 10 * time.Second
	DefaultProbeTimeout = 30 * time.Second

	// Environment variable names
	EnvPort         = "OVERLAY_PORT"
	EnvLogLevel     = "OVERLAY_LOG_LEVEL"
	EnvDataDir      = "OVERLAY_DATA_DIR"
	EnvHeadless     = "OVERLAY_HEADLESS"
	EnvImageTimeout = "OVERLAY_IMAGE_TIMEOUT"
	EnvProbeTimeout = "OVERLAY_PROBE_TIMEOUT"

	// Database filename
	DBFilename = "overlays.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	Headless() bool
	ImageTimeout() time.Duration
	ProbeTimeout() time.Duration
	EditorURL() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port         int
	logLevel     string
	dataDir      string
	headless     bool
	imageTimeout time.Duration
	probeTimeout time.Duration
}

// New creates a new EnvConfig with defaults and environment variable
// overrides. A .env file in the working directory is loaded first; variables
// already set in the environment win over it.
func New() (*EnvConfig, error) {
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		imageTimeout: DefaultImageTimeout,
		probeTimeout: DefaultProbeTimeout,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if err := cfg.SetPort(port); err != nil {
			return nil, err
		}
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	var err error
	if cfg.imageTimeout, err = durationFromEnv(EnvImageTimeout, cfg.imageTimeout); err != nil {
		return nil, err
	}
	if cfg.probeTimeout, err = durationFromEnv(EnvProbeTimeout, cfg.probeTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

// durationFromEnv accepts Go durations ("15s") or whole seconds ("15").
func durationFromEnv(name string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		v = strconv.Itoa(secs) + "s"
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", name)
	}
	return d, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// SetPort overrides the port, e.g. from a command line flag.
func (c *EnvConfig) SetPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	c.port = port
	return nil
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

func (c *EnvConfig) SetLogLevel(level string) {
	if level != "" {
		c.logLevel = level
	}
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

func (c *EnvConfig) SetDataDir(dir string) {
	if dir != "" {
		c.dataDir = dir
	}
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// Headless reports whether the tray icon is disabled.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) SetHeadless(headless bool) {
	c.headless = headless
}

func (c *EnvConfig) ImageTimeout() time.Duration {
	return c.imageTimeout
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return c.probeTimeout
}

// EditorURL is the loopback address the API serves the editor page from.
func (c *EnvConfig) EditorURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.port)
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
