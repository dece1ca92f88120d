// Package config loads the bridge configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xhd2015/psdebug-mcp/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Events  EventsConfig  `yaml:"events"`
}

type BackendConfig struct {
	// Address is the default runtime service address for new sessions.
	Address     string        `yaml:"address"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	CallTimeout time.Duration `yaml:"callTimeout"`
}

type ServerConfig struct {
	// Listen selects SSE on the given address; empty means stdio.
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	File string `yaml:"file"`
	// Level is the minimum level written: debug, info, warn or error.
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	// Listen serves /metrics on the given address; empty disables it.
	Listen string `yaml:"listen"`
}

type EventsConfig struct {
	QueueSize int `yaml:"queueSize"`
	// Output, when set, is a file that receives every DAP event as a wire frame.
	Output string `yaml:"output"`
}

// Default returns the built-in configuration.
func Default() Config {
	logFile := "psdebug-mcp.log"
	if home, err := os.UserHomeDir(); err == nil {
		logFile = filepath.Join(home, ".psdebug-mcp", "psdebug-mcp.log")
	}
	return Config{
		Backend: BackendConfig{
			Address:     "127.0.0.1:12764",
			DialTimeout: 10 * time.Second,
			CallTimeout: 30 * time.Second,
		},
		Log:    LogConfig{File: logFile, Level: "info"},
		Events: EventsConfig{QueueSize: 256},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		Merge(&cfg, parsed)
	}
	ApplyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

// Merge copies the non-zero fields of src into dst.
func Merge(dst *Config, src Config) {
	if src.Backend.Address != "" {
		dst.Backend.Address = src.Backend.Address
	}
	if src.Backend.DialTimeout > 0 {
		dst.Backend.DialTimeout = src.Backend.DialTimeout
	}
	if src.Backend.CallTimeout > 0 {
		dst.Backend.CallTimeout = src.Backend.CallTimeout
	}
	if src.Server.Listen != "" {
		dst.Server.Listen = src.Server.Listen
	}
	if src.Log.File != "" {
		dst.Log.File = src.Log.File
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Metrics.Listen != "" {
		dst.Metrics.Listen = src.Metrics.Listen
	}
	if src.Events.QueueSize > 0 {
		dst.Events.QueueSize = src.Events.QueueSize
	}
	if src.Events.Output != "" {
		dst.Events.Output = src.Events.Output
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PSDEBUG_BACKEND_ADDR")); v != "" {
		cfg.Backend.Address = v
	}
	if v := strings.TrimSpace(os.Getenv("PSDEBUG_CALL_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.CallTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("PSDEBUG_LISTEN")); v != "" {
		cfg.Server.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("PSDEBUG_LOG_FILE")); v != "" {
		cfg.Log.File = v
	}
	if v := strings.TrimSpace(os.Getenv("PSDEBUG_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("PSDEBUG_EVENT_OUTPUT")); v != "" {
		cfg.Events.Output = v
	}
	if v := strings.TrimSpace(os.Getenv("PSDEBUG_METRICS_LISTEN")); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("PSDEBUG_EVENT_QUEUE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Events.QueueSize = n
		}
	}
}

func (c Config) Validate() error {
	if c.Backend.DialTimeout <= 0 {
		return fmt.Errorf("backend.dialTimeout must be positive")
	}
	if c.Backend.CallTimeout < 0 {
		return fmt.Errorf("backend.callTimeout must not be negative")
	}
	if c.Log.File == "" {
		return fmt.Errorf("log.file is required")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
