// Package config loads and validates blebridge's configuration file
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values, named the way niac-go names its DefaultXxx constants.
const (
	DefaultRXPort          = 5001
	DefaultTXPort          = 5000
	DefaultAdapterIndex    = 0
	DefaultStatusAddr      = "127.0.0.1:8734"
	DefaultStoragePath     = "~/.blebridge/history.db"
	DefaultConnInterval    = 0x0018 // 30ms in 1.25ms units
	DefaultConnLatency     = 0
	DefaultConnTimeout     = 0x00C8 // 2s in 10ms units
	DefaultPollTimeout     = 100 * time.Millisecond
	DefaultStatusRateLimit = 20 // requests/sec per remote IP
	DefaultStatusBurst     = 40
)

// Config is the bridge's top-level configuration.
type Config struct {
	// Transport addresses/ports, §6 of the spec.
	RXPort  int `yaml:"rx_port"`
	TXPort  int `yaml:"tx_port"`
	Adapter int `yaml:"adapter"`

	// Host transport selection.
	DryRun          bool `yaml:"dry_run"`
	NoObjectManager bool `yaml:"no_object_manager"`
	NoFallback      bool `yaml:"no_fallback"`

	// Default connection timing. These are loaded and defaulted here, but
	// nothing else in the bridge reads them: a connection's timing is always
	// copied from the host's Connection Complete event.
	DefaultInterval time.Duration `yaml:"-"`
	DefaultLatency  uint16        `yaml:"default_latency"`
	DefaultTimeout  time.Duration `yaml:"-"`

	// Ambient visibility.
	StatusAddr  string `yaml:"status_addr"`
	StatusToken string `yaml:"status_token"`
	StoragePath string `yaml:"storage_path"`

	// Logging.
	NoColor    bool `yaml:"no_color"`
	DebugLevel int  `yaml:"debug_level"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		RXPort:          DefaultRXPort,
		TXPort:          DefaultTXPort,
		Adapter:         DefaultAdapterIndex,
		DefaultInterval: time.Duration(DefaultConnInterval) * 1250 * time.Microsecond,
		DefaultLatency:  DefaultConnLatency,
		DefaultTimeout:  time.Duration(DefaultConnTimeout) * 10 * time.Millisecond,
		StatusAddr:      DefaultStatusAddr,
		StoragePath:     DefaultStoragePath,
	}
}

// Load reads and parses a YAML configuration file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", filename, err)
	}
	return LoadYAMLBytes(data)
}

// LoadYAMLBytes parses inline YAML bytes (used by Load and by tests),
// merging defaults for anything the document omits.
func LoadYAMLBytes(data []byte) (*Config, error) {
	cfg := Default()

	var raw struct {
		RXPort          *int    `yaml:"rx_port"`
		TXPort          *int    `yaml:"tx_port"`
		Adapter         *int    `yaml:"adapter"`
		DryRun          *bool   `yaml:"dry_run"`
		NoObjectManager *bool   `yaml:"no_object_manager"`
		NoFallback      *bool   `yaml:"no_fallback"`
		DefaultLatency  *uint16 `yaml:"default_latency"`
		StatusAddr      *string `yaml:"status_addr"`
		StatusToken     *string `yaml:"status_token"`
		StoragePath     *string `yaml:"storage_path"`
		NoColor         *bool   `yaml:"no_color"`
		DebugLevel      *int    `yaml:"debug_level"`
	}

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if raw.RXPort != nil {
		cfg.RXPort = *raw.RXPort
	}
	if raw.TXPort != nil {
		cfg.TXPort = *raw.TXPort
	}
	if raw.Adapter != nil {
		cfg.Adapter = *raw.Adapter
	}
	if raw.DryRun != nil {
		cfg.DryRun = *raw.DryRun
	}
	if raw.NoObjectManager != nil {
		cfg.NoObjectManager = *raw.NoObjectManager
	}
	if raw.NoFallback != nil {
		cfg.NoFallback = *raw.NoFallback
	}
	if raw.DefaultLatency != nil {
		cfg.DefaultLatency = *raw.DefaultLatency
	}
	if raw.StatusAddr != nil {
		cfg.StatusAddr = *raw.StatusAddr
	}
	if raw.StatusToken != nil {
		cfg.StatusToken = *raw.StatusToken
	}
	if raw.StoragePath != nil {
		cfg.StoragePath = *raw.StoragePath
	}
	if raw.NoColor != nil {
		cfg.NoColor = *raw.NoColor
	}
	if raw.DebugLevel != nil {
		cfg.DebugLevel = *raw.DebugLevel
	}

	return cfg, nil
}

// ExpandStoragePath resolves a leading ~ against the user's home directory,
// same behavior as the teacher's daemon.expandPath.
func ExpandStoragePath(path string) string {
	if strings.EqualFold(path, "disabled") || path == "" {
		return path
	}
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Clean(path)
}
