package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates driver configuration values.
type Config struct {
	Driver  DriverConfig
	TOFU    TOFUConfig
	Logging LoggingConfig
}

// DriverConfig describes how to reach and authenticate against a server.
type DriverConfig struct {
	URI             string
	Username        string
	Password        string
	Database        string
	MaxConnections  int
	ConnectTimeout  time.Duration
	SocketTimeout   time.Duration
	IdleConnTimeout time.Duration
}

// TOFUConfig controls trust-on-first-use host verification.
type TOFUConfig struct {
	KnownHostsFile string
	// AlwaysTrust disables verifier prompting and trusts (and persists)
	// every fingerprint it sees. Meant for disposable test databases, never
	// production.
	AlwaysTrust bool
	// InsecureSkipVerify bypasses host verification entirely. Distinct from
	// AlwaysTrust: this neither consults nor updates the known-hosts file.
	InsecureSkipVerify bool
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	Colored       bool
	IncludeCaller bool
}

const (
	defaultConnectTimeout     = 5 * time.Second
	defaultSocketTimeout      = 30 * time.Second
	defaultIdleConnTimeout    = 5 * time.Minute
	defaultMaxConnections     = 10
	defaultLoggingLevel       = "info"
	defaultLoggingFormat      = "text"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Driver: DriverConfig{
			URI:             os.Getenv("COREBOLT_URI"),
			Username:        os.Getenv("COREBOLT_USERNAME"),
			Password:        os.Getenv("COREBOLT_PASSWORD"),
			Database:        valueOrDefault("COREBOLT_DATABASE", ""),
			MaxConnections:  parseIntWithDefault("COREBOLT_MAX_CONNECTIONS", defaultMaxConnections),
			ConnectTimeout:  defaultConnectTimeout,
			SocketTimeout:   defaultSocketTimeout,
			IdleConnTimeout: defaultIdleConnTimeout,
		},
		TOFU: TOFUConfig{
			KnownHostsFile:     os.Getenv("COREBOLT_KNOWN_HOSTS_FILE"),
			AlwaysTrust:        parseBoolWithDefault("COREBOLT_TOFU_ALWAYS_TRUST", false),
			InsecureSkipVerify: parseBoolWithDefault("COREBOLT_TOFU_INSECURE", false),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			Colored:       parseBoolWithDefault("LOG_COLOR", false),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
	}

	if v := os.Getenv("COREBOLT_CONNECT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid COREBOLT_CONNECT_TIMEOUT: %w", err)
		}
		cfg.Driver.ConnectTimeout = d
	}
	if v := os.Getenv("COREBOLT_SOCKET_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid COREBOLT_SOCKET_TIMEOUT: %w", err)
		}
		cfg.Driver.SocketTimeout = d
	}

	return cfg, nil
}

// fileOverrides mirrors the subset of Config an operator may want to pin in
// a checked-in YAML file rather than the environment. Any field left zero
// leaves the base Config's value untouched.
type fileOverrides struct {
	Driver struct {
		URI            string `yaml:"uri"`
		Username       string `yaml:"username"`
		Database       string `yaml:"database"`
		MaxConnections int    `yaml:"max_connections"`
		ConnectTimeout string `yaml:"connect_timeout"`
		SocketTimeout  string `yaml:"socket_timeout"`
	} `yaml:"driver"`
	TOFU struct {
		KnownHostsFile string `yaml:"known_hosts_file"`
		AlwaysTrust    bool   `yaml:"always_trust"`
	} `yaml:"tofu"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// LoadFile layers YAML-configured overrides from path onto base. Secrets
// (passwords) are deliberately not representable in the file format — they
// stay environment-only so a committed config file can't leak one.
func LoadFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var overrides fileOverrides
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg := base
	if overrides.Driver.URI != "" {
		cfg.Driver.URI = overrides.Driver.URI
	}
	if overrides.Driver.Username != "" {
		cfg.Driver.Username = overrides.Driver.Username
	}
	if overrides.Driver.Database != "" {
		cfg.Driver.Database = overrides.Driver.Database
	}
	if overrides.Driver.MaxConnections != 0 {
		cfg.Driver.MaxConnections = overrides.Driver.MaxConnections
	}
	if overrides.Driver.ConnectTimeout != "" {
		d, err := time.ParseDuration(overrides.Driver.ConnectTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid driver.connect_timeout in %s: %w", path, err)
		}
		cfg.Driver.ConnectTimeout = d
	}
	if overrides.Driver.SocketTimeout != "" {
		d, err := time.ParseDuration(overrides.Driver.SocketTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid driver.socket_timeout in %s: %w", path, err)
		}
		cfg.Driver.SocketTimeout = d
	}
	if overrides.TOFU.KnownHostsFile != "" {
		cfg.TOFU.KnownHostsFile = overrides.TOFU.KnownHostsFile
	}
	if overrides.TOFU.AlwaysTrust {
		cfg.TOFU.AlwaysTrust = true
	}
	if overrides.Logging.Level != "" {
		cfg.Logging.Level = overrides.Logging.Level
	}
	if overrides.Logging.Format != "" {
		cfg.Logging.Format = overrides.Logging.Format
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}
