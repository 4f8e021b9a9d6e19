// Package config loads the service configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/bistro-cache/pkg/coalesce"
	"github.com/Sternrassler/bistro-cache/pkg/etag"
	"github.com/Sternrassler/bistro-cache/pkg/logging"
	"github.com/Sternrassler/bistro-cache/pkg/transform"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Media    MediaConfig    `yaml:"media"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	Seed bool   `yaml:"seed"`
}

// MediaConfig configures the source image directory.
type MediaConfig struct {
	Dir string `yaml:"dir"`
}

// TTLConfig holds the response cache TTL per namespace.
type TTLConfig struct {
	Categories time.Duration `yaml:"categories"`
	MenuItems  time.Duration `yaml:"menuItems"`
	Orders     time.Duration `yaml:"orders"`
}

// CacheConfig configures the caching layer.
type CacheConfig struct {
	// SweepInterval is how often expired entries are swept; 0 disables sweeping.
	SweepInterval time.Duration `yaml:"sweepInterval"`

	// CoalesceTimeout bounds a single producer run.
	CoalesceTimeout time.Duration `yaml:"coalesceTimeout"`

	TTL TTLConfig `yaml:"ttl"`

	// TransformCapacity is the maximum number of derived artifacts kept.
	TransformCapacity int `yaml:"transformCapacity"`

	// ETagHash names the fingerprint function ("md5" or "xxhash").
	ETagHash string `yaml:"etagHash"`
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    45 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  string(logging.LevelInfo),
			Pretty: false,
		},
		Database: DatabaseConfig{
			Path: "bistro.db",
			Seed: true,
		},
		Media: MediaConfig{
			Dir: "media",
		},
		Cache: CacheConfig{
			SweepInterval:   time.Minute,
			CoalesceTimeout: coalesce.DefaultTimeout,
			TTL: TTLConfig{
				Categories: time.Hour,
				MenuItems:  time.Hour,
				Orders:     30 * time.Second,
			},
			TransformCapacity: transform.DefaultCapacity,
			ETagHash:          etag.HashMD5,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: "PORT", Message: fmt.Sprintf("not a number: %q", v)}
		}
		c.Server.Port = port
	}
	if v, ok := lookup("DB_PATH"); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := lookup("MEDIA_DIR"); ok && v != "" {
		c.Media.Dir = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_PRETTY"); ok && v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Field: "LOG_PRETTY", Message: fmt.Sprintf("not a boolean: %q", v)}
		}
		c.Log.Pretty = pretty
	}
	if v, ok := lookup("ETAG_HASH"); ok && v != "" {
		c.Cache.ETagHash = strings.ToLower(v)
	}
	return nil
}

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 1 || c.Server.Port > 65535:
		return &ConfigError{Field: "server.port", Message: fmt.Sprintf("out of range: %d", c.Server.Port)}
	case c.Server.ShutdownTimeout <= 0:
		return &ConfigError{Field: "server.shutdownTimeout", Message: "must be positive"}
	case c.Database.Path == "":
		return &ConfigError{Field: "database.path", Message: "must not be empty"}
	case c.Media.Dir == "":
		return &ConfigError{Field: "media.dir", Message: "must not be empty"}
	case c.Cache.SweepInterval < 0:
		return &ConfigError{Field: "cache.sweepInterval", Message: "must not be negative"}
	case c.Cache.CoalesceTimeout <= 0:
		return &ConfigError{Field: "cache.coalesceTimeout", Message: "must be positive"}
	case c.Cache.TTL.Categories <= 0:
		return &ConfigError{Field: "cache.ttl.categories", Message: "must be positive"}
	case c.Cache.TTL.MenuItems <= 0:
		return &ConfigError{Field: "cache.ttl.menuItems", Message: "must be positive"}
	case c.Cache.TTL.Orders <= 0:
		return &ConfigError{Field: "cache.ttl.orders", Message: "must be positive"}
	case c.Cache.TransformCapacity < 1:
		return &ConfigError{Field: "cache.transformCapacity", Message: "must be at least 1"}
	}

	if _, known := logging.ParseLevel(c.Log.Level); !known {
		return &ConfigError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	if _, err := etag.FingerprintByName(c.Cache.ETagHash); err != nil {
		return &ConfigError{Field: "cache.etagHash", Message: err.Error()}
	}
	return nil
}

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	var cerr *ConfigError
	return errors.As(err, &cerr)
}

// Logging converts the log section into a logging.Config.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.Log.Level))
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}
