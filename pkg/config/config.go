// Package config loads the optional TOML configuration file. Every
// setting has a working default, so running without a file is fine;
// CLI flags override file values.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/semwebtools/rdfproxy/pkg/errors"
)

// Config is the full application configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Cache  CacheConfig  `toml:"cache"`
	Fetch  FetchConfig  `toml:"fetch"`
	Tools  ToolsConfig  `toml:"tools"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `toml:"addr"`

	// PreferConversion makes the proxy try converting a cached sibling
	// serialization before re-downloading, unless a request overrides
	// the policy.
	PreferConversion bool `toml:"prefer_conversion"`
}

// CacheConfig selects and configures the cache store.
type CacheConfig struct {
	// Backend is one of "file", "redis", "mongo", "null".
	Backend string `toml:"backend"`

	// Dir is the root directory of the file backend.
	Dir string `toml:"dir"`

	Redis RedisConfig `toml:"redis"`
	Mongo MongoConfig `toml:"mongo"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	TTL      Duration `toml:"ttl"`
}

// MongoConfig configures the mongodb backend.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// FetchConfig configures the upstream HTTP fetcher.
type FetchConfig struct {
	Timeout     Duration `toml:"timeout"`
	Attempts    int      `toml:"attempts"`
	MaxBodySize int64    `toml:"max_body_size"`
	UserAgent   string   `toml:"user_agent"`
}

// ToolsConfig configures the external conversion tools.
type ToolsConfig struct {
	// Dir is the scratch directory for tool exchange files.
	Dir string `toml:"dir"`

	// Timeout bounds one tool invocation.
	Timeout Duration `toml:"timeout"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format"`
}

// Duration lets TOML carry Go duration strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":3032",
		},
		Cache: CacheConfig{
			Backend: "file",
			Dir:     defaultCacheDir(),
		},
		Fetch: FetchConfig{
			Timeout:  Duration(30 * time.Second),
			Attempts: 3,
		},
		Tools: ToolsConfig{
			Timeout: Duration(2 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "rdfproxy")
	}
	return filepath.Join(os.TempDir(), "rdfproxy-cache")
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "loading config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.New(errors.ErrCodeInvalidConfig,
			"unknown config key %q in %s", undecoded[0].String(), path)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "file", "redis", "mongo", "null":
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"invalid cache backend %q: want file, redis, mongo or null", c.Cache.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid log format %q", c.Log.Format)
	}
	return nil
}
