// Package config loads the feedsync CLI configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as a Go duration string ("500ms").
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// RemoteConfig selects the collection service.
type RemoteConfig struct {
	Mode    string   `toml:"mode"`     // "mem" or "http"
	BaseURL string   `toml:"base_url"` // http mode only
	Timeout Duration `toml:"timeout"`
	Latency Duration `toml:"latency"` // mem mode only; simulated per call
	Seed    bool     `toml:"seed"`    // mem mode only; load demo records
}

// CacheConfig configures the entity cache in front of the remote.
type CacheConfig struct {
	Provider     string   `toml:"provider"` // "none", "ristretto", "bigcache" or "redis"
	Codec        string   `toml:"codec"`    // "json", "cbor", "msgpack" or "protobuf"
	Namespace    string   `toml:"namespace"`
	TTL          Duration `toml:"ttl"`
	MaxCost      int64    `toml:"max_cost"` // ristretto
	RedisAddr    string   `toml:"redis_addr"`
	GenRetention Duration `toml:"gen_retention"`
}

// SessionConfig names the signed-in user.
type SessionConfig struct {
	UserID   string `toml:"user_id"`
	Username string `toml:"username"`
}

// LogConfig configures logging. The CLI always logs through zap; Backend
// picks the adapter the store and the data layer log through.
type LogConfig struct {
	Level   string `toml:"level"`   // debug, info, warn, error
	Format  string `toml:"format"`  // "auto", "console" or "json"
	Backend string `toml:"backend"` // "zap", "logrus", "slog" or "glog"
}

// FeedConfig tunes the store and the feed.
type FeedConfig struct {
	Debounce     Duration `toml:"debounce"`
	FetchTimeout Duration `toml:"fetch_timeout"`
	AwaitRefetch bool     `toml:"await_refetch"`
}

// TelemetryConfig enables metrics and tracing.
type TelemetryConfig struct {
	Metrics bool `toml:"metrics"`
	Tracing bool `toml:"tracing"`
}

// Config holds the feedsync configuration.
type Config struct {
	Remote    RemoteConfig    `toml:"remote"`
	Cache     CacheConfig     `toml:"cache"`
	Session   SessionConfig   `toml:"session"`
	Log       LogConfig       `toml:"log"`
	Feed      FeedConfig      `toml:"feed"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// Default returns the default configuration: in-memory demo service, no
// entity cache, info logging.
func Default() Config {
	return Config{
		Remote: RemoteConfig{
			Mode:    "mem",
			Timeout: Duration{30 * time.Second},
			Seed:    true,
		},
		Cache: CacheConfig{
			Provider:     "none",
			Codec:        "json",
			Namespace:    "feedsync",
			TTL:          Duration{10 * time.Minute},
			MaxCost:      64 << 20,
			RedisAddr:    "localhost:6379",
			GenRetention: Duration{30 * 24 * time.Hour},
		},
		Session: SessionConfig{UserID: "u1", Username: "ann"},
		Log:     LogConfig{Level: "info", Format: "auto", Backend: "zap"},
		Feed: FeedConfig{
			Debounce:     Duration{500 * time.Millisecond},
			FetchTimeout: Duration{30 * time.Second},
		},
	}
}

// Path returns ~/.config/feedsync/config.toml.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "feedsync", "config.toml"), nil
}

// Load reads the config at path, or at Path() when path is empty. Keys the
// file leaves out keep their defaults. A missing file at the default path is
// not an error; a missing file that was asked for by name is.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return Default(), fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Default(), fmt.Errorf("failed to parse config file: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return Default(), fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

var (
	remoteModes = []string{"mem", "http"}
	providers   = []string{"none", "ristretto", "bigcache", "redis"}
	codecs      = []string{"json", "cbor", "msgpack", "protobuf"}
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"auto", "console", "json"}
	logBackends = []string{"zap", "logrus", "slog", "glog"}
)

// Validate checks enumerations and cross-field requirements.
func (c Config) Validate() error {
	if err := oneOf("remote.mode", c.Remote.Mode, remoteModes); err != nil {
		return err
	}
	if c.Remote.Mode == "http" && c.Remote.BaseURL == "" {
		return errors.New("remote.base_url is required when remote.mode is \"http\"")
	}
	if c.Remote.Timeout.Duration <= 0 {
		return fmt.Errorf("remote.timeout must be positive, got %s", c.Remote.Timeout)
	}
	if err := oneOf("cache.provider", c.Cache.Provider, providers); err != nil {
		return err
	}
	if err := oneOf("cache.codec", c.Cache.Codec, codecs); err != nil {
		return err
	}
	if c.Cache.Provider == "ristretto" && c.Cache.MaxCost <= 0 {
		return fmt.Errorf("cache.max_cost must be positive, got %d", c.Cache.MaxCost)
	}
	if c.Cache.Provider == "redis" && c.Cache.RedisAddr == "" {
		return errors.New("cache.redis_addr is required when cache.provider is \"redis\"")
	}
	if c.Cache.Provider == "bigcache" && c.Cache.TTL.Duration <= 0 {
		return errors.New("cache.ttl must be positive for bigcache")
	}
	if err := oneOf("log.level", c.Log.Level, logLevels); err != nil {
		return err
	}
	if err := oneOf("log.format", c.Log.Format, logFormats); err != nil {
		return err
	}
	if err := oneOf("log.backend", c.Log.Backend, logBackends); err != nil {
		return err
	}
	if c.Feed.Debounce.Duration < 0 || c.Feed.FetchTimeout.Duration < 0 {
		return errors.New("feed durations must not be negative")
	}
	if (c.Session.UserID == "") != (c.Session.Username == "") {
		return errors.New("session.user_id and session.username must be set together")
	}
	return nil
}

func oneOf(field, v string, allowed []string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: must be one of %s", field, v, strings.Join(allowed, ", "))
}

// DefaultConfig returns a commented config file carrying the defaults.
func DefaultConfig() string { return defaultConfig }

const defaultConfig = `# feedsync configuration

[remote]
# "mem" runs an in-process demo service; "http" talks to base_url
mode = "mem"
# base_url = "http://localhost:8080"
timeout = "30s"
# latency = "150ms"
seed = true

[cache]
# entity cache for single record reads: none, ristretto, bigcache or redis
provider = "none"
codec = "json"
namespace = "feedsync"
ttl = "10m"
max_cost = 67108864
redis_addr = "localhost:6379"
gen_retention = "720h"

[session]
user_id = "u1"
username = "ann"

[log]
level = "info"
# auto picks console on a terminal and json otherwise
format = "auto"
# adapter the data layer logs through: zap, logrus, slog or glog
backend = "zap"

[feed]
debounce = "500ms"
fetch_timeout = "30s"
await_refetch = false

[telemetry]
metrics = false
tracing = false
`
