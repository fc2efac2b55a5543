package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Backend names the record service implementation.
type Backend string

// Supported backends.
const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// RedisSettings configures the Redis record backend.
type RedisSettings struct {
	Addr      string
	DB        int
	Namespace string
}

// Settings is the validated configuration for a fleetdeck application.
type Settings struct {
	Backend    Backend
	SQLitePath string
	Redis      RedisSettings

	// FetchTimeout bounds a single query fetch. Zero means no bound.
	FetchTimeout time.Duration

	// SaveTimeout bounds a single batch save. Zero means no bound.
	SaveTimeout time.Duration

	LogLevel slog.Level

	// SeedFile optionally names a YAML file of boats loaded at startup.
	SeedFile string
}

// ErrInvalidSettings is wrapped by every LoadSettings validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// DefaultSettings returns settings for an in-memory backend.
func DefaultSettings() Settings {
	return Settings{
		Backend:      BackendMemory,
		SQLitePath:   "fleetdeck.db",
		Redis:        RedisSettings{Addr: "localhost:6379", Namespace: "default"},
		FetchTimeout: 10 * time.Second,
		SaveTimeout:  30 * time.Second,
		LogLevel:     slog.LevelInfo,
	}
}

// knownPaths lists every setting LoadSettings reads.
var knownPaths = map[string]bool{
	"backend":         true,
	"sqlite.path":     true,
	"redis.addr":      true,
	"redis.db":        true,
	"redis.namespace": true,
	"timeouts.fetch":  true,
	"timeouts.save":   true,
	"log_level":       true,
	"seed_file":       true,
}

// LoadSettings builds Settings from a Config, applying defaults for
// missing keys. Unknown keys and values of the wrong type are rejected.
//
// Recognised layout:
//
//	backend: sqlite          # memory | sqlite | redis
//	sqlite:
//	  path: ./boats.db
//	redis:
//	  addr: localhost:6379
//	  db: 0
//	  namespace: demo
//	timeouts:
//	  fetch: 5s
//	  save: 10s
//	log_level: debug
//	seed_file: boats.yaml
func LoadSettings(c Config) (Settings, error) {
	for _, p := range c.Paths() {
		if !knownPaths[p] {
			return Settings{}, fmt.Errorf("%w: unknown setting %q", ErrInvalidSettings, p)
		}
	}

	s := DefaultSettings()
	var errs []error
	str := func(path string, dst *string) {
		v, err := c.String(path, *dst)
		errs = append(errs, err)
		*dst = v
	}
	dur := func(path string, dst *time.Duration) {
		v, err := c.Duration(path, *dst)
		errs = append(errs, err)
		*dst = v
	}

	backend := string(s.Backend)
	str("backend", &backend)
	s.Backend = Backend(strings.ToLower(backend))
	str("sqlite.path", &s.SQLitePath)
	str("redis.addr", &s.Redis.Addr)
	str("redis.namespace", &s.Redis.Namespace)
	db, err := c.Int("redis.db", s.Redis.DB)
	errs = append(errs, err)
	s.Redis.DB = db
	dur("timeouts.fetch", &s.FetchTimeout)
	dur("timeouts.save", &s.SaveTimeout)
	str("seed_file", &s.SeedFile)

	level := ""
	str("log_level", &level)
	if err := errors.Join(errs...); err != nil {
		return Settings{}, err
	}
	if level != "" {
		if err := s.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return Settings{}, fmt.Errorf("%w: log_level: %v", ErrInvalidSettings, err)
		}
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the settings for internal consistency.
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendMemory:
	case BackendSQLite:
		if s.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite.path is required for the sqlite backend", ErrInvalidSettings)
		}
	case BackendRedis:
		if s.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr is required for the redis backend", ErrInvalidSettings)
		}
		if s.Redis.Namespace == "" {
			return fmt.Errorf("%w: redis.namespace cannot be empty", ErrInvalidSettings)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidSettings, s.Backend)
	}

	if s.FetchTimeout < 0 || s.SaveTimeout < 0 {
		return fmt.Errorf("%w: timeouts cannot be negative", ErrInvalidSettings)
	}
	return nil
}
