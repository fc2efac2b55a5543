package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that may appear in settings files
// and that override settings.
const EnvPrefix = "FLEETDECK_"

// EnvOverrides maps environment variables to the setting paths they
// replace.
var EnvOverrides = map[string]string{
	EnvPrefix + "BACKEND":         "backend",
	EnvPrefix + "SQLITE_PATH":     "sqlite.path",
	EnvPrefix + "REDIS_ADDR":      "redis.addr",
	EnvPrefix + "REDIS_NAMESPACE": "redis.namespace",
	EnvPrefix + "FETCH_TIMEOUT":   "timeouts.fetch",
	EnvPrefix + "SAVE_TIMEOUT":    "timeouts.save",
	EnvPrefix + "LOG_LEVEL":       "log_level",
	EnvPrefix + "SEED_FILE":       "seed_file",
}

// FromFile loads a settings file, choosing the format by extension
// (.yaml, .yml or .json).
//
// ${FLEETDECK_*} references are expanded from the environment before
// parsing. Other $ references are left as written.
func FromFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	data := []byte(expandEnv(string(raw), os.LookupEnv))

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses a YAML settings document.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses a JSON settings document.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// WithEnv returns a copy of c with every variable in EnvOverrides that
// lookup finds written over its setting path. Pass os.LookupEnv in
// production.
func WithEnv(c Config, lookup func(string) (string, bool)) Config {
	out := New(copyMap(c.data))
	for env, path := range EnvOverrides {
		if v, ok := lookup(env); ok {
			out.set(path, v)
		}
	}
	return out
}

func (c Config) set(path string, value any) {
	parts := strings.Split(path, ".")
	m := c.data
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

func copyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if nested, ok := v.(map[string]any); ok {
			v = copyMap(nested)
		}
		dst[k] = v
	}
	return dst
}

func expandEnv(s string, lookup func(string) (string, bool)) string {
	return os.Expand(s, func(name string) string {
		if !strings.HasPrefix(name, EnvPrefix) {
			return "${" + name + "}"
		}
		v, _ := lookup(name)
		return v
	})
}
