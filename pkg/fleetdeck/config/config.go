// Package config loads fleetdeck settings from YAML or JSON files.
//
// A Config is a decoded settings file addressed by dotted paths such as
// "redis.addr". Accessors report a value of the wrong type as an
// ErrInvalidSettings error naming the path, so a typo in a file is never
// silently replaced by a default. Settings is the validated, typed view the
// CLI and App are built from.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Config is a decoded fleetdeck settings file.
type Config struct {
	data map[string]any
}

// New creates a Config from decoded data. Nested mappings become dotted
// paths. A nil map yields an empty Config.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// lookup walks a dotted path through nested mappings.
func (c Config) lookup(path string) (any, bool) {
	var cur any = c.data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether path is set.
func (c Config) Has(path string) bool {
	_, ok := c.lookup(path)
	return ok
}

// String returns the text at path, or def when path is unset.
func (c Config) String(path, def string) (string, error) {
	v, ok := c.lookup(path)
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return def, typeError(path, "text", v)
	}
	return s, nil
}

// Int returns the whole number at path, or def when path is unset. JSON
// numbers decode as floats and are accepted when they have no fraction.
func (c Config) Int(path string, def int) (int, error) {
	v, ok := c.lookup(path)
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return def, typeError(path, "a whole number", v)
}

// Duration returns the duration at path, or def when path is unset.
// Strings use time.ParseDuration ("5s"); bare numbers are seconds.
func (c Config) Duration(path string, def time.Duration) (time.Duration, error) {
	v, ok := c.lookup(path)
	if !ok {
		return def, nil
	}
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return def, fmt.Errorf("%w: %s: %v", ErrInvalidSettings, path, err)
		}
		return parsed, nil
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	}
	return def, typeError(path, "a duration", v)
}

// Paths returns every leaf path in the file, sorted.
func (c Config) Paths() []string {
	var paths []string
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			if nested, ok := v.(map[string]any); ok {
				walk(p, nested)
				continue
			}
			paths = append(paths, p)
		}
	}
	walk("", c.data)
	sort.Strings(paths)
	return paths
}

func typeError(path, want string, got any) error {
	return fmt.Errorf("%w: %s must be %s, got %T", ErrInvalidSettings, path, want, got)
}
