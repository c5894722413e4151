package config

import (
	"maps"
	"strconv"
	"strings"
	"time"
)

// Config is a loosely typed view over a decoded settings document.
// Keys may be dotted paths ("llm.endpoint") into nested maps. Accessors
// return the supplied default when a key is absent or its value does not
// convert.
type Config struct {
	data map[string]any
}

// New creates a Config from data. A nil map yields an empty Config.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// lookup resolves a plain or dotted key.
func (c Config) lookup(key string) (any, bool) {
	if v, ok := c.data[key]; ok {
		return v, true
	}
	var cur any = c.data
	for _, part := range strings.Split(key, ".") {
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

// Has reports whether key resolves to a value.
func (c Config) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// String returns the string at key.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c.lookup(key); ok {
		if s, ok := s.(string); ok {
			return s
		}
	}
	return defaultVal
}

// Bool returns the boolean at key. Strings accepted by strconv.ParseBool
// also convert, so environment overrides work.
func (c Config) Bool(key string, defaultVal bool) bool {
	v, _ := c.lookup(key)
	switch val := v.(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// Int returns the integer at key. Floats convert only when whole;
// numeric strings are parsed.
func (c Config) Int(key string, defaultVal int) int {
	v, _ := c.lookup(key)
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// Float returns the number at key.
func (c Config) Float(key string, defaultVal float64) float64 {
	v, _ := c.lookup(key)
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// Duration returns the duration at key. Strings are parsed with
// time.ParseDuration; bare numbers count seconds.
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	v, _ := c.lookup(key)
	switch val := v.(type) {
	case time.Duration:
		return val
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case float64:
		return time.Duration(val * float64(time.Second))
	}
	return defaultVal
}

// Merge returns a Config holding c's top-level keys overlaid by over's.
func (c Config) Merge(over Config) Config {
	merged := maps.Clone(c.data)
	maps.Copy(merged, over.data)
	return New(merged)
}

// Raw returns the underlying map. Callers must not modify it.
func (c Config) Raw() map[string]any {
	return c.data
}
