// Package coerce converts raw result-set values to declared scalar types.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/hydrate-orm/hydrate-go/internal/debug"
)

// Coercer converts a raw column value to a typed value.
// A nil input must be returned as nil without error.
type Coercer func(value any) (any, error)

// Registry maps scalar type names to coercers.
// Lookups for unregistered names fall back to a pass-through coercer.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Coercer
}

// NewRegistry creates a registry pre-populated with the built-in scalar types:
// string, int64, float64, bool, bytes, time and decimal.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Coercer)}
	r.Register("string", toString)
	r.Register("int64", toInt64)
	r.Register("float64", toFloat64)
	r.Register("bool", toBool)
	r.Register("bytes", toBytes)
	r.Register("time", toTime)
	r.Register("decimal", toDecimal)
	return r
}

var (
	defaultRegistry *Registry
	registryOnce    sync.Once
)

// Default returns the shared registry instance.
func Default() *Registry {
	registryOnce.Do(func() { defaultRegistry = NewRegistry() })
	return defaultRegistry
}

// Register adds or replaces a coercer for a type name.
func (r *Registry) Register(name string, c Coercer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		debug.Debug("coerce registry entry replaced", "type", name)
	}
	r.byName[name] = c
}

// Lookup returns the coercer for a type name.
// Unknown names get a pass-through fallback so the raw driver value
// flows through unchanged.
func (r *Registry) Lookup(name string) Coercer {
	r.mu.RLock()
	c, ok := r.byName[name]
	r.mu.RUnlock()
	if ok {
		return c
	}
	debug.Warn("no coercer registered for scalar type, using fallback", "type", name)
	return passthrough
}

func passthrough(value any) (any, error) {
	return value, nil
}

func toString(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return nil, fmt.Errorf("cannot convert %T to string", value)
}

func toInt64(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("uint64 value %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
		return nil, fmt.Errorf("cannot convert non-integral %v to int64", v)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return nil, fmt.Errorf("cannot convert %T to int64", value)
}

func toFloat64(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return nil, fmt.Errorf("cannot convert %T to float64", value)
}

func toBool(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	}
	return nil, fmt.Errorf("cannot convert %T to bool", value)
}

func toBytes(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("cannot convert %T to bytes", value)
}

func toTime(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v, nil
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	case int64:
		return time.Unix(v, 0).UTC(), nil
	}
	return nil, fmt.Errorf("cannot convert %T to time", value)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}

func toDecimal(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case Decimal:
		return v, nil
	case string:
		return NewDecimal(v), nil
	case []byte:
		return NewDecimal(string(v)), nil
	case int64:
		return NewDecimal(strconv.FormatInt(v, 10)), nil
	case float64:
		return NewDecimal(strconv.FormatFloat(v, 'f', -1, 64)), nil
	}
	return nil, fmt.Errorf("cannot convert %T to decimal", value)
}
