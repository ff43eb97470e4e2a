package strategies

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrBadParam        = errors.New("bad strategy parameter")
)

// Params are free form strategy parameters as decoded from YAML or JSON.
type Params map[string]any

// reader pulls typed values out of Params and keeps the first error.
type reader struct {
	p   Params
	err error
}

func (r *reader) fail(key string, v any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s=%v (%T)", ErrBadParam, key, v, v)
	}
}

func (r *reader) Float(key string, def float64) float64 {
	v, ok := r.p[key]
	if !ok || v == nil {
		return def
	}
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err == nil {
			return f
		}
	}
	r.fail(key, v)
	return def
}

func (r *reader) Int(key string, def int) int {
	v, ok := r.p[key]
	if !ok || v == nil {
		return def
	}
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case uint64:
		return int(x)
	case float64:
		if x == float64(int(x)) {
			return int(x)
		}
	case string:
		n, err := strconv.Atoi(x)
		if err == nil {
			return n
		}
	}
	r.fail(key, v)
	return def
}

func (r *reader) Int64(key string, def int64) int64 {
	v, ok := r.p[key]
	if !ok || v == nil {
		return def
	}
	switch x := v.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	case uint64:
		return int64(x)
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err == nil {
			return n
		}
	}
	r.fail(key, v)
	return def
}

func (r *reader) Bool(key string, def bool) bool {
	v, ok := r.p[key]
	if !ok || v == nil {
		return def
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(x)
		if err == nil {
			return b
		}
	}
	r.fail(key, v)
	return def
}

func (r *reader) String(key string, def string) string {
	v, ok := r.p[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	r.fail(key, v)
	return def
}
