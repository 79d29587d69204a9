package records

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// coerce converts a decoded JSON value to the Go type bound for f.
// A nil result means SQL NULL.
func coerce(f Field, v any) (any, error) {
	if v == nil {
		if !f.nullable() {
			return nil, fmt.Errorf("%w: %s cannot be null", ErrInvalidValue, f.Name)
		}
		return nil, nil
	}

	switch f.Type {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, invalid(f, v)
		}
		if f.Required && strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: %s must not be empty", ErrInvalidValue, f.Name)
		}
		return s, nil

	case Integer:
		n, ok := toFloat(v)
		if !ok || n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return nil, invalid(f, v)
		}
		return int64(n), nil

	case Number:
		n, ok := toFloat(v)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, invalid(f, v)
		}
		return n, nil

	case UUID:
		switch t := v.(type) {
		case uuid.UUID:
			return t, nil
		case string:
			id, err := uuid.Parse(t)
			if err != nil {
				return nil, invalid(f, v)
			}
			return id, nil
		}
		return nil, invalid(f, v)

	case Timestamp:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			ts, err := time.Parse(time.RFC3339, t)
			if err != nil {
				return nil, invalid(f, v)
			}
			return ts, nil
		}
		return nil, invalid(f, v)
	}
	return nil, invalid(f, v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func invalid(f Field, v any) error {
	return fmt.Errorf("%w: %s must be %s, got %T", ErrInvalidValue, f.Name, f.Type, v)
}
