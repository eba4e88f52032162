package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// msDatePattern matches the legacy Microsoft JSON date encoding
// /Date(1325376000000+0100)/ some providers still emit.
var msDatePattern = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// acceptedLayouts are tried in order when parsing provider date strings.
var acceptedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerce converts a resolved raw value to the field's declared kind.
// Nil stays nil; a value that cannot be converted is an error, not a
// silent null.
func coerce(value interface{}, kind Kind) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch kind {
	case KindText, KindID:
		return stringify(value), nil
	case KindNumber:
		return coerceInt(value)
	case KindDecimal:
		return coerceDecimal(value)
	case KindDate, KindDateTime:
		return coerceDate(value)
	case KindBoolean:
		return coerceBool(value)
	default:
		return value, nil
	}
}

func coerceInt(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		if v == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to integer", value)
	}
}

func coerceDecimal(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case string:
		if v == "" {
			return nil, nil
		}
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("not a decimal: %q", v)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to decimal", value)
	}
}

// coerceDate normalizes provider date encodings to an ISO-8601 UTC string.
func coerceDate(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, nil
		}
		if m := msDatePattern.FindStringSubmatch(v); m != nil {
			ms, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad epoch date: %q", v)
			}
			return time.UnixMilli(ms).UTC().Format(time.RFC3339), nil
		}
		for _, layout := range acceptedLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC().Format(time.RFC3339), nil
			}
		}
		return nil, fmt.Errorf("unrecognized date format: %q", v)
	case float64:
		// Bare epoch seconds.
		return time.Unix(int64(v), 0).UTC().Format(time.RFC3339), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to date", value)
	}
}

func coerceBool(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			return nil, fmt.Errorf("not a boolean: %q", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to boolean", value)
	}
}

// stringify renders a scalar leaf for text fields and collection joins.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
