// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mia-platform/odp/internal/config"
)

var (
	// ErrCast reports a value that cannot be represented with the requested schema type.
	ErrCast = errors.New("cannot cast value")
	// ErrUnknownType reports a schema type outside the supported set.
	ErrUnknownType = errors.New("unknown schema type")
)

// Cast converts value to the Go representation of a schema type: string for str,
// int64 for int and float64 for float. Empty strings and NaN become nil.
func Cast(value any, typ string) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch typ {
	case config.TypeString:
		return castString(value), nil
	case config.TypeInt:
		return castInt(value)
	case config.TypeFloat:
		return castFloat(value)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
}

func castString(value any) any {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if math.IsNaN(v) {
			return nil
		}
	}
	return FormatValue(value)
}

func castInt(value any) (any, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return floatToInt(v)
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		text := strings.TrimSpace(v)
		if text == "" || strings.EqualFold(text, "nan") {
			return nil, nil
		}
		parsed, err := strconv.ParseInt(text, 10, 64)
		switch {
		case err == nil:
			return parsed, nil
		case errors.Is(err, strconv.ErrRange):
			return nil, fmt.Errorf("%w: %q out of int range", ErrCast, v)
		}
		floatValue, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as int", ErrCast, v)
		}
		return floatToInt(floatValue)
	default:
		return nil, fmt.Errorf("%w: %T as int", ErrCast, value)
	}
}

// maxIntFloat is 2^63, the first float64 above the int64 range.
const maxIntFloat = float64(1 << 63)

func floatToInt(v float64) (any, error) {
	switch {
	case math.IsNaN(v):
		return nil, nil
	case math.IsInf(v, 0) || v != math.Trunc(v):
		return nil, fmt.Errorf("%w: %v as int", ErrCast, v)
	case v >= maxIntFloat || v < -maxIntFloat:
		return nil, fmt.Errorf("%w: %v out of int range", ErrCast, v)
	}
	return int64(v), nil
}

func castFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) {
			return nil, nil
		}
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as float", ErrCast, v)
		}
		if math.IsNaN(parsed) {
			return nil, nil
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("%w: %T as float", ErrCast, value)
	}
}

// FormatValue renders a cell as text; nil is the empty string.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Conform projects t onto the schema columns in schema order and casts every value to
// its declared type. Columns absent from t are filled with nil; values failing the cast
// become nil and are counted in the returned total.
func Conform(t *Table, schema []config.SchemaField) (*Table, int, error) {
	columns := make([]string, 0, len(schema))
	for _, field := range schema {
		columns = append(columns, field.Name)
	}

	projected := t.Select(columns...)
	failures := 0
	for _, row := range projected.Rows {
		for i, field := range schema {
			value, err := Cast(row[i], field.Type)
			if errors.Is(err, ErrUnknownType) {
				return nil, 0, err
			}
			if err != nil {
				failures++
			}
			row[i] = value
		}
	}

	return projected, failures, nil
}
