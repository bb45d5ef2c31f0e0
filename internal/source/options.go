// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"fmt"
	"strconv"
)

// Options is the parse mapping of a source entry.
type Options map[string]any

// Bool returns the boolean option key or fallback when it is missing. Strings are
// accepted with strconv.ParseBool semantics.
func (o Options) Bool(key string, fallback bool) (bool, error) {
	value, ok := o[key]
	if !ok || value == nil {
		return fallback, nil
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fallback, fmt.Errorf("parse option %s: %w", key, err)
		}
		return parsed, nil
	default:
		return fallback, fmt.Errorf("parse option %s: unexpected %T", key, value)
	}
}

// String returns the string option key or fallback when it is missing.
func (o Options) String(key, fallback string) string {
	value, ok := o[key]
	if !ok || value == nil {
		return fallback
	}
	if v, ok := value.(string); ok {
		return v
	}
	return fmt.Sprint(value)
}
