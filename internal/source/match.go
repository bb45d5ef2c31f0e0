// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeMatch reduces a location name to its lowercase letters and digits with
// diacritics removed, so that "Côte d'Ivoire" and "cote divoire" compare equal.
func NormalizeMatch(value string) string {
	var builder strings.Builder
	builder.Grow(len(value))
	for _, r := range norm.NFD.String(value) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(unicode.ToLower(r))
		}
	}
	return builder.String()
}
