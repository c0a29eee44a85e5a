// Package util provides common utility functions used across the keeper.
package util

import (
	"fmt"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// Contains reports whether slice contains str.
func Contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

// ParseStringArray splits a bracketed host array into its top-level elements.
// Nested arrays and quoted strings stay intact, so `[1,["a","b"],"c,d"]`
// yields `1`, `["a","b"]`, `"c,d"`. An empty array yields a nil slice.
func ParseStringArray(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("not a bracketed array: %q", s)
	}
	inner := s[1 : len(s)-1]
	if strings.TrimSpace(inner) == "" {
		return nil, nil
	}

	var (
		elems  []string
		depth  int
		quoted bool
		start  int
	)
	for i := 0; i < len(inner); i++ {
		switch c := inner[i]; {
		case c == '"':
			quoted = !quoted
		case quoted:
			// commas and brackets inside quoted strings are literal
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == ',' && depth == 0:
			elems = append(elems, strings.TrimSpace(inner[start:i]))
			start = i + 1
		}
	}
	if quoted || depth != 0 {
		return nil, fmt.Errorf("unbalanced array: %q", s)
	}
	elems = append(elems, strings.TrimSpace(inner[start:]))
	return elems, nil
}
