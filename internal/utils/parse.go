// Package utils holds small parsing helpers for request values.
package utils

import (
	"strconv"
	"strings"
)

// ParseInt parses a base-10 integer after trimming surrounding whitespace.
// ok is false for blank, malformed or out-of-range input.
func ParseInt(s string) (n int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseIntDefault is ParseInt with a fallback for unusable input.
func ParseIntDefault(s string, def int) int {
	if n, ok := ParseInt(s); ok {
		return n
	}
	return def
}
