package utils

import (
	"strconv"
	"strings"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// ParseIntDefault parses a non-negative int, falling back to def.
func ParseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 0 {
		return v
	}
	return def
}

// Pagination parses limit/offset query values, clamping limit to MaxPageLimit.
func Pagination(limit, offset string) (int, int) {
	l := ParseIntDefault(limit, DefaultPageLimit)
	if l == 0 {
		l = DefaultPageLimit
	}
	if l > MaxPageLimit {
		l = MaxPageLimit
	}
	return l, ParseIntDefault(offset, 0)
}
