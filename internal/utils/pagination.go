// Package utils holds small helpers with no domain knowledge, shared by
// the HTTP handlers and services.
package utils

import "strconv"

// AtoiDefault parses s as an int, falling back to def when s is empty or
// malformed. Query parameters arrive as strings, and for cosmetic knobs
// like page sizes the handlers prefer a usable default over a 400.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ClampInt bounds v to the inclusive range [lo, hi]. Handlers use it on
// parsed query parameters such as page sizes, look-back windows, and
// search result limits.
//
// Example:
//
//	utils.ClampInt(500, 1, 100) // returns 100
//	utils.ClampInt(0, 1, 100)   // returns 1
//	utils.ClampInt(7, 1, 100)   // returns 7
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
