// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic; the facade uses them to read query strings.
package utils

import (
	"math"
	"strconv"
	"strings"
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// FloatDefault parses a finite float, returning def for empty, malformed,
// NaN or infinite input.
func FloatDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// BoolDefault parses "true"/"false" style flags (strconv.ParseBool, case
// and surrounding space ignored), returning def otherwise.
func BoolDefault(s string, def bool) bool {
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return def
	}
	return b
}
