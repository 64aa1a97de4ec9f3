// Package utils holds small helpers shared by the HTTP layer and the CLI.
package utils

import (
	"strconv"
	"strings"
)

// ClampInt parses s as a base-10 int and clamps it to [lo, hi]. Blank or
// malformed input yields def, which is clamped as well.
func ClampInt(s string, def, lo, hi int) int {
	n := def
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		n = v
	}
	switch {
	case n < lo:
		return lo
	case n > hi:
		return hi
	}
	return n
}
