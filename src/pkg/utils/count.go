// Package utils carries small helpers shared by the platform checkers.
package utils

import (
	"strconv"
	"strings"
)

// ParseCount parses a human-readable count such as "1.2K", "500M" or
// "1,234" into an integer. A K/M/B suffix scales by 1e3/1e6/1e9 and the
// result is floored. The second return is false when the input cannot
// be parsed; callers treat that as "count unknown", never as an error.
func ParseCount(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	multiplier := float64(1)
	switch {
	case strings.ContainsAny(s, "Kk"):
		multiplier = 1e3
	case strings.ContainsAny(s, "Mm"):
		multiplier = 1e6
	case strings.ContainsAny(s, "Bb"):
		multiplier = 1e9
	}

	num := strings.NewReplacer("K", "", "k", "", "M", "", "m", "", "B", "", "b", "", ",", "").Replace(s)
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int64(f * multiplier), true
}
