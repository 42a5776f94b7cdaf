package common

import "strconv"

// AtoiDefault parses value, returning def when it is empty or not an integer.
func AtoiDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return def
}
