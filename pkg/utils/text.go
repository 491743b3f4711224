// Package utils provides shared helpers for text, math and logging.
package utils

// Truncate shortens s to at most maxLen runes, appending "..." when it cut
// anything. A maxLen of 0 or less returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
