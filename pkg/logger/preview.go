package logger

import (
	"strings"
	"unicode/utf8"
)

// Preview flattens s onto one line and cuts it to at most maxLen bytes,
// never splitting a multi-byte character, for use in log fields.
func Preview(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
