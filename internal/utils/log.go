package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TruncateForLog trims s and cuts it to limit runes, marking the cut with an ellipsis.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

// Preview describes a prompt or response as <name>_length and <name>_preview fields.
func Preview(name, s string, limit int) []zap.Field {
	return []zap.Field{
		zap.Int(name+"_length", utf8.RuneCountInString(s)),
		zap.String(name+"_preview", TruncateForLog(s, limit)),
	}
}
