package tui

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// maxInputLen bounds pasted registration URLs.
const maxInputLen = 2048

// editText applies a keystroke to the paste buffer. Runes are appended as a
// block so bracketed pastes arrive intact.
func editText(text, key string, runes []rune) string {
	if key == "backspace" {
		if text == "" {
			return text
		}
		r := []rune(text)
		return string(r[:len(r)-1])
	}
	if len(runes) == 0 {
		return text
	}
	add := string(runes)
	if utf8.RuneCountInString(text)+utf8.RuneCountInString(add) > maxInputLen {
		return text
	}
	return text + add
}

// formatAge renders a relative timestamp for an epoch-ms event time.
func formatAge(ms int64, now time.Time) string {
	d := now.Sub(time.UnixMilli(ms))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// truncStr truncates s to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "\u2026"
}
