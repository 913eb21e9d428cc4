package ui

import (
	"fmt"
	"strings"
)

// Description display limits.
const (
	DefaultMaxLines     = 15
	DefaultContextLines = 5
)

// Clip shortens text to at most max runes, ending in "..." when cut.
func Clip(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return "..."
	}
	return string(runes[:max-3]) + "..."
}

// ElideLines keeps the first and last keep lines of text when it has more
// than maxLines lines, replacing the middle with a note. Short text is
// returned unchanged.
func ElideLines(text string, maxLines, keep int) string {
	lines := strings.Split(text, "\n")
	if text == "" || len(lines) <= maxLines {
		return text
	}
	if keep < 1 {
		keep = DefaultContextLines
	}
	if maxLines < 2*keep+1 {
		return strings.Join(lines[:maxLines], "\n") + "\n..."
	}
	hidden := len(lines) - 2*keep
	note := RenderMuted(fmt.Sprintf("... %d lines hidden (use --full) ...", hidden))
	parts := append(append(lines[:keep:keep], note), lines[len(lines)-keep:]...)
	return strings.Join(parts, "\n")
}
