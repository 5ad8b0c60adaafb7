// Package util holds small text helpers for terminal output.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// ellipsis marks truncated text.
const ellipsis = "..."

// Truncate shortens s to maxWidth visible columns, ending in "...". Escape
// sequences and wide characters are measured by their rendered width, so
// styled strings keep their styling.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= len(ellipsis) {
		return ellipsis
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, ellipsis)
}

// FirstLine returns the first non-blank line of s with surrounding
// whitespace removed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
