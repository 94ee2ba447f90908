package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	likedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	filledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// TruncateString truncates a string to maxLen runes, adding an ellipsis
// if truncated.
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// FormatDurationMs formats a millisecond duration as m:ss or h:mm:ss.
func FormatDurationMs(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatProgress renders a progress bar of the given width.
func FormatProgress(positionMs, durationMs int64, width int) string {
	if durationMs <= 0 {
		return dimStyle.Render(strings.Repeat("─", width))
	}

	filled := int(float64(positionMs) / float64(durationMs) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return filledStyle.Render(strings.Repeat("━", filled)) +
		dimStyle.Render(strings.Repeat("─", width-filled))
}
