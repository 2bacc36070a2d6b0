package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	// Colors - all meet WCAG AA contrast (4.5:1) on dark backgrounds
	primaryColor   = lipgloss.Color("#A78BFA") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#F87171") // Red
	mutedColor     = lipgloss.Color("#9CA3AF") // Gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	freeBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor)

	heldBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(warningColor)

	staleBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)
)

// isTerminal reports whether w is a terminal, so output can be styled.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// render applies style only when styled output is enabled.
func render(styled bool, style lipgloss.Style, s string) string {
	if !styled {
		return s
	}
	return style.Render(s)
}
