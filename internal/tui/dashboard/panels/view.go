package panels

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/Dicklesworthstone/hud/internal/tui/theme"
)

// boxStyle returns the outer panel frame, highlighted when focused.
func boxStyle(t theme.Theme, focused bool, w, h int) lipgloss.Style {
	borderColor := t.Surface1
	bgColor := t.Base
	if focused {
		borderColor = t.Primary
		bgColor = t.Surface0
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Background(bgColor).
		Width(w - 2).
		Height(h - 2).
		Padding(0, 1)
}

// renderHeader renders the panel title with an underline separator.
func renderHeader(t theme.Theme, title string, w int) string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(t.Surface1).
		Width(w - 4).
		Align(lipgloss.Center)
	return style.Render(title)
}

// renderLoading renders the skeleton shown while a slot has no cached
// payload and data is in flight.
func renderLoading(t theme.Theme, w, lines int) string {
	if lines < 1 {
		lines = 1
	}
	bar := strings.Repeat("░", max(1, w-6))
	style := lipgloss.NewStyle().Foreground(t.Surface1)
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(t.Subtext).Render("loading...") + "\n")
	for i := 0; i < lines; i++ {
		b.WriteString(style.Render(bar) + "\n")
	}
	return b.String()
}

// renderError renders the error presentation with the retry control line.
func renderError(t theme.Theme, msg, control string, w int) string {
	var b strings.Builder
	badge := lipgloss.NewStyle().
		Background(t.Error).
		Foreground(t.Base).
		Bold(true).
		Padding(0, 1).
		Render("⚠ Error")
	b.WriteString(badge + "\n")
	b.WriteString(wordwrap.String(msg, max(1, w-4)) + "\n")
	if control != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(t.Subtext).Render(control) + "\n")
	}
	return b.String()
}

// renderEmpty renders a centered empty-slot message.
func renderEmpty(t theme.Theme, title, desc string, w int) string {
	center := lipgloss.NewStyle().Width(w - 4).Align(lipgloss.Center)
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(center.Foreground(t.Subtext).Render(title) + "\n")
	if desc != "" {
		b.WriteString(center.Foreground(t.Surface1).Render(desc) + "\n")
	}
	return b.String()
}

// progressBar renders a filled/empty bar for pct in [0,1].
func progressBar(t theme.Theme, pct float64, width int) string {
	if width < 1 {
		width = 1
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	fillStyle := lipgloss.NewStyle().Foreground(t.Primary)
	restStyle := lipgloss.NewStyle().Foreground(t.Surface1)
	return fillStyle.Render(strings.Repeat("█", filled)) +
		restStyle.Render(strings.Repeat("░", width-filled))
}
