// Package theme defines the color palette for the hud TUI.
package theme

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme is the color palette used by the dashboard panels.
type Theme struct {
	// Base colors
	Base     lipgloss.Color // Background
	Surface0 lipgloss.Color // Surface
	Surface1 lipgloss.Color // Surface highlight

	// Text colors
	Text    lipgloss.Color // Primary text
	Subtext lipgloss.Color // Secondary text

	// Semantic colors
	Primary lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color
}

// Mocha is the default dark palette (Catppuccin Mocha).
var Mocha = Theme{
	Base:     lipgloss.Color("#1e1e2e"),
	Surface0: lipgloss.Color("#313244"),
	Surface1: lipgloss.Color("#45475a"),
	Text:     lipgloss.Color("#cdd6f4"),
	Subtext:  lipgloss.Color("#a6adc8"),
	Primary:  lipgloss.Color("#89b4fa"),
	Success:  lipgloss.Color("#a6e3a1"),
	Warning:  lipgloss.Color("#f9e2af"),
	Error:    lipgloss.Color("#f38ba8"),
	Info:     lipgloss.Color("#89dceb"),
}

// Plain is a no-color palette for dumb terminals.
var Plain = Theme{}

var (
	currentMu sync.RWMutex
	current   *Theme
)

// Current returns the active theme, picking one on first use based on
// the terminal's color support.
func Current() Theme {
	currentMu.RLock()
	if current != nil {
		t := *current
		currentMu.RUnlock()
		return t
	}
	currentMu.RUnlock()

	currentMu.Lock()
	defer currentMu.Unlock()
	if current == nil {
		t := Mocha
		if os.Getenv("NO_COLOR") != "" || termenv.ColorProfile() == termenv.Ascii {
			t = Plain
		}
		current = &t
	}
	return *current
}

// Set overrides the active theme.
func Set(t Theme) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = &t
}
