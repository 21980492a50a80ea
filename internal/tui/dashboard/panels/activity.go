package panels

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/hud/internal/state"
	"github.com/Dicklesworthstone/hud/internal/tui/theme"
)

// ActivityPanel displays the recent agent activity feed. Entry
// summaries are markdown and are rendered with glamour.
type ActivityPanel struct {
	PanelBase
	data    *state.Activity
	loading bool
	errMsg  string

	renderer      *glamour.TermRenderer
	rendererWidth int
}

func activityConfig() PanelConfig {
	return PanelConfig{
		ID:        "activity",
		Title:     "Recent Activity",
		MinWidth:  30,
		MinHeight: 8,
	}
}

// NewActivityPanel creates the activity feed panel.
func NewActivityPanel() *ActivityPanel {
	return &ActivityPanel{PanelBase: NewPanelBase(activityConfig())}
}

// SetData updates the panel from the store slice.
func (m *ActivityPanel) SetData(data *state.Activity, loading bool, errMsg string) {
	m.data = data
	m.loading = loading
	m.errMsg = errMsg
}

// Init implements tea.Model.
func (m *ActivityPanel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *ActivityPanel) Update(msg tea.Msg) (tea.Model, tea.Cmd) { return m, nil }

func (m *ActivityPanel) phase() Phase {
	return PhaseOf(Slot{
		Loading:    m.loading,
		ErrMsg:     m.errMsg,
		HasPayload: m.data != nil,
		Empty:      m.data != nil && len(m.data.Entries) == 0,
	})
}

// View renders the panel.
func (m *ActivityPanel) View() string {
	t := theme.Current()
	w, h := m.Width(), m.Height()
	box := boxStyle(t, m.IsFocused(), w, h)

	var content strings.Builder
	content.WriteString(renderHeader(t, m.Config().Title, w) + "\n")

	switch m.phase() {
	case PhaseLoading:
		content.WriteString(renderLoading(t, w, 3))
	case PhaseError:
		content.WriteString(renderError(t, m.errMsg, m.RetryControl(), w))
	case PhaseEmpty:
		content.WriteString(renderEmpty(t, "No activity yet", "Agent updates appear here", w))
	case PhaseSuccess:
		content.WriteString(m.renderEntries(t, w, h))
	}

	return box.Render(FitToHeight(content.String(), h-4))
}

func (m *ActivityPanel) renderEntries(t theme.Theme, w, h int) string {
	var b strings.Builder
	availLines := h - 5
	if availLines < 1 {
		availLines = 1
	}

	// Newest first.
	entries := m.data.Entries
	lines := 0
	for i := len(entries) - 1; i >= 0 && lines < availLines; i-- {
		e := entries[i]
		ts := time.UnixMilli(e.Timestamp).Format("15:04")
		head := lipgloss.NewStyle().Foreground(t.Subtext).Render(ts) + " " +
			lipgloss.NewStyle().Foreground(t.Info).Bold(true).Render(e.AgentID)
		b.WriteString(head + "\n")
		lines++

		for _, line := range strings.Split(m.renderMarkdown(e.Summary, w-6), "\n") {
			if lines >= availLines {
				break
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			b.WriteString("  " + line + "\n")
			lines++
		}
	}

	if m.errMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(t.Warning).Render(Truncate("⚠ "+m.errMsg, w-6)) + "\n")
	}
	return b.String()
}

// renderMarkdown renders an entry summary with glamour, caching the
// renderer per wrap width. Falls back to the raw text on error.
func (m *ActivityPanel) renderMarkdown(md string, width int) string {
	if width < 10 {
		return Truncate(md, width)
	}
	if m.renderer == nil || m.rendererWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		m.renderer = r
		m.rendererWidth = width
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
