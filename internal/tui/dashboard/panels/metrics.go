package panels

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/hud/internal/state"
	"github.com/Dicklesworthstone/hud/internal/tui/theme"
)

// MetricsPanel displays session token usage and costs.
type MetricsPanel struct {
	PanelBase
	data    *state.Metrics
	loading bool
	errMsg  string
}

func metricsConfig() PanelConfig {
	return PanelConfig{
		ID:        "metrics",
		Title:     "Metrics & Usage",
		MinWidth:  30,
		MinHeight: 8,
	}
}

// NewMetricsPanel creates the metrics panel.
func NewMetricsPanel() *MetricsPanel {
	return &MetricsPanel{PanelBase: NewPanelBase(metricsConfig())}
}

// SetData updates the panel from the store slice.
func (m *MetricsPanel) SetData(data *state.Metrics, loading bool, errMsg string) {
	m.data = data
	m.loading = loading
	m.errMsg = errMsg
}

// Init implements tea.Model.
func (m *MetricsPanel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *MetricsPanel) Update(msg tea.Msg) (tea.Model, tea.Cmd) { return m, nil }

func (m *MetricsPanel) phase() Phase {
	return PhaseOf(Slot{
		Loading:    m.loading,
		ErrMsg:     m.errMsg,
		HasPayload: m.data != nil,
		Empty:      m.data != nil && m.data.TotalTokens == 0 && len(m.data.Agents) == 0,
	})
}

// View renders the panel.
func (m *MetricsPanel) View() string {
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
		content.WriteString(renderEmpty(t, "No metrics yet", "Data appears when agents start", w))
	case PhaseSuccess:
		content.WriteString(m.renderMetrics(t, w, h))
	}

	return box.Render(FitToHeight(content.String(), h-4))
}

func (m *MetricsPanel) renderMetrics(t theme.Theme, w, h int) string {
	d := m.data
	var b strings.Builder

	// Session total against a 1M-token reference scale.
	const refScale = 1000000.0
	b.WriteString(lipgloss.NewStyle().Foreground(t.Subtext).Render("Session Total") + "\n")
	b.WriteString(progressBar(t, float64(d.TotalTokens)/refScale, w-6) + "\n")

	stats := fmt.Sprintf("%d tokens  •  $%.2f est.", d.TotalTokens, d.TotalCost)
	b.WriteString(lipgloss.NewStyle().Foreground(t.Text).Align(lipgloss.Right).Width(w-6).Render(stats) + "\n\n")

	availLines := h - 9
	if availLines < 0 {
		availLines = 0
	}
	for i, agent := range d.Agents {
		if i >= availLines {
			b.WriteString(lipgloss.NewStyle().Foreground(t.Subtext).
				Render(fmt.Sprintf("...and %d more", len(d.Agents)-i)) + "\n")
			break
		}
		name := lipgloss.NewStyle().Foreground(t.Info).Bold(true).Render(agent.Name)
		info := fmt.Sprintf("%d tok ($%.2f)", agent.Tokens, agent.Cost)
		gap := w - 6 - lipgloss.Width(name) - lipgloss.Width(info)
		if gap < 1 {
			gap = 1
		}
		b.WriteString(name + strings.Repeat(" ", gap) +
			lipgloss.NewStyle().Foreground(t.Subtext).Render(info) + "\n")
	}

	if m.errMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(t.Warning).Render(Truncate("⚠ "+m.errMsg, w-6)) + "\n")
	}
	return b.String()
}
