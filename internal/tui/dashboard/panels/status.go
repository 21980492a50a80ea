package panels

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/hud/internal/state"
	"github.com/Dicklesworthstone/hud/internal/tui/theme"
)

// StatusPanel displays the active project status.
type StatusPanel struct {
	PanelBase
	data    *state.ProjectStatus
	loading bool
	errMsg  string
}

func statusConfig() PanelConfig {
	return PanelConfig{
		ID:        "project_status",
		Title:     "Project Status",
		MinWidth:  30,
		MinHeight: 6,
	}
}

// NewStatusPanel creates the project status panel.
func NewStatusPanel() *StatusPanel {
	return &StatusPanel{PanelBase: NewPanelBase(statusConfig())}
}

// SetData updates the panel from the store slice. A nil payload means
// the slot has never received data.
func (m *StatusPanel) SetData(data *state.ProjectStatus, loading bool, errMsg string) {
	m.data = data
	m.loading = loading
	m.errMsg = errMsg
}

// Init implements tea.Model.
func (m *StatusPanel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *StatusPanel) Update(msg tea.Msg) (tea.Model, tea.Cmd) { return m, nil }

func (m *StatusPanel) phase() Phase {
	return PhaseOf(Slot{
		Loading:    m.loading,
		ErrMsg:     m.errMsg,
		HasPayload: m.data != nil,
		Empty:      m.data != nil && m.data.Project == "",
	})
}

// View renders the panel.
func (m *StatusPanel) View() string {
	t := theme.Current()
	w, h := m.Width(), m.Height()
	box := boxStyle(t, m.IsFocused(), w, h)

	var content strings.Builder
	content.WriteString(renderHeader(t, m.Config().Title, w) + "\n")

	switch m.phase() {
	case PhaseLoading:
		content.WriteString(renderLoading(t, w, 2))
	case PhaseError:
		content.WriteString(renderError(t, m.errMsg, m.RetryControl(), w))
	case PhaseEmpty:
		content.WriteString(renderEmpty(t, "No active project", "Data appears when agents report", w))
	case PhaseSuccess:
		content.WriteString(m.renderStatus(t, w))
	}

	return box.Render(FitToHeight(content.String(), h-4))
}

func (m *StatusPanel) renderStatus(t theme.Theme, w int) string {
	d := m.data
	var b strings.Builder

	health := lipgloss.NewStyle().Foreground(t.Success).Render("● healthy")
	if !d.Healthy {
		health = lipgloss.NewStyle().Foreground(t.Error).Render("● unhealthy")
	}

	name := lipgloss.NewStyle().Bold(true).Foreground(t.Text).Render(Truncate(d.Project, w-6))
	b.WriteString(name + "  " + health + "\n")

	if d.Phase != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(t.Subtext).Render("Phase: "+d.Phase) + "\n")
	}

	b.WriteString(progressBar(t, d.Progress/100.0, w-6) + "\n")
	b.WriteString(lipgloss.NewStyle().Foreground(t.Subtext).Align(lipgloss.Right).Width(w-6).
		Render(fmt.Sprintf("%.0f%%", d.Progress)) + "\n")

	if d.Detail != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(t.Subtext).Render(Truncate(d.Detail, w-6)) + "\n")
	}

	// A slot holding data while a refresh fails keeps showing the data;
	// the error is surfaced as a footer instead of replacing the view.
	if m.errMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(t.Warning).Render(Truncate("⚠ "+m.errMsg, w-6)) + "\n")
	}
	return b.String()
}
