package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/hud/internal/state"
	"github.com/Dicklesworthstone/hud/internal/tui/theme"
)

// DismissAlertMsg asks the dashboard to dismiss an alert through the
// store. Emitted when the user presses d on a dismissable alert.
type DismissAlertMsg struct {
	AlertID string
}

// AlertsPanel displays the alerts list with cursor selection and
// dismissal of dismissable alerts.
type AlertsPanel struct {
	PanelBase
	alerts  []state.Alert // nil means never received
	loading bool
	errMsg  string
	cursor  int
}

func alertsConfig() PanelConfig {
	return PanelConfig{
		ID:        "alerts",
		Title:     "Alerts",
		MinWidth:  25,
		MinHeight: 6,
	}
}

// NewAlertsPanel creates the alerts panel.
func NewAlertsPanel() *AlertsPanel {
	return &AlertsPanel{PanelBase: NewPanelBase(alertsConfig())}
}

// SetData updates the panel from the store slice. Dismissed alerts are
// filtered out of the visible list.
func (m *AlertsPanel) SetData(alerts []state.Alert, loading bool, errMsg string) {
	if alerts == nil {
		m.alerts = nil
	} else {
		visible := make([]state.Alert, 0, len(alerts))
		for _, a := range alerts {
			if !a.Dismissed {
				visible = append(visible, a)
			}
		}
		m.alerts = visible
	}
	m.loading = loading
	m.errMsg = errMsg
	if m.cursor >= len(m.alerts) {
		m.cursor = len(m.alerts) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Selected returns the alert under the cursor, if any.
func (m *AlertsPanel) Selected() (state.Alert, bool) {
	if m.cursor < 0 || m.cursor >= len(m.alerts) {
		return state.Alert{}, false
	}
	return m.alerts[m.cursor], true
}

// Keybindings lists the alerts panel shortcuts.
func (m *AlertsPanel) Keybindings() []Keybinding {
	return []Keybinding{
		{
			Key:         key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dismiss")),
			Description: "Dismiss selected alert",
			Action:      "dismiss",
		},
		{
			Key:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev")),
			Description: "Previous alert",
			Action:      "prev",
		},
		{
			Key:         key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next")),
			Description: "Next alert",
			Action:      "next",
		},
	}
}

// Init implements tea.Model.
func (m *AlertsPanel) Init() tea.Cmd { return nil }

// Update implements tea.Model. Keys are routed here only while the
// panel is focused.
func (m *AlertsPanel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || !m.IsFocused() {
		return m, nil
	}
	switch keyMsg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.alerts)-1 {
			m.cursor++
		}
	case "d":
		if a, ok := m.Selected(); ok && a.Dismissable {
			id := a.ID
			return m, func() tea.Msg { return DismissAlertMsg{AlertID: id} }
		}
	}
	return m, nil
}

func (m *AlertsPanel) phase() Phase {
	return PhaseOf(Slot{
		Loading:    m.loading,
		ErrMsg:     m.errMsg,
		HasPayload: m.alerts != nil,
		Empty:      m.alerts != nil && len(m.alerts) == 0,
	})
}

// View renders the panel.
func (m *AlertsPanel) View() string {
	t := theme.Current()
	w, h := m.Width(), m.Height()
	box := boxStyle(t, m.IsFocused(), w, h)

	var content strings.Builder
	title := m.Config().Title
	if n := len(m.alerts); n > 0 {
		title = fmt.Sprintf("%s (%d)", title, n)
	}
	content.WriteString(renderHeader(t, title, w) + "\n")

	switch m.phase() {
	case PhaseLoading:
		content.WriteString(renderLoading(t, w, 2))
	case PhaseError:
		content.WriteString(renderError(t, m.errMsg, m.RetryControl(), w))
	case PhaseEmpty:
		content.WriteString(renderEmpty(t, "All clear", "No active alerts", w))
	case PhaseSuccess:
		content.WriteString(m.renderAlerts(t, w, h))
	}

	return box.Render(FitToHeight(content.String(), h-4))
}

func alertIcon(t theme.Theme, typ state.AlertType) string {
	switch typ {
	case state.AlertError:
		return lipgloss.NewStyle().Foreground(t.Error).Render("✖")
	case state.AlertWarning:
		return lipgloss.NewStyle().Foreground(t.Warning).Render("▲")
	case state.AlertSuccess:
		return lipgloss.NewStyle().Foreground(t.Success).Render("✔")
	default:
		return lipgloss.NewStyle().Foreground(t.Info).Render("ℹ")
	}
}

func (m *AlertsPanel) renderAlerts(t theme.Theme, w, h int) string {
	var b strings.Builder
	availLines := h - 5
	if availLines < 1 {
		availLines = 1
	}

	lines := 0
	for i, a := range m.alerts {
		if lines >= availLines {
			b.WriteString(lipgloss.NewStyle().Foreground(t.Subtext).
				Render(fmt.Sprintf("...and %d more", len(m.alerts)-i)) + "\n")
			break
		}

		marker := "  "
		titleStyle := lipgloss.NewStyle().Foreground(t.Text)
		if i == m.cursor && m.IsFocused() {
			marker = lipgloss.NewStyle().Foreground(t.Primary).Render("▸ ")
			titleStyle = titleStyle.Bold(true)
		}

		line := marker + alertIcon(t, a.Type) + " " + titleStyle.Render(Truncate(a.Title, w-10))
		if a.Dismissable {
			line += lipgloss.NewStyle().Foreground(t.Subtext).Render("  [d]")
		}
		b.WriteString(line + "\n")
		lines++

		if a.Message != "" && lines < availLines {
			b.WriteString("    " + lipgloss.NewStyle().Foreground(t.Subtext).Render(Truncate(a.Message, w-10)) + "\n")
			lines++
		}
	}

	if m.errMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(t.Warning).Render(Truncate("⚠ "+m.errMsg, w-6)) + "\n")
	}
	return b.String()
}
