// Package dashboard provides the live hud dashboard TUI. It subscribes
// to the state store and renders one panel per widget slot in a 2x2
// grid, with keyboard focus cycling and bounded retry on panel errors.
package dashboard

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/hud/internal/state"
	"github.com/Dicklesworthstone/hud/internal/tui/dashboard/panels"
	"github.com/Dicklesworthstone/hud/internal/tui/theme"
)

// StateChangedMsg is delivered whenever the store accepts a mutation.
type StateChangedMsg struct {
	State state.DashboardState
}

// KeyMap defines the dashboard-level keybindings.
type KeyMap struct {
	NextPanel key.Binding
	PrevPanel key.Binding
	Retry     key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the standard dashboard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextPanel: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next panel")),
		PrevPanel: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev panel")),
		Retry:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Model is the dashboard bubbletea model.
type Model struct {
	store *state.Store
	keys  KeyMap

	status   *panels.StatusPanel
	metrics  *panels.MetricsPanel
	activity *panels.ActivityPanel
	alerts   *panels.AlertsPanel
	order    []panels.Panel

	updates chan state.DashboardState
	unsub   state.UnsubscribeFunc

	width    int
	height   int
	focus    int
	quitting bool
}

// New creates a dashboard model bound to the store.
func New(store *state.Store) *Model {
	m := &Model{
		store:    store,
		keys:     DefaultKeyMap(),
		status:   panels.NewStatusPanel(),
		metrics:  panels.NewMetricsPanel(),
		activity: panels.NewActivityPanel(),
		alerts:   panels.NewAlertsPanel(),
		updates:  make(chan state.DashboardState, 16),
	}
	m.order = []panels.Panel{m.status, m.metrics, m.activity, m.alerts}
	m.status.Focus()
	m.syncPanels(store.Get())
	return m
}

// SetRetry installs the retry callback dispatched on r keypresses. The
// callback receives the erroring panel's ID and runs off the UI
// goroutine. A zero maxRetries keeps the panel default.
func (m *Model) SetRetry(fn func(panelID string) error, maxRetries int) {
	for _, p := range m.order {
		id := p.Config().ID
		if r, ok := p.(panels.Retryable); ok {
			r.SetRetry(func() error { return fn(id) }, maxRetries)
		}
	}
}

// Init implements tea.Model. It subscribes to the store; the
// subscription is released when the model quits.
func (m *Model) Init() tea.Cmd {
	m.unsub = m.store.Subscribe(
		func(s state.DashboardState) any { return s.Timestamp },
		func(s state.DashboardState) {
			// Coalesce under backpressure: evict the oldest queued
			// snapshot so the newest always lands.
			for {
				select {
				case m.updates <- s:
					return
				default:
				}
				select {
				case <-m.updates:
				default:
				}
			}
		},
	)
	return m.waitForUpdate()
}

// waitForUpdate blocks on the next store notification.
func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.updates
		if !ok {
			return nil
		}
		return StateChangedMsg{State: s}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layoutPanels()
		return m, nil

	case StateChangedMsg:
		m.syncPanels(msg.State)
		return m, m.waitForUpdate()

	case panels.DismissAlertMsg:
		m.store.DismissAlert(msg.AlertID)
		return m, nil

	case panels.RetryDoneMsg:
		for _, p := range m.order {
			if p.Config().ID != msg.PanelID {
				continue
			}
			if r, ok := p.(panels.Retryable); ok {
				r.FinishRetry(msg.Err)
			}
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			if m.unsub != nil {
				m.unsub()
				m.unsub = nil
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.NextPanel):
			m.cycleFocus(1)
			return m, nil
		case key.Matches(msg, m.keys.PrevPanel):
			m.cycleFocus(-1)
			return m, nil
		case key.Matches(msg, m.keys.Retry):
			if cmd := m.startRetry(); cmd != nil {
				return m, cmd
			}
		}
		// Remaining keys go to the focused panel.
		_, cmd := m.order[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) cycleFocus(delta int) {
	m.order[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.order)) % len(m.order)
	m.order[m.focus].Focus()
}

// startRetry begins a bounded retry on the focused panel if it is
// showing an error.
func (m *Model) startRetry() tea.Cmd {
	if r, ok := m.order[m.focus].(panels.Retryable); ok {
		return r.StartRetryCmd()
	}
	return nil
}

// syncPanels pushes the relevant store slice into each panel.
func (m *Model) syncPanels(s state.DashboardState) {
	loading := s.Loading.IsLoading
	m.status.SetData(s.Widgets.ProjectStatus, loading, errorFor(s, state.KindProjectStatus))
	m.metrics.SetData(s.Widgets.Metrics, loading, errorFor(s, state.KindMetrics))
	m.activity.SetData(s.Widgets.Activity, loading, errorFor(s, state.KindActivity))
	m.alerts.SetData(s.Widgets.Alerts, loading, errorFor(s, state.KindAlerts))
}

// errorFor picks the agent error addressed at the given widget kind, so
// a payload failure only surfaces on the panel it targeted.
func errorFor(s state.DashboardState, kind state.Kind) string {
	for _, e := range s.Errors {
		if e.Widget == kind {
			return e.Message
		}
	}
	return ""
}

func (m *Model) layoutPanels() {
	pw := m.width / 2
	ph := (m.height - 1) / 2
	for _, p := range m.order {
		p.SetSize(pw, ph)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width < 40 || m.height < 12 {
		return "terminal too small for hud dashboard"
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top, m.status.View(), m.metrics.View())
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, m.activity.View(), m.alerts.View())
	grid := lipgloss.JoinVertical(lipgloss.Left, top, bottom)

	t := theme.Current()
	help := lipgloss.NewStyle().Foreground(t.Subtext).
		Render("tab: switch panel  •  r: retry  •  d: dismiss alert  •  q: quit")
	return lipgloss.JoinVertical(lipgloss.Left, grid, help)
}
