package panels

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/hud/internal/state"
	"github.com/Dicklesworthstone/hud/internal/tui/theme"
)

func init() {
	theme.Set(theme.Plain)
}

func TestStatusPanelLoadingSkeleton(t *testing.T) {
	p := NewStatusPanel()
	p.SetSize(50, 10)
	p.SetData(nil, true, "")

	if got := p.View(); !strings.Contains(got, "loading") {
		t.Error("expected loading skeleton before first payload")
	}
}

func TestStatusPanelCachedDataBeatsLoading(t *testing.T) {
	p := NewStatusPanel()
	p.SetSize(50, 10)
	p.SetData(&state.ProjectStatus{Project: "hud", Phase: "build", Progress: 60, Healthy: true}, true, "")

	got := p.View()
	if !strings.Contains(got, "hud") {
		t.Error("expected cached project name while refresh in flight")
	}
	if strings.Contains(got, "loading") {
		t.Error("cached payload must not be replaced by a skeleton")
	}
}

func TestStatusPanelCachedDataBeatsError(t *testing.T) {
	p := NewStatusPanel()
	p.SetSize(50, 10)
	p.SetData(&state.ProjectStatus{Project: "hud", Progress: 10}, false, "fetch failed")

	got := p.View()
	if !strings.Contains(got, "hud") {
		t.Error("expected cached project name while refresh failing")
	}
	if !strings.Contains(got, "fetch failed") {
		t.Error("expected error surfaced as footer alongside cached data")
	}
}

func TestStatusPanelErrorShowsRetry(t *testing.T) {
	p := NewStatusPanel()
	p.SetSize(50, 10)
	p.SetRetry(func() error { return nil }, 3)
	p.SetData(nil, false, "agent offline")

	got := p.View()
	if !strings.Contains(got, "agent offline") {
		t.Error("expected error message in view")
	}
	if !strings.Contains(got, "[r] Retry") {
		t.Error("expected retry control in error view")
	}
}

func TestMetricsPanelEmptyRule(t *testing.T) {
	p := NewMetricsPanel()
	p.SetSize(50, 12)
	p.SetData(&state.Metrics{}, false, "")

	if got := p.View(); !strings.Contains(got, "No metrics yet") {
		t.Error("expected empty state for all-zero metrics")
	}

	p.SetData(&state.Metrics{TotalTokens: 1200, TotalCost: 0.35}, false, "")
	if got := p.View(); !strings.Contains(got, "1200 tokens") {
		t.Error("expected total tokens in view")
	}
}

func TestActivityPanelRendersNewestFirst(t *testing.T) {
	p := NewActivityPanel()
	p.SetSize(60, 14)
	p.SetData(&state.Activity{Entries: []state.ActivityEntry{
		{AgentID: "older-agent", Summary: "began work", Timestamp: 1000},
		{AgentID: "newer-agent", Summary: "finished work", Timestamp: 2000},
	}}, false, "")

	got := p.View()
	newer := strings.Index(got, "newer-agent")
	older := strings.Index(got, "older-agent")
	if newer == -1 {
		t.Fatal("expected newest entry in view")
	}
	if older != -1 && older < newer {
		t.Error("expected newest entry rendered first")
	}
}

func TestAlertsPanelFiltersDismissed(t *testing.T) {
	p := NewAlertsPanel()
	p.SetSize(50, 12)
	p.SetData([]state.Alert{
		{ID: "a1", Type: state.AlertWarning, Title: "disk space low"},
		{ID: "a2", Type: state.AlertInfo, Title: "hidden", Dismissed: true},
	}, false, "")

	got := p.View()
	if !strings.Contains(got, "disk space low") {
		t.Error("expected active alert in view")
	}
	if strings.Contains(got, "hidden") {
		t.Error("dismissed alert must not render")
	}
}

func TestAlertsPanelEmptyAfterAllDismissed(t *testing.T) {
	p := NewAlertsPanel()
	p.SetSize(50, 12)
	p.SetData([]state.Alert{{ID: "a1", Title: "gone", Dismissed: true}}, false, "")

	if got := p.View(); !strings.Contains(got, "All clear") {
		t.Error("expected empty state when every alert is dismissed")
	}
}

func TestAlertsPanelDismissKey(t *testing.T) {
	p := NewAlertsPanel()
	p.SetSize(50, 12)
	p.Focus()
	p.SetData([]state.Alert{
		{ID: "a1", Title: "first", Dismissable: true},
		{ID: "a2", Title: "second", Dismissable: false},
	}, false, "")

	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if cmd == nil {
		t.Fatal("expected dismiss command for dismissable alert")
	}
	msg, ok := cmd().(DismissAlertMsg)
	if !ok || msg.AlertID != "a1" {
		t.Fatalf("expected DismissAlertMsg for a1, got %#v", msg)
	}

	// Move to the non-dismissable alert: d must be a no-op.
	_, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if _, cmd = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}}); cmd != nil {
		t.Error("expected no command for a non-dismissable alert")
	}
}

func TestAlertsPanelCursorClamp(t *testing.T) {
	p := NewAlertsPanel()
	p.Focus()
	p.SetData([]state.Alert{
		{ID: "a1", Title: "first"},
		{ID: "a2", Title: "second"},
	}, false, "")

	_, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if sel, _ := p.Selected(); sel.ID != "a2" {
		t.Fatalf("expected cursor on a2, got %q", sel.ID)
	}

	// Shrinking the list clamps the cursor.
	p.SetData([]state.Alert{{ID: "a1", Title: "first"}}, false, "")
	sel, ok := p.Selected()
	if !ok || sel.ID != "a1" {
		t.Errorf("expected cursor clamped to a1, got %q ok=%v", sel.ID, ok)
	}
}

func TestAlertsPanelKeysIgnoredWhenBlurred(t *testing.T) {
	p := NewAlertsPanel()
	p.SetData([]state.Alert{{ID: "a1", Title: "first", Dismissable: true}}, false, "")

	if _, cmd := p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}}); cmd != nil {
		t.Error("expected keys ignored while blurred")
	}
}
