// Package state holds the canonical dashboard state and the observable
// store that owns it. Everything else in hud — the agent feed bridge,
// persistence, cross-instance sync, the TUI panels — reads and writes
// dashboard state exclusively through the Store in this package.
package state

import (
	"time"
)

// SchemaVersion is the dashboard state schema version. Snapshots from any
// external source (disk, broadcast channel, remote store) are rejected
// unless their Version field matches this value.
const SchemaVersion = 1

// Kind identifies a logical widget slot in the dashboard.
type Kind string

const (
	// KindProjectStatus is the active project status widget.
	KindProjectStatus Kind = "project_status"
	// KindMetrics is the token/cost metrics widget.
	KindMetrics Kind = "metrics"
	// KindActivity is the recent agent activity feed widget.
	KindActivity Kind = "activity"
	// KindAlerts is the alerts list widget.
	KindAlerts Kind = "alerts"
)

// Kinds lists all known widget kinds in display order.
var Kinds = []Kind{KindProjectStatus, KindMetrics, KindActivity, KindAlerts}

// Valid reports whether k names a known widget kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// DashboardState is the root dashboard entity. Exactly one live instance
// exists per running hud process, owned by a Store.
type DashboardState struct {
	// Version is the schema version; see SchemaVersion.
	Version int `json:"version"`
	// Timestamp is epoch milliseconds of the last accepted mutation.
	// It never decreases and is the sole merge-conflict tie-breaker.
	Timestamp int64 `json:"timestamp"`

	// ActiveProject, WorkspaceID and UserID scope the state to a
	// tenant/session.
	ActiveProject string `json:"active_project,omitempty"`
	WorkspaceID   string `json:"workspace_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`

	// Widgets holds the last known good payload per widget kind.
	// A nil payload means "never received", not "empty".
	Widgets Widgets `json:"widgets"`

	// Loading is transient and never persisted or broadcast.
	Loading LoadingState `json:"loading,omitempty"`
	// Errors maps agent ID to its last data error. Transient, never
	// persisted or broadcast.
	Errors map[string]AgentError `json:"errors,omitempty"`
}

// AgentError is an agent's last data error, tagged with the widget the
// failing payload targeted so presentation can route it to one slot.
type AgentError struct {
	Widget  Kind   `json:"widget,omitempty"`
	Message string `json:"message"`
}

// Widgets maps each widget kind to its last known good payload.
type Widgets struct {
	ProjectStatus *ProjectStatus `json:"project_status,omitempty"`
	Metrics       *Metrics       `json:"metrics,omitempty"`
	Activity      *Activity      `json:"activity,omitempty"`
	Alerts        []Alert        `json:"alerts,omitempty"`
}

// LoadingState tracks which agents have an update in flight.
type LoadingState struct {
	IsLoading     bool            `json:"is_loading,omitempty"`
	LoadingAgents map[string]bool `json:"loading_agents,omitempty"`
}

// ProjectStatus is the payload for the project status widget.
type ProjectStatus struct {
	Project  string  `json:"project"`
	Phase    string  `json:"phase,omitempty"`
	Progress float64 `json:"progress"` // 0-100
	Healthy  bool    `json:"healthy"`
	Detail   string  `json:"detail,omitempty"`
}

// Metrics is the payload for the metrics widget.
type Metrics struct {
	TotalTokens int           `json:"total_tokens"`
	TotalCost   float64       `json:"total_cost"`
	Agents      []AgentMetric `json:"agents,omitempty"`
}

// AgentMetric is per-agent usage inside the metrics widget.
type AgentMetric struct {
	Name   string  `json:"name"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// Activity is the payload for the activity feed widget.
type Activity struct {
	Entries []ActivityEntry `json:"entries,omitempty"`
}

// ActivityEntry is one item in the activity feed. Summary is markdown.
type ActivityEntry struct {
	AgentID   string `json:"agent_id"`
	Summary   string `json:"summary"`
	Timestamp int64  `json:"timestamp"`
}

// AlertType categorizes an alert.
type AlertType string

const (
	AlertInfo    AlertType = "info"
	AlertWarning AlertType = "warning"
	AlertError   AlertType = "error"
	AlertSuccess AlertType = "success"
)

// Alert is one element of the alerts widget. Alerts are append-only from
// the agent side; dismissal is a local-only mutation.
type Alert struct {
	ID          string    `json:"id"`
	Type        AlertType `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Timestamp   int64     `json:"timestamp"`
	Dismissable bool      `json:"dismissable"`
	Dismissed   bool      `json:"dismissed"`
	ActionLabel string    `json:"action_label,omitempty"`
	ActionURL   string    `json:"action_url,omitempty"`
}

// NewDashboardState returns an empty state at the current schema version.
func NewDashboardState() DashboardState {
	return DashboardState{Version: SchemaVersion}
}

// Clone returns a deep copy. The copy shares no maps or slices with the
// receiver, so callers can hold or mutate it freely.
func (s DashboardState) Clone() DashboardState {
	out := s
	if s.Loading.LoadingAgents != nil {
		out.Loading.LoadingAgents = make(map[string]bool, len(s.Loading.LoadingAgents))
		for k, v := range s.Loading.LoadingAgents {
			out.Loading.LoadingAgents[k] = v
		}
	}
	if s.Errors != nil {
		out.Errors = make(map[string]AgentError, len(s.Errors))
		for k, v := range s.Errors {
			out.Errors[k] = v
		}
	}
	out.Widgets = s.Widgets.clone()
	return out
}

func (w Widgets) clone() Widgets {
	out := w
	if w.ProjectStatus != nil {
		ps := *w.ProjectStatus
		out.ProjectStatus = &ps
	}
	if w.Metrics != nil {
		m := *w.Metrics
		m.Agents = append([]AgentMetric(nil), w.Metrics.Agents...)
		out.Metrics = &m
	}
	if w.Activity != nil {
		a := *w.Activity
		a.Entries = append([]ActivityEntry(nil), w.Activity.Entries...)
		out.Activity = &a
	}
	if w.Alerts != nil {
		out.Alerts = append([]Alert(nil), w.Alerts...)
	}
	return out
}

// Snapshot returns a copy suitable for persistence or broadcast: the
// transient Loading and Errors fields are always reset to empty.
func (s DashboardState) Snapshot() DashboardState {
	out := s.Clone()
	out.Loading = LoadingState{}
	out.Errors = nil
	return out
}

// Age returns how old the state is relative to now.
func (s DashboardState) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(s.Timestamp))
}

// HasPayload reports whether the given widget slot has ever received data.
func (s DashboardState) HasPayload(kind Kind) bool {
	switch kind {
	case KindProjectStatus:
		return s.Widgets.ProjectStatus != nil
	case KindMetrics:
		return s.Widgets.Metrics != nil
	case KindActivity:
		return s.Widgets.Activity != nil
	case KindAlerts:
		return s.Widgets.Alerts != nil
	}
	return false
}
