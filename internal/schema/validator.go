// Package schema validates and normalizes untyped widget payloads before
// they reach the state store or the render path. Validation failures are
// non-fatal: callers surface them as an error widget instead of failing.
package schema

import (
	"fmt"
	"strings"

	"github.com/Dicklesworthstone/hud/internal/state"
)

// Violation describes a single schema violation.
type Violation struct {
	// Field is the path to the offending field, e.g. "agents[2].tokens".
	Field string
	// Message describes what is wrong with the field.
	Message string
}

// ValidationError carries all violations found in one payload.
type ValidationError struct {
	Kind       state.Kind
	Violations []Violation
}

// Error implements error. It lists every violation on one line so the
// message is usable as an agent error string.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Kind, strings.Join(parts, "; "))
}

// violations accumulates schema violations during normalization.
type violations struct {
	list []Violation
}

func (v *violations) add(field, message string) {
	v.list = append(v.list, Violation{Field: field, Message: message})
}

func (v *violations) err(kind state.Kind) *ValidationError {
	if len(v.list) == 0 {
		return nil
	}
	return &ValidationError{Kind: kind, Violations: v.list}
}

// Validate normalizes a raw payload for the given widget kind. On success
// it returns the typed payload (*state.ProjectStatus, *state.Metrics,
// *state.Activity, or []state.Alert). On failure it returns a
// *ValidationError describing every violation found.
func Validate(kind state.Kind, raw map[string]any) (any, error) {
	switch kind {
	case state.KindProjectStatus:
		return ValidateProjectStatus(raw)
	case state.KindMetrics:
		return ValidateMetrics(raw)
	case state.KindActivity:
		return ValidateActivity(raw)
	case state.KindAlerts:
		return ValidateAlerts(raw)
	}
	return nil, &ValidationError{
		Kind:       kind,
		Violations: []Violation{{Field: "kind", Message: "unknown widget kind"}},
	}
}

// ValidateProjectStatus normalizes a project status payload.
func ValidateProjectStatus(raw map[string]any) (*state.ProjectStatus, error) {
	var v violations
	out := &state.ProjectStatus{
		Project:  stringField(&v, raw, "project", true),
		Phase:    stringField(&v, raw, "phase", false),
		Progress: numberField(&v, raw, "progress", false),
		Healthy:  boolField(&v, raw, "healthy"),
		Detail:   stringField(&v, raw, "detail", false),
	}
	if out.Progress < 0 || out.Progress > 100 {
		v.add("progress", "must be between 0 and 100")
	}
	if err := v.err(state.KindProjectStatus); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateMetrics normalizes a metrics payload.
func ValidateMetrics(raw map[string]any) (*state.Metrics, error) {
	var v violations
	out := &state.Metrics{
		TotalTokens: int(numberField(&v, raw, "total_tokens", false)),
		TotalCost:   numberField(&v, raw, "total_cost", false),
	}
	if out.TotalTokens < 0 {
		v.add("total_tokens", "must not be negative")
	}
	for i, item := range listField(&v, raw, "agents") {
		prefix := fmt.Sprintf("agents[%d]", i)
		entry, ok := item.(map[string]any)
		if !ok {
			v.add(prefix, "must be an object")
			continue
		}
		metric := state.AgentMetric{
			Name:   stringPath(&v, entry, prefix+".name", true),
			Tokens: int(numberPath(&v, entry, prefix+".tokens")),
			Cost:   numberPath(&v, entry, prefix+".cost"),
		}
		if metric.Tokens < 0 {
			v.add(prefix+".tokens", "must not be negative")
		}
		out.Agents = append(out.Agents, metric)
	}
	if err := v.err(state.KindMetrics); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateActivity normalizes an activity feed payload.
func ValidateActivity(raw map[string]any) (*state.Activity, error) {
	var v violations
	out := &state.Activity{}
	for i, item := range listField(&v, raw, "entries") {
		prefix := fmt.Sprintf("entries[%d]", i)
		entry, ok := item.(map[string]any)
		if !ok {
			v.add(prefix, "must be an object")
			continue
		}
		out.Entries = append(out.Entries, state.ActivityEntry{
			AgentID:   stringPath(&v, entry, prefix+".agent_id", true),
			Summary:   stringPath(&v, entry, prefix+".summary", true),
			Timestamp: int64(numberPath(&v, entry, prefix+".timestamp")),
		})
	}
	if err := v.err(state.KindActivity); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateAlerts normalizes an alerts payload.
func ValidateAlerts(raw map[string]any) ([]state.Alert, error) {
	var v violations
	var out []state.Alert
	for i, item := range listField(&v, raw, "alerts") {
		prefix := fmt.Sprintf("alerts[%d]", i)
		entry, ok := item.(map[string]any)
		if !ok {
			v.add(prefix, "must be an object")
			continue
		}
		alert := state.Alert{
			ID:          stringPath(&v, entry, prefix+".id", true),
			Type:        state.AlertType(stringPath(&v, entry, prefix+".type", true)),
			Title:       stringPath(&v, entry, prefix+".title", true),
			Message:     stringPath(&v, entry, prefix+".message", false),
			Timestamp:   int64(numberPath(&v, entry, prefix+".timestamp")),
			Dismissable: boolPath(entry, "dismissable"),
			ActionLabel: stringPath(&v, entry, prefix+".action_label", false),
			ActionURL:   stringPath(&v, entry, prefix+".action_url", false),
		}
		switch alert.Type {
		case state.AlertInfo, state.AlertWarning, state.AlertError, state.AlertSuccess, "":
		default:
			v.add(prefix+".type", "must be one of info, warning, error, success")
		}
		out = append(out, alert)
	}
	if err := v.err(state.KindAlerts); err != nil {
		return nil, err
	}
	return out, nil
}

// stringField reads a top-level string field. The last path element of
// the violation is the field name itself.
func stringField(v *violations, raw map[string]any, field string, required bool) string {
	return stringPath(v, raw, field, required)
}

// stringPath reads a string by the last element of path from entry,
// reporting violations under the full path.
func stringPath(v *violations, entry map[string]any, path string, required bool) string {
	key := lastElement(path)
	val, ok := entry[key]
	if !ok || val == nil {
		if required {
			v.add(path, "is required")
		}
		return ""
	}
	s, ok := val.(string)
	if !ok {
		v.add(path, "must be a string")
		return ""
	}
	if required && strings.TrimSpace(s) == "" {
		v.add(path, "must not be empty")
	}
	return s
}

func numberField(v *violations, raw map[string]any, field string, required bool) float64 {
	val, ok := raw[field]
	if !ok || val == nil {
		if required {
			v.add(field, "is required")
		}
		return 0
	}
	return coerceNumber(v, field, val)
}

func numberPath(v *violations, entry map[string]any, path string) float64 {
	val, ok := entry[lastElement(path)]
	if !ok || val == nil {
		return 0
	}
	return coerceNumber(v, path, val)
}

// coerceNumber accepts the numeric types JSON decoding and in-process
// producers actually hand us.
func coerceNumber(v *violations, path string, val any) float64 {
	switch n := val.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	v.add(path, "must be a number")
	return 0
}

func boolField(v *violations, raw map[string]any, field string) bool {
	return boolPath(raw, field)
}

// boolPath reads an optional bool; anything non-bool counts as false.
func boolPath(entry map[string]any, field string) bool {
	b, _ := entry[field].(bool)
	return b
}

func listField(v *violations, raw map[string]any, field string) []any {
	val, ok := raw[field]
	if !ok || val == nil {
		return nil
	}
	list, ok := val.([]any)
	if !ok {
		v.add(field, "must be a list")
		return nil
	}
	return list
}

func lastElement(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}
