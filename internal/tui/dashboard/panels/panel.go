// Package panels contains the dashboard widget panels. Each panel is a
// pure function of its store slice: the dashboard model feeds it data
// via SetData and the panel renders one of loading, error, empty or
// success, with bounded retry on errors.
package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
)

// DefaultMaxRetries bounds the retry control on error presentations.
const DefaultMaxRetries = 3

// Keybinding is a panel-specific keyboard shortcut.
type Keybinding struct {
	Key         key.Binding
	Description string
	Action      string
}

// PanelConfig holds a panel's identity and sizing constraints.
type PanelConfig struct {
	// ID is a unique identifier (e.g. "metrics", "alerts").
	ID string
	// Title is the panel header.
	Title string
	// MinWidth and MinHeight are the smallest usable render box.
	MinWidth  int
	MinHeight int
}

// Panel is a dashboard widget slot.
type Panel interface {
	tea.Model

	// SetSize sets the render box dimensions.
	SetSize(width, height int)
	// Focus marks the panel as receiving keyboard input.
	Focus()
	// Blur removes focus.
	Blur()
	// Config returns the panel's configuration.
	Config() PanelConfig
	// Keybindings lists shortcuts active while the panel is focused.
	Keybindings() []Keybinding
}

// RetryDoneMsg reports the outcome of a retry callback.
type RetryDoneMsg struct {
	PanelID string
	Err     error
}

// Retryable is satisfied by panels embedding PanelBase. The dashboard
// uses it to drive the bounded retry flow without knowing panel types.
type Retryable interface {
	SetRetry(callback func() error, maxRetries int)
	StartRetryCmd() tea.Cmd
	FinishRetry(err error)
}

// PanelBase provides the shared panel mechanics: focus, size, and the
// bounded-retry state machine. Embed it in concrete panels.
type PanelBase struct {
	config  PanelConfig
	width   int
	height  int
	focused bool

	retry      func() error
	retrying   bool
	retryCount int
	maxRetries int
}

// NewPanelBase creates a PanelBase with the default retry bound.
func NewPanelBase(cfg PanelConfig) PanelBase {
	return PanelBase{config: cfg, maxRetries: DefaultMaxRetries}
}

// SetSize implements Panel.SetSize.
func (b *PanelBase) SetSize(width, height int) {
	b.width = width
	b.height = height
}

// Focus implements Panel.Focus.
func (b *PanelBase) Focus() { b.focused = true }

// Blur implements Panel.Blur.
func (b *PanelBase) Blur() { b.focused = false }

// Config implements Panel.Config.
func (b *PanelBase) Config() PanelConfig { return b.config }

// Keybindings returns no shortcuts by default.
func (b *PanelBase) Keybindings() []Keybinding { return nil }

// IsFocused reports whether the panel has keyboard focus.
func (b *PanelBase) IsFocused() bool { return b.focused }

// Width returns the render box width.
func (b *PanelBase) Width() int { return b.width }

// Height returns the render box height.
func (b *PanelBase) Height() int { return b.height }

// SetRetry installs the retry callback and bound for error
// presentations. A zero max keeps the default.
func (b *PanelBase) SetRetry(callback func() error, maxRetries int) {
	b.retry = callback
	if maxRetries > 0 {
		b.maxRetries = maxRetries
	}
}

// IsRetrying reports whether a retry is in flight.
func (b *PanelBase) IsRetrying() bool { return b.retrying }

// RetryCount returns the attempts made so far.
func (b *PanelBase) RetryCount() int { return b.retryCount }

// MaxRetries returns the retry bound.
func (b *PanelBase) MaxRetries() int { return b.maxRetries }

// RetryExhausted reports whether no further retries are offered.
func (b *PanelBase) RetryExhausted() bool { return b.retryCount >= b.maxRetries }

// StartRetryCmd begins a retry if one is allowed: there is a callback,
// nothing is already in flight, and the bound is not exhausted.
// Concurrent invocations while busy are no-ops (nil Cmd). The returned
// command awaits the callback and reports back via RetryDoneMsg.
func (b *PanelBase) StartRetryCmd() tea.Cmd {
	if b.retry == nil || b.retrying || b.RetryExhausted() {
		return nil
	}
	b.retrying = true
	b.retryCount++

	callback := b.retry
	id := b.config.ID
	return func() tea.Msg {
		return RetryDoneMsg{PanelID: id, Err: callback()}
	}
}

// FinishRetry returns the panel to idle. The attempt count is kept so
// the bound holds across failures; a success resets it.
func (b *PanelBase) FinishRetry(err error) {
	b.retrying = false
	if err == nil {
		b.retryCount = 0
	}
}

// RetryControl renders the retry line of an error presentation:
// a busy indicator while the callback is pending, the exhausted message
// once the bound is hit, or the (count-labeled) retry control.
func (b *PanelBase) RetryControl() string {
	if b.retry == nil {
		return ""
	}
	if b.retrying {
		return "⏳ retrying..."
	}
	if b.RetryExhausted() {
		return fmt.Sprintf("retries exhausted (%d/%d) — refresh to try again", b.retryCount, b.maxRetries)
	}
	if b.retryCount > 0 {
		return fmt.Sprintf("[r] Retry (%d/%d)", b.retryCount, b.maxRetries)
	}
	return "[r] Retry"
}

// Truncate shortens s to the given display width, appending an ellipsis
// when content was cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "…")
}

// FitToHeight pads or truncates content to exactly targetHeight lines,
// preventing layout jitter when content length varies.
func FitToHeight(content string, targetHeight int) string {
	if targetHeight <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) > targetHeight {
		lines = lines[:targetHeight]
	}
	for len(lines) < targetHeight {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
