package agentfeed

import (
	"sync"
	"time"

	"github.com/Dicklesworthstone/hud/internal/debounce"
	"github.com/Dicklesworthstone/hud/internal/schema"
	"github.com/Dicklesworthstone/hud/internal/state"
)

// DefaultMergeWindow is the per-key debounce window for payload merges.
const DefaultMergeWindow = 250 * time.Millisecond

// bufferKey identifies one debounce lane. Debouncing is per
// (agent, widget) key, not global, so a chatty widget never holds up an
// unrelated one.
type bufferKey struct {
	agentID string
	widget  state.Kind
}

// Bridge subscribes to a Feed and turns its bursty updates into store
// mutations. Invalid payloads set the agent's error entry and leave prior
// widget data untouched: stale-but-valid beats no data.
type Bridge struct {
	store  *state.Store
	feed   *Feed
	window time.Duration

	mu      sync.Mutex
	pending map[bufferKey]Update
	timers  map[bufferKey]*debounce.Debouncer
	unsub   UnsubscribeFunc
}

// NewBridge creates a bridge between feed and store. A zero window falls
// back to DefaultMergeWindow.
func NewBridge(store *state.Store, feed *Feed, window time.Duration) *Bridge {
	if window == 0 {
		window = DefaultMergeWindow
	}
	return &Bridge{
		store:   store,
		feed:    feed,
		window:  window,
		pending: make(map[bufferKey]Update),
		timers:  make(map[bufferKey]*debounce.Debouncer),
	}
}

// Start subscribes the bridge to its feed. Safe to call once.
func (b *Bridge) Start() {
	b.unsub = b.feed.Subscribe(b.handle)
}

// Stop unsubscribes and cancels all pending merges.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.timers {
		d.Cancel()
	}
}

// handle processes one inbound update: track the agent's loading flag,
// buffer the latest payload for its key, and (re)arm that key's timer.
func (b *Bridge) handle(u Update) {
	switch u.Status {
	case StatusPending, StatusInProgress:
		b.store.SetAgentLoading(u.AgentID, true)
	case StatusComplete:
		b.store.SetAgentLoading(u.AgentID, false)
	}

	if u.Payload == nil {
		return
	}
	kind := state.Kind(u.Widget)

	key := bufferKey{agentID: u.AgentID, widget: kind}
	b.mu.Lock()
	b.pending[key] = u
	d, ok := b.timers[key]
	if !ok {
		d = debounce.New(b.window)
		b.timers[key] = d
	}
	b.mu.Unlock()

	d.Trigger(func() { b.flush(key) })
}

// flush validates and merges the buffered payload for one key.
func (b *Bridge) flush(key bufferKey) {
	b.mu.Lock()
	u, ok := b.pending[key]
	delete(b.pending, key)
	b.mu.Unlock()
	if !ok {
		return
	}

	payload, err := schema.Validate(key.widget, u.Payload)
	if err != nil {
		b.store.SetAgentError(key.agentID, key.widget, err.Error())
		return
	}

	b.store.Mutate(func(s *state.DashboardState) {
		applyPayload(&s.Widgets, key.widget, payload)
		delete(s.Errors, key.agentID)
	})
}

// applyPayload merges a validated payload into its widget slot. Alerts
// are append-only from the agent side: existing alerts keep their local
// dismissed flag, new ones are appended.
func applyPayload(w *state.Widgets, kind state.Kind, payload any) {
	switch kind {
	case state.KindProjectStatus:
		w.ProjectStatus = payload.(*state.ProjectStatus)
	case state.KindMetrics:
		w.Metrics = payload.(*state.Metrics)
	case state.KindActivity:
		w.Activity = payload.(*state.Activity)
	case state.KindAlerts:
		w.Alerts = mergeAlerts(w.Alerts, payload.([]state.Alert))
	}
}

func mergeAlerts(existing, incoming []state.Alert) []state.Alert {
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[a.ID] = true
	}
	out := existing
	for _, a := range incoming {
		if !seen[a.ID] {
			out = append(out, a)
		}
	}
	return out
}
