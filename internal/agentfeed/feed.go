// Package agentfeed bridges the agent push channel into coherent state
// store mutations. Agents may emit many partial updates per second; the
// bridge debounces per (agent, widget) key, validates payloads, and
// merges the survivors into the store. Transport concerns (reconnects,
// framing) belong to whoever feeds the channel, not to this package.
package agentfeed

import (
	"sync"
	"time"
)

// Status signals the progress of an agent's update.
type Status string

const (
	// StatusPending means the agent has queued work for this widget.
	StatusPending Status = "pending"
	// StatusInProgress means the agent is actively producing data.
	StatusInProgress Status = "in-progress"
	// StatusComplete means the payload is the agent's final answer.
	StatusComplete Status = "complete"
)

// Update is one message from the agent push channel.
type Update struct {
	// AgentID identifies the emitting agent.
	AgentID string `json:"agent_id"`
	// Widget names the logical widget slot this update targets.
	Widget string `json:"widget"`
	// Status signals whether the agent is still working.
	Status Status `json:"status"`
	// Payload is the untyped widget payload. May be nil for pure
	// status signals.
	Payload map[string]any `json:"payload,omitempty"`
	// Timestamp is when the agent emitted the update.
	Timestamp time.Time `json:"timestamp"`
}

// Handler receives updates from a Feed subscription.
type Handler func(Update)

// UnsubscribeFunc removes a subscription when called.
type UnsubscribeFunc func()

type feedEntry struct {
	id      uint64
	handler Handler
}

// Feed is the in-process agent push channel. Producers publish updates;
// the bridge (and anything else interested) subscribes. Dispatch is
// synchronous in publish order so downstream debouncing sees updates in
// the order they arrived; handlers must not block.
type Feed struct {
	mu     sync.Mutex
	subs   []feedEntry
	nextID uint64
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Subscribe registers a handler for all updates. Returns an unsubscribe
// function.
func (f *Feed) Subscribe(handler Handler) UnsubscribeFunc {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.subs = append(f.subs, feedEntry{id: id, handler: handler})

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, e := range f.subs {
			if e.id == id {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an update to all subscribers.
func (f *Feed) Publish(u Update) {
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now()
	}

	f.mu.Lock()
	entries := make([]feedEntry, len(f.subs))
	copy(entries, f.subs)
	f.mu.Unlock()

	for _, e := range entries {
		e.handler(u)
	}
}
