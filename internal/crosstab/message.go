// Package crosstab keeps multiple hud instances of the same user
// eventually consistent without a server round-trip. Committed snapshots
// are broadcast on a shared channel; incoming snapshots are applied with
// a last-writer-wins rule keyed by timestamp. Correctness relies on the
// timestamp-ordering invariant, not on locking: the channel is a
// best-effort, eventually-consistent medium.
package crosstab

import (
	"github.com/Dicklesworthstone/hud/internal/state"
)

// MessageType discriminates broadcast messages.
type MessageType string

const (
	// TypeStateUpdate carries a committed snapshot.
	TypeStateUpdate MessageType = "state_update"
	// TypeStateCleared announces that an instance cleared its stored
	// state. Informational only: receivers must not wipe their own.
	TypeStateCleared MessageType = "state_cleared"
)

// Message is the broadcast envelope.
type Message struct {
	Type      MessageType           `json:"type"`
	Timestamp int64                 `json:"timestamp"`
	SenderID  string                `json:"sender_id"`
	State     *state.DashboardState `json:"state,omitempty"`
}

// ShouldApply is the pure decision rule for inbound messages: ignore
// self-echo, ignore anything that is not a state update, ignore invalid
// or foreign-schema snapshots, and ignore anything not strictly newer
// than the last applied timestamp. Independent of any real channel so it
// is testable in isolation.
func ShouldApply(msg Message, selfID string, lastApplied int64) bool {
	if msg.SenderID == selfID {
		return false
	}
	if msg.Type != TypeStateUpdate {
		return false
	}
	if msg.State == nil {
		return false
	}
	if msg.State.Version != state.SchemaVersion {
		return false
	}
	return msg.Timestamp > lastApplied
}
