package crosstab

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dicklesworthstone/hud/internal/persist"
	"github.com/Dicklesworthstone/hud/internal/state"
)

// Options configures a Synchronizer.
type Options struct {
	// SenderID identifies this instance on the channel. Empty means a
	// fresh UUID.
	SenderID string
	// Enabled gates outbound state_update broadcasts and inbound
	// application. Clearing still broadcasts state_cleared regardless:
	// a sync-disabled instance must not leave siblings believing its
	// stored state still exists.
	Enabled bool
	// TTL is the maximum age of an inbound snapshot. Zero means
	// persist.DefaultTTL.
	TTL time.Duration
}

// Synchronizer wires the persistence commit hook to the broadcast
// channel and applies inbound snapshots through the store's
// last-writer-wins path.
type Synchronizer struct {
	store   *state.Store
	persist *persist.Controller
	bc      Broadcaster

	senderID string
	enabled  bool
	ttl      time.Duration
	now      func() time.Time

	mu          sync.Mutex
	lastApplied int64

	unsub func()
}

// NewSynchronizer creates a synchronizer. Start must be called before it
// does anything.
func NewSynchronizer(store *state.Store, pc *persist.Controller, bc Broadcaster, opts Options) *Synchronizer {
	if opts.SenderID == "" {
		opts.SenderID = uuid.NewString()
	}
	if opts.TTL == 0 {
		opts.TTL = persist.DefaultTTL
	}
	return &Synchronizer{
		store:    store,
		persist:  pc,
		bc:       bc,
		senderID: opts.SenderID,
		enabled:  opts.Enabled,
		ttl:      opts.TTL,
		now:      time.Now,
	}
}

// SenderID returns this instance's channel identity.
func (s *Synchronizer) SenderID() string {
	return s.senderID
}

// Start subscribes to the broadcast channel and hooks the persistence
// commit so every debounced save is followed by a broadcast.
func (s *Synchronizer) Start(ctx context.Context) error {
	unsub, err := s.bc.Subscribe(ctx, func(msg Message) { s.handleMessage(ctx, msg) })
	if err != nil {
		return err
	}
	s.unsub = unsub

	s.persist.AfterSave = func(snap state.DashboardState) {
		s.broadcast(ctx, snap)
	}
	return nil
}

// Stop removes the channel subscription and the persistence hook.
func (s *Synchronizer) Stop() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.persist.AfterSave = nil
}

// broadcast publishes a committed snapshot, when sync is enabled.
func (s *Synchronizer) broadcast(ctx context.Context, snap state.DashboardState) {
	if !s.enabled {
		return
	}
	msg := Message{
		Type:      TypeStateUpdate,
		Timestamp: snap.Timestamp,
		SenderID:  s.senderID,
		State:     &snap,
	}
	if err := s.bc.Publish(ctx, msg); err != nil {
		log.Printf("crosstab: broadcasting snapshot: %v", err)
	}
}

// handleMessage applies one inbound message. state_cleared is
// informational: an instance with its own valid state keeps it.
func (s *Synchronizer) handleMessage(ctx context.Context, msg Message) {
	if !s.enabled {
		return
	}
	if msg.Type == TypeStateCleared {
		if msg.SenderID != s.senderID {
			log.Printf("crosstab: instance %s cleared its stored state", msg.SenderID)
		}
		return
	}

	s.mu.Lock()
	apply := ShouldApply(msg, s.senderID, s.lastApplied)
	s.mu.Unlock()
	if !apply {
		return
	}
	if msg.State.Age(s.now()) > s.ttl {
		return
	}

	if s.store.ReplaceIfNewer(*msg.State) {
		s.mu.Lock()
		if msg.Timestamp > s.lastApplied {
			s.lastApplied = msg.Timestamp
		}
		s.mu.Unlock()
	}
}

// Clear purges the persisted entries and announces the clear to sibling
// instances. The announcement is unconditional (see Options.Enabled).
func (s *Synchronizer) Clear(ctx context.Context) {
	s.persist.Clear()
	msg := Message{
		Type:      TypeStateCleared,
		Timestamp: s.now().UnixMilli(),
		SenderID:  s.senderID,
	}
	if err := s.bc.Publish(ctx, msg); err != nil {
		log.Printf("crosstab: broadcasting clear: %v", err)
	}
}
