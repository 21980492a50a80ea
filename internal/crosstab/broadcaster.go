package crosstab

import (
	"context"
	"sync"
)

// Broadcaster is the named broadcast primitive: publish/subscribe
// semantics scoped to one logical channel shared by sibling instances.
type Broadcaster interface {
	// Publish sends a message to every subscriber on the channel,
	// including subscribers owned by the publishing instance.
	Publish(ctx context.Context, msg Message) error
	// Subscribe registers a handler for inbound messages. The returned
	// function removes the subscription.
	Subscribe(ctx context.Context, handler func(Message)) (func(), error)
	// Close releases the underlying channel resources.
	Close() error
}

// MemoryBroadcaster is an in-process Broadcaster. It backs tests and
// single-process runs where no external channel is configured.
type MemoryBroadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]func(Message)
	nextID uint64
	closed bool
}

// NewMemoryBroadcaster creates an empty in-process channel.
func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{subs: make(map[uint64]func(Message))}
}

// Publish implements Broadcaster. Delivery is synchronous, in
// subscription order.
func (m *MemoryBroadcaster) Publish(ctx context.Context, msg Message) error {
	m.mu.Lock()
	handlers := make([]func(Message), 0, len(m.subs))
	for _, h := range m.subs {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// Subscribe implements Broadcaster.
func (m *MemoryBroadcaster) Subscribe(ctx context.Context, handler func(Message)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subs[id] = handler

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}, nil
}

// Close implements Broadcaster.
func (m *MemoryBroadcaster) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = make(map[uint64]func(Message))
	m.closed = true
	return nil
}
