package state

import (
	"reflect"
	"sync"
	"time"
)

// Selector picks a slice of the state for change detection. Subscribers
// are only notified when their selected value changes (reflect.DeepEqual).
type Selector func(DashboardState) any

// Handler receives the full state after a change to the subscribed slice.
type Handler func(DashboardState)

// UnsubscribeFunc removes a subscription when called.
type UnsubscribeFunc func()

type subscription struct {
	id       uint64
	selector Selector
	handler  Handler
	last     any
}

// Store is the single-writer, observable container for DashboardState.
// All mutations go through Mutate or ReplaceIfNewer and are applied
// strictly in call order. Handlers run synchronously after the mutation
// commits, outside the store lock; they must not block for long.
type Store struct {
	mu      sync.Mutex
	current DashboardState
	subs    []*subscription
	nextID  uint64

	// now is swappable for tests.
	now func() time.Time
}

// NewStore creates a store holding an empty default state.
func NewStore() *Store {
	return &Store{
		current: NewDashboardState(),
		now:     time.Now,
	}
}

// Get returns a deep copy of the current state.
func (st *Store) Get() DashboardState {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current.Clone()
}

// Timestamp returns the current state timestamp.
func (st *Store) Timestamp() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current.Timestamp
}

// Mutate applies a partial mutation from business logic. The timestamp is
// always bumped to now; if the wall clock has not advanced (or moved
// backwards) it is clamped to previous+1 so it stays strictly increasing.
func (st *Store) Mutate(fn func(*DashboardState)) {
	st.mu.Lock()
	next := st.current.Clone()
	fn(&next)
	ts := st.now().UnixMilli()
	if ts <= st.current.Timestamp {
		ts = st.current.Timestamp + 1
	}
	next.Timestamp = ts
	next.Version = SchemaVersion
	st.current = next
	pending := st.collectNotifications()
	st.mu.Unlock()

	st.dispatch(pending)
}

// ReplaceIfNewer installs a full replacement state, used by the restore
// and cross-instance paths. The candidate is adopted (including its
// timestamp) only when its timestamp is strictly newer than the current
// one. Returns whether the candidate was installed.
//
// Validation (schema version, TTL) happens before calling into the store;
// the timestamp rule is the store's own defense against out-of-order
// application across async boundaries.
func (st *Store) ReplaceIfNewer(candidate DashboardState) bool {
	st.mu.Lock()
	if candidate.Timestamp <= st.current.Timestamp {
		st.mu.Unlock()
		return false
	}
	st.current = candidate.Clone()
	pending := st.collectNotifications()
	st.mu.Unlock()

	st.dispatch(pending)
	return true
}

// Subscribe registers a handler keyed by selector. The handler fires
// only when the selected slice changes. Returns an unsubscribe function.
func (st *Store) Subscribe(selector Selector, handler Handler) UnsubscribeFunc {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.nextID++
	sub := &subscription{
		id:       st.nextID,
		selector: selector,
		handler:  handler,
		last:     selector(st.current.Clone()),
	}
	st.subs = append(st.subs, sub)

	id := sub.id
	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		for i, s := range st.subs {
			if s.id == id {
				st.subs = append(st.subs[:i], st.subs[i+1:]...)
				return
			}
		}
	}
}

// notification pairs a handler with the state it should receive.
type notification struct {
	handler Handler
	state   DashboardState
}

// collectNotifications must be called with the lock held. It evaluates
// every subscription's selector against the new state and returns the
// handlers whose slice changed.
func (st *Store) collectNotifications() []notification {
	var pending []notification
	for _, sub := range st.subs {
		selected := sub.selector(st.current.Clone())
		if reflect.DeepEqual(selected, sub.last) {
			continue
		}
		sub.last = selected
		pending = append(pending, notification{sub.handler, st.current.Clone()})
	}
	return pending
}

func (st *Store) dispatch(pending []notification) {
	for _, n := range pending {
		n.handler(n.state)
	}
}

// DismissAlert marks the alert with the given ID as dismissed. Dismissal
// is local-only and does not round-trip to agents. Non-dismissable and
// unknown alerts are left untouched.
func (st *Store) DismissAlert(alertID string) {
	st.Mutate(func(s *DashboardState) {
		for i := range s.Widgets.Alerts {
			a := &s.Widgets.Alerts[i]
			if a.ID == alertID && a.Dismissable {
				a.Dismissed = true
			}
		}
	})
}

// SetActiveProject records the active project identifier.
func (st *Store) SetActiveProject(project string) {
	st.Mutate(func(s *DashboardState) {
		s.ActiveProject = project
	})
}

// SetSession records the workspace/user identifiers scoping this state.
func (st *Store) SetSession(workspaceID, userID string) {
	st.Mutate(func(s *DashboardState) {
		s.WorkspaceID = workspaceID
		s.UserID = userID
	})
}

// SetAgentLoading marks or clears the in-flight flag for an agent and
// recomputes the aggregate IsLoading flag.
func (st *Store) SetAgentLoading(agentID string, loading bool) {
	st.Mutate(func(s *DashboardState) {
		if s.Loading.LoadingAgents == nil {
			s.Loading.LoadingAgents = make(map[string]bool)
		}
		if loading {
			s.Loading.LoadingAgents[agentID] = true
		} else {
			delete(s.Loading.LoadingAgents, agentID)
		}
		s.Loading.IsLoading = len(s.Loading.LoadingAgents) > 0
	})
}

// SetAgentError records a data error for an agent, tagged with the
// widget the failing payload targeted. An empty message clears the
// entry.
func (st *Store) SetAgentError(agentID string, widget Kind, message string) {
	st.Mutate(func(s *DashboardState) {
		if message == "" {
			delete(s.Errors, agentID)
			return
		}
		if s.Errors == nil {
			s.Errors = make(map[string]AgentError)
		}
		s.Errors[agentID] = AgentError{Widget: widget, Message: message}
	})
}
