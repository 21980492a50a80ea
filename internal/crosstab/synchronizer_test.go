package crosstab

import (
	"context"
	"testing"
	"time"

	"github.com/Dicklesworthstone/hud/internal/persist"
	"github.com/Dicklesworthstone/hud/internal/state"
)

const testWindow = 15 * time.Millisecond

func settle() {
	time.Sleep(5 * testWindow)
}

// instance bundles one simulated hud process: store, persistence and
// synchronizer sharing a broadcast channel.
type instance struct {
	store   *state.Store
	persist *persist.Controller
	sync    *Synchronizer
	storage persist.Storage
}

func newInstance(t *testing.T, bc Broadcaster, id string) *instance {
	t.Helper()
	store := state.NewStore()
	storage := persist.NewMemoryStorage()
	pc := persist.NewController(store, storage, persist.Options{SaveWindow: testWindow})
	sync := NewSynchronizer(store, pc, bc, Options{SenderID: id, Enabled: true})
	if err := sync.Start(context.Background()); err != nil {
		t.Fatalf("start synchronizer %s: %v", id, err)
	}
	pc.Start()
	t.Cleanup(func() {
		pc.Stop()
		sync.Stop()
	})
	return &instance{store: store, persist: pc, sync: sync, storage: storage}
}

func TestCommittedSnapshotReachesSibling(t *testing.T) {
	bc := NewMemoryBroadcaster()
	a := newInstance(t, bc, "tab-a")
	b := newInstance(t, bc, "tab-b")

	a.store.SetActiveProject("shared-project")
	settle()

	got := b.store.Get()
	if got.ActiveProject != "shared-project" {
		t.Errorf("sibling did not receive update: %q", got.ActiveProject)
	}
	if got.Timestamp != a.store.Timestamp() {
		t.Errorf("sibling timestamp %d != sender %d", got.Timestamp, a.store.Timestamp())
	}
}

func TestStaleBroadcastIgnored(t *testing.T) {
	bc := NewMemoryBroadcaster()
	b := newInstance(t, bc, "tab-b")

	b.store.SetActiveProject("local-latest")
	current := b.store.Timestamp()

	stale := state.NewDashboardState()
	stale.ActiveProject = "stale"
	stale.Timestamp = current - 10
	bc.Publish(context.Background(), Message{
		Type: TypeStateUpdate, Timestamp: stale.Timestamp, SenderID: "tab-a", State: &stale,
	})

	if got := b.store.Get().ActiveProject; got != "local-latest" {
		t.Errorf("stale broadcast was applied: %q", got)
	}
}

func TestSelfEchoIgnored(t *testing.T) {
	bc := NewMemoryBroadcaster()
	b := newInstance(t, bc, "tab-b")

	echo := state.NewDashboardState()
	echo.ActiveProject = "echo"
	echo.Timestamp = time.Now().UnixMilli() + 10_000
	bc.Publish(context.Background(), Message{
		Type: TypeStateUpdate, Timestamp: echo.Timestamp, SenderID: "tab-b", State: &echo,
	})

	if got := b.store.Get().ActiveProject; got == "echo" {
		t.Error("self echo was applied despite newer timestamp")
	}
}

func TestExpiredBroadcastIgnored(t *testing.T) {
	bc := NewMemoryBroadcaster()
	b := newInstance(t, bc, "tab-b")
	b.sync.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	old := state.NewDashboardState()
	old.ActiveProject = "ancient"
	old.Timestamp = time.Now().UnixMilli()
	bc.Publish(context.Background(), Message{
		Type: TypeStateUpdate, Timestamp: old.Timestamp, SenderID: "tab-a", State: &old,
	})

	if got := b.store.Get().ActiveProject; got == "ancient" {
		t.Error("snapshot older than TTL was applied")
	}
}

func TestStateClearedIsInformational(t *testing.T) {
	bc := NewMemoryBroadcaster()
	a := newInstance(t, bc, "tab-a")
	b := newInstance(t, bc, "tab-b")

	b.store.SetActiveProject("keep-me")
	settle()

	a.sync.Clear(context.Background())
	settle()

	if got := b.store.Get().ActiveProject; got != "keep-me" {
		t.Errorf("state_cleared wiped a sibling's state: %q", got)
	}
}

func TestClearPurgesOwnStorageAndBroadcasts(t *testing.T) {
	bc := NewMemoryBroadcaster()
	a := newInstance(t, bc, "tab-a")

	a.store.SetActiveProject("alpha")
	a.persist.Flush()
	if _, ok, _ := a.storage.Get(persist.StateKey); !ok {
		t.Fatal("expected persisted entry before clear")
	}

	var cleared []Message
	bc.Subscribe(context.Background(), func(msg Message) {
		if msg.Type == TypeStateCleared {
			cleared = append(cleared, msg)
		}
	})

	a.sync.Clear(context.Background())

	if _, ok, _ := a.storage.Get(persist.StateKey); ok {
		t.Error("clear did not purge persisted entry")
	}
	if len(cleared) != 1 {
		t.Fatalf("expected 1 state_cleared broadcast, got %d", len(cleared))
	}
	if cleared[0].SenderID != "tab-a" {
		t.Errorf("unexpected sender: %q", cleared[0].SenderID)
	}
}

func TestClearBroadcastsEvenWhenSyncDisabled(t *testing.T) {
	bc := NewMemoryBroadcaster()
	store := state.NewStore()
	pc := persist.NewController(store, persist.NewMemoryStorage(), persist.Options{SaveWindow: testWindow})
	s := NewSynchronizer(store, pc, bc, Options{SenderID: "tab-a", Enabled: false})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	var got []Message
	bc.Subscribe(context.Background(), func(msg Message) { got = append(got, msg) })

	// Regular saves are not broadcast while disabled.
	store.SetActiveProject("quiet")
	pc.Flush()
	if len(got) != 0 {
		t.Fatalf("disabled synchronizer broadcast %d messages", len(got))
	}

	// Clearing is announced regardless.
	s.Clear(context.Background())
	if len(got) != 1 || got[0].Type != TypeStateCleared {
		t.Errorf("expected a state_cleared broadcast, got %+v", got)
	}
}

func TestNoRebroadcastLoop(t *testing.T) {
	bc := NewMemoryBroadcaster()
	a := newInstance(t, bc, "tab-a")
	b := newInstance(t, bc, "tab-b")

	var updates int
	bc.Subscribe(context.Background(), func(msg Message) {
		if msg.Type == TypeStateUpdate {
			updates++
		}
	})

	a.store.SetActiveProject("once")
	settle()
	settle()

	// A's save broadcasts once; B persists the applied state and
	// rebroadcasts once; the echo back to A is rejected as not newer,
	// so the exchange terminates.
	if updates > 2 {
		t.Errorf("broadcast loop detected: %d state_update messages", updates)
	}
	if got := b.store.Get().ActiveProject; got != "once" {
		t.Errorf("sibling state: %q", got)
	}
}
