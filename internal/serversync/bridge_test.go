package serversync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Dicklesworthstone/hud/internal/state"
)

const testWindow = 15 * time.Millisecond

func settle() {
	time.Sleep(5 * testWindow)
}

// fakeStore is an httptest-backed session store that records pushes and
// serves a canned restore payload.
type fakeStore struct {
	mu       sync.Mutex
	stored   *state.DashboardState
	gets     int
	puts     []state.DashboardState
	failPuts bool
}

func (f *fakeStore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			f.gets++
			if f.stored == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(f.stored)
		case http.MethodPut:
			if f.failPuts {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			var snap state.DashboardState
			if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.puts = append(f.puts, snap)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func (f *fakeStore) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func (f *fakeStore) lastPut() state.DashboardState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts[len(f.puts)-1]
}

func newTestBridge(t *testing.T, fs *fakeStore) (*state.Store, *Bridge) {
	t.Helper()
	srv := httptest.NewServer(fs.handler())
	t.Cleanup(srv.Close)

	store := state.NewStore()
	bridge := NewBridge(store, NewClient(srv.URL, "test-token", 0), Options{SyncWindow: testWindow})
	bridge.Start()
	t.Cleanup(bridge.Stop)
	return store, bridge
}

func TestRestoreOnAuthentication(t *testing.T) {
	remote := state.NewDashboardState()
	remote.ActiveProject = "from-server"
	remote.Timestamp = time.Now().UnixMilli() + 1000

	fs := &fakeStore{stored: &remote}
	store, bridge := newTestBridge(t, fs)

	bridge.SetAuthenticated(context.Background(), true)

	if got := store.Get().ActiveProject; got != "from-server" {
		t.Errorf("restore did not install server state: %q", got)
	}

	// Toggling auth does not restore twice in one process.
	bridge.SetAuthenticated(context.Background(), false)
	bridge.SetAuthenticated(context.Background(), true)
	if got := fs.getCount(); got != 1 {
		t.Errorf("expected exactly 1 restore fetch, got %d", got)
	}
}

func TestRestoreRejectsForeignSchema(t *testing.T) {
	remote := state.NewDashboardState()
	remote.Version = state.SchemaVersion + 1
	remote.ActiveProject = "foreign"
	remote.Timestamp = time.Now().UnixMilli() + 1000

	fs := &fakeStore{stored: &remote}
	store, bridge := newTestBridge(t, fs)

	bridge.SetAuthenticated(context.Background(), true)

	if got := store.Get().ActiveProject; got == "foreign" {
		t.Error("foreign-schema server state was installed")
	}
}

func TestRestoreRejectsExpiredSnapshot(t *testing.T) {
	remote := state.NewDashboardState()
	remote.ActiveProject = "ancient"
	remote.Timestamp = time.Now().Add(-72 * time.Hour).UnixMilli()

	fs := &fakeStore{stored: &remote}
	store, bridge := newTestBridge(t, fs)

	// newTestBridge leaves Options.TTL zero, so the 24h default applies.
	bridge.SetAuthenticated(context.Background(), true)

	if got := store.Get().ActiveProject; got == "ancient" {
		t.Error("expired server state was installed")
	}
}

func TestSignificantChangeTriggersDebouncedPush(t *testing.T) {
	fs := &fakeStore{}
	store, bridge := newTestBridge(t, fs)
	bridge.SetAuthenticated(context.Background(), true)

	store.SetActiveProject("one")
	store.SetActiveProject("two")
	store.SetActiveProject("three")
	settle()

	if got := fs.putCount(); got != 1 {
		t.Fatalf("expected 1 coalesced push, got %d", got)
	}
	if got := fs.lastPut().ActiveProject; got != "three" {
		t.Errorf("push did not carry the final state: %q", got)
	}
}

func TestTransientChangeDoesNotSync(t *testing.T) {
	fs := &fakeStore{}
	store, bridge := newTestBridge(t, fs)
	bridge.SetAuthenticated(context.Background(), true)

	store.SetAgentLoading("cc_1", true)
	store.SetAgentError("cc_1", state.KindMetrics, "boom")
	settle()

	if got := fs.putCount(); got != 0 {
		t.Errorf("transient-only change caused %d pushes", got)
	}
}

func TestUnauthenticatedChangesDoNotSync(t *testing.T) {
	fs := &fakeStore{}
	store, _ := newTestBridge(t, fs)

	store.SetActiveProject("quiet")
	settle()

	if got := fs.putCount(); got != 0 {
		t.Errorf("unauthenticated bridge pushed %d times", got)
	}
}

func TestSyncNowPushesImmediately(t *testing.T) {
	fs := &fakeStore{}
	store, bridge := newTestBridge(t, fs)
	bridge.SetAuthenticated(context.Background(), true)

	store.SetActiveProject("now")
	if err := bridge.SyncNow(context.Background()); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}

	if got := fs.putCount(); got != 1 {
		t.Fatalf("expected immediate push, got %d", got)
	}
	snap := fs.lastPut()
	if snap.ActiveProject != "now" {
		t.Errorf("pushed state: %q", snap.ActiveProject)
	}
	if snap.Loading.IsLoading || len(snap.Errors) != 0 {
		t.Error("pushed snapshot carried transient fields")
	}
	// SyncNow cancelled the pending debounce: no second push follows.
	settle()
	if got := fs.putCount(); got != 1 {
		t.Errorf("debounced push fired after SyncNow: %d total", got)
	}
}

func TestSyncFailureIsReadableNotFatal(t *testing.T) {
	fs := &fakeStore{failPuts: true}
	store, bridge := newTestBridge(t, fs)
	bridge.SetAuthenticated(context.Background(), true)

	store.SetActiveProject("doomed")
	if err := bridge.SyncNow(context.Background()); err == nil {
		t.Fatal("expected sync error")
	}
	if bridge.SyncError() == nil {
		t.Error("SyncError not populated after failure")
	}

	fs.mu.Lock()
	fs.failPuts = false
	fs.mu.Unlock()

	if err := bridge.SyncNow(context.Background()); err != nil {
		t.Fatalf("recovery sync: %v", err)
	}
	if bridge.SyncError() != nil {
		t.Error("SyncError not cleared after success")
	}
}
