package persist

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Dicklesworthstone/hud/internal/state"
)

const testWindow = 15 * time.Millisecond

func settle() {
	time.Sleep(5 * testWindow)
}

// countingStorage wraps a Storage and counts Set calls per key.
type countingStorage struct {
	Storage
	sets map[string]int
}

func newCountingStorage() *countingStorage {
	return &countingStorage{Storage: NewMemoryStorage(), sets: make(map[string]int)}
}

func (c *countingStorage) Set(key, value string) error {
	c.sets[key]++
	return c.Storage.Set(key, value)
}

// quotaStorage fails every Set with a quota error and records deletes.
type quotaStorage struct {
	Storage
	deletes []string
}

func (q *quotaStorage) Set(key, value string) error {
	return ErrQuota
}

func (q *quotaStorage) Delete(key string) error {
	q.deletes = append(q.deletes, key)
	return q.Storage.Delete(key)
}

func TestRapidMutationsCauseOneWrite(t *testing.T) {
	store := state.NewStore()
	storage := newCountingStorage()
	c := NewController(store, storage, Options{SaveWindow: testWindow})
	c.Start()
	defer c.Stop()

	for i := 0; i < 10; i++ {
		store.SetActiveProject("project-" + strconv.Itoa(i))
	}
	settle()

	if got := storage.sets[StateKey]; got != 1 {
		t.Errorf("expected exactly 1 state write, got %d", got)
	}

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected persisted state")
	}
	if loaded.ActiveProject != "project-9" {
		t.Errorf("persisted snapshot is not the final state: %q", loaded.ActiveProject)
	}
}

func TestRoundTripResetsTransientFields(t *testing.T) {
	store := state.NewStore()
	c := NewController(store, NewMemoryStorage(), Options{SaveWindow: testWindow})

	store.SetActiveProject("alpha")
	store.Mutate(func(s *state.DashboardState) {
		s.Widgets.ProjectStatus = &state.ProjectStatus{Project: "alpha", Progress: 50}
		s.Widgets.Alerts = []state.Alert{{ID: "a1", Type: state.AlertInfo, Title: "hi"}}
	})
	store.SetAgentLoading("cc_1", true)
	store.SetAgentError("cc_1", state.KindProjectStatus, "transient")

	c.Flush()

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected persisted state")
	}
	if loaded.ActiveProject != "alpha" {
		t.Errorf("ActiveProject: got %q", loaded.ActiveProject)
	}
	if loaded.Widgets.ProjectStatus == nil || loaded.Widgets.ProjectStatus.Progress != 50 {
		t.Error("widgets did not round-trip")
	}
	if len(loaded.Widgets.Alerts) != 1 {
		t.Error("alerts did not round-trip")
	}
	if loaded.Loading.IsLoading || len(loaded.Loading.LoadingAgents) != 0 {
		t.Error("loading state survived persistence")
	}
	if len(loaded.Errors) != 0 {
		t.Error("errors survived persistence")
	}
}

func TestLoadRejectsExpiredSnapshot(t *testing.T) {
	store := state.NewStore()
	storage := NewMemoryStorage()
	c := NewController(store, storage, Options{SaveWindow: testWindow, TTL: time.Hour})

	store.SetActiveProject("alpha")
	c.Flush()

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Error("expired snapshot was installed")
	}
	if _, ok, _ := storage.Get(StateKey); ok {
		t.Error("expired snapshot entry was not removed")
	}
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	store := state.NewStore()
	storage := NewMemoryStorage()
	c := NewController(store, storage, Options{SaveWindow: testWindow})

	store.SetActiveProject("alpha")
	c.Flush()

	// Overwrite the stored version entry with a foreign version.
	if err := storage.Set(VersionKey, "99"); err != nil {
		t.Fatal(err)
	}

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Error("version-mismatched snapshot was installed")
	}
	if _, ok, _ := storage.Get(StateKey); ok {
		t.Error("version-mismatched entry was not removed")
	}
}

func TestLoadRejectsEmbeddedVersionMismatch(t *testing.T) {
	store := state.NewStore()
	storage := NewMemoryStorage()
	c := NewController(store, storage, Options{SaveWindow: testWindow})

	storage.Set(StateKey, `{"version": 99, "timestamp": `+strconv.FormatInt(time.Now().UnixMilli(), 10)+`}`)

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Error("snapshot with foreign embedded version was installed")
	}
}

func TestLoadPurgesCorruptedCompressedSnapshot(t *testing.T) {
	store := state.NewStore()
	storage := NewMemoryStorage()
	c := NewController(store, storage, Options{SaveWindow: testWindow})

	storage.Set(StateKey, "definitely-not-gzip")
	storage.Set(CompressedKey, "1")
	storage.Set(VersionKey, strconv.Itoa(state.SchemaVersion))

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Error("corrupted snapshot was installed")
	}
	for _, key := range []string{StateKey, CompressedKey, VersionKey} {
		if _, ok, _ := storage.Get(key); ok {
			t.Errorf("corrupted entry %s was not purged", key)
		}
	}
}

func TestLoadPurgesMalformedJSON(t *testing.T) {
	store := state.NewStore()
	storage := NewMemoryStorage()
	c := NewController(store, storage, Options{SaveWindow: testWindow})

	storage.Set(StateKey, "{not json")

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Error("malformed snapshot was installed")
	}
	if _, ok, _ := storage.Get(StateKey); ok {
		t.Error("malformed entry was not purged")
	}
}

func TestLargeSnapshotIsCompressed(t *testing.T) {
	store := state.NewStore()
	storage := NewMemoryStorage()
	c := NewController(store, storage, Options{SaveWindow: testWindow, CompressThreshold: 64})

	store.Mutate(func(s *state.DashboardState) {
		s.ActiveProject = strings.Repeat("long-project-name-", 32)
	})
	c.Flush()

	flag, ok, _ := storage.Get(CompressedKey)
	if !ok || flag != "1" {
		t.Fatal("expected compression flag for oversized snapshot")
	}

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("compressed snapshot did not load")
	}
	if !strings.HasPrefix(loaded.ActiveProject, "long-project-name-") {
		t.Error("compressed snapshot did not round-trip")
	}
}

func TestSmallSnapshotClearsCompressionFlag(t *testing.T) {
	store := state.NewStore()
	storage := NewMemoryStorage()
	c := NewController(store, storage, Options{SaveWindow: testWindow, CompressThreshold: 64})

	store.Mutate(func(s *state.DashboardState) {
		s.ActiveProject = strings.Repeat("x", 200)
	})
	c.Flush()

	store.SetActiveProject("small")
	c.Flush()

	if _, ok, _ := storage.Get(CompressedKey); ok {
		t.Error("compression flag was not cleared for small snapshot")
	}
}

func TestQuotaErrorPurgesAndDrops(t *testing.T) {
	store := state.NewStore()
	storage := &quotaStorage{Storage: NewMemoryStorage()}
	c := NewController(store, storage, Options{SaveWindow: testWindow})

	store.SetActiveProject("alpha")
	c.Flush() // must not panic

	var sawState bool
	for _, key := range storage.deletes {
		if key == StateKey {
			sawState = true
		}
	}
	if !sawState {
		t.Error("quota failure did not purge the state entry")
	}
}

func TestAfterSaveHook(t *testing.T) {
	store := state.NewStore()
	c := NewController(store, NewMemoryStorage(), Options{SaveWindow: testWindow})

	var got []state.DashboardState
	c.AfterSave = func(s state.DashboardState) { got = append(got, s) }
	c.Start()
	defer c.Stop()

	store.SetActiveProject("alpha")
	settle()

	if len(got) != 1 {
		t.Fatalf("expected 1 AfterSave call, got %d", len(got))
	}
	if got[0].ActiveProject != "alpha" {
		t.Errorf("AfterSave snapshot mismatch: %q", got[0].ActiveProject)
	}
	if got[0].Loading.IsLoading || got[0].Errors != nil {
		t.Error("AfterSave snapshot carried transient fields")
	}
}

func TestFileStorageRoundTrip(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	if err := fs.Set("hud_dashboard_state", `{"version":1}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := fs.Get("hud_dashboard_state")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if v != `{"version":1}` {
		t.Errorf("unexpected value %q", v)
	}

	if err := fs.Delete("hud_dashboard_state"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := fs.Get("hud_dashboard_state"); ok {
		t.Error("deleted key still present")
	}

	// Deleting a missing key is not an error.
	if err := fs.Delete("missing"); err != nil {
		t.Errorf("deleting missing key: %v", err)
	}
}
