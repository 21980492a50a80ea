package serversync

import (
	"context"
	"sync"
	"time"

	"github.com/Dicklesworthstone/hud/internal/debounce"
	"github.com/Dicklesworthstone/hud/internal/persist"
	"github.com/Dicklesworthstone/hud/internal/state"
)

// DefaultSyncWindow is the debounce window between a significant change
// and the server push. Deliberately longer than the persistence window:
// the network is the slowest, least urgent mirror.
const DefaultSyncWindow = 5 * time.Second

// significant is the slice of state worth a server round-trip. It
// excludes Loading, Errors and the timestamp, so a bare timestamp bump
// never triggers a sync.
type significant struct {
	ActiveProject string
	WorkspaceID   string
	UserID        string
	Widgets       state.Widgets
}

func significantOf(s state.DashboardState) significant {
	return significant{
		ActiveProject: s.ActiveProject,
		WorkspaceID:   s.WorkspaceID,
		UserID:        s.UserID,
		Widgets:       s.Widgets,
	}
}

// Options configures a Bridge.
type Options struct {
	// SyncWindow is the push debounce window. Zero means DefaultSyncWindow.
	SyncWindow time.Duration
	// TTL is the maximum age of a restored snapshot. Zero means
	// persist.DefaultTTL.
	TTL time.Duration
}

// Bridge mirrors significant state changes to the session store and
// restores from it once per process when authentication becomes true.
type Bridge struct {
	store  *state.Store
	client *Client
	deb    *debounce.Debouncer
	ttl    time.Duration
	now    func() time.Time

	mu            sync.Mutex
	authenticated bool
	restored      bool
	syncErr       error

	unsub state.UnsubscribeFunc
}

// NewBridge creates a bridge. Start must be called to begin observing
// the store.
func NewBridge(store *state.Store, client *Client, opts Options) *Bridge {
	if opts.SyncWindow == 0 {
		opts.SyncWindow = DefaultSyncWindow
	}
	if opts.TTL == 0 {
		opts.TTL = persist.DefaultTTL
	}
	return &Bridge{
		store:  store,
		client: client,
		deb:    debounce.New(opts.SyncWindow),
		ttl:    opts.TTL,
		now:    time.Now,
	}
}

// Start subscribes to the significant slice of the store. A genuine
// value change — not merely a timestamp bump — schedules a debounced
// push of the full current state.
func (b *Bridge) Start() {
	b.unsub = b.store.Subscribe(
		func(s state.DashboardState) any { return significantOf(s) },
		func(state.DashboardState) {
			b.mu.Lock()
			ready := b.authenticated
			b.mu.Unlock()
			if !ready {
				return
			}
			b.deb.Trigger(func() { b.push(context.Background()) })
		},
	)
}

// Stop unsubscribes and drops any pending push.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
	b.deb.Cancel()
}

// SetAuthenticated informs the bridge of the session's auth state. The
// first transition to true triggers a one-time restore from the server.
func (b *Bridge) SetAuthenticated(ctx context.Context, authenticated bool) {
	b.mu.Lock()
	b.authenticated = authenticated
	needRestore := authenticated && !b.restored
	if needRestore {
		b.restored = true
	}
	b.mu.Unlock()

	if needRestore {
		b.RestoreNow(ctx)
	}
}

// SyncNow cancels any pending debounce and pushes immediately.
func (b *Bridge) SyncNow(ctx context.Context) error {
	b.deb.Cancel()
	return b.push(ctx)
}

// RestoreNow fetches the server's state and installs it through the
// store's last-writer-wins path. Gated by schema version and TTL like
// every other external source.
func (b *Bridge) RestoreNow(ctx context.Context) error {
	snap, err := b.client.Fetch(ctx)
	if err != nil {
		b.setSyncErr(err)
		return err
	}
	b.setSyncErr(nil)
	if snap == nil {
		return nil
	}

	if snap.Version != state.SchemaVersion {
		return nil
	}
	if snap.Age(b.now()) > b.ttl {
		return nil
	}

	// Transient fields never cross the restore boundary.
	snap.Loading = state.LoadingState{}
	snap.Errors = nil
	b.store.ReplaceIfNewer(*snap)
	return nil
}

// SyncError returns the last sync/restore failure, or nil after a
// successful operation.
func (b *Bridge) SyncError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.syncErr
}

func (b *Bridge) push(ctx context.Context) error {
	snap := b.store.Get().Snapshot()
	if err := b.client.Push(ctx, snap); err != nil {
		b.setSyncErr(err)
		return err
	}
	b.setSyncErr(nil)
	return nil
}

func (b *Bridge) setSyncErr(err error) {
	b.mu.Lock()
	b.syncErr = err
	b.mu.Unlock()
}
