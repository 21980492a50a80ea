package persist

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/Dicklesworthstone/hud/internal/debounce"
	"github.com/Dicklesworthstone/hud/internal/state"
)

// Storage keys. The payload, schema version and compression flag are
// stored as three separate entries.
const (
	StateKey      = "hud_dashboard_state"
	VersionKey    = "hud_dashboard_version"
	CompressedKey = "hud_dashboard_compressed"
)

const (
	// DefaultSaveWindow is the debounce window between a store change
	// and the durable write.
	DefaultSaveWindow = time.Second
	// DefaultTTL is the maximum snapshot age accepted on load.
	DefaultTTL = 24 * time.Hour
	// DefaultCompressThreshold is the serialized size above which
	// snapshots are gzip-compressed.
	DefaultCompressThreshold = 50 * 1024
)

// Options configures a Controller.
type Options struct {
	// SaveWindow is the save debounce window. Zero means DefaultSaveWindow.
	SaveWindow time.Duration
	// TTL is the maximum snapshot age on load. Zero means DefaultTTL.
	TTL time.Duration
	// CompressThreshold is the size that triggers compression.
	// Zero means DefaultCompressThreshold.
	CompressThreshold int
}

// Controller owns the debounced save path and the gated load path.
// Rapid store changes within one window coalesce into exactly one write
// containing only the final state.
type Controller struct {
	store   *state.Store
	storage Storage
	deb     *debounce.Debouncer

	ttl       time.Duration
	threshold int
	now       func() time.Time

	// AfterSave, when set, runs after each successful write with the
	// snapshot that was persisted. The cross-instance synchronizer
	// hangs its broadcast off this hook.
	AfterSave func(state.DashboardState)

	unsub state.UnsubscribeFunc
}

// NewController creates a persistence controller. It does not subscribe
// to the store until Start is called.
func NewController(store *state.Store, storage Storage, opts Options) *Controller {
	if opts.SaveWindow == 0 {
		opts.SaveWindow = DefaultSaveWindow
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CompressThreshold == 0 {
		opts.CompressThreshold = DefaultCompressThreshold
	}
	return &Controller{
		store:     store,
		storage:   storage,
		deb:       debounce.New(opts.SaveWindow),
		ttl:       opts.TTL,
		threshold: opts.CompressThreshold,
		now:       time.Now,
	}
}

// Start subscribes to the store: every committed change (any timestamp
// bump) schedules a debounced save.
func (c *Controller) Start() {
	c.unsub = c.store.Subscribe(
		func(s state.DashboardState) any { return s.Timestamp },
		func(state.DashboardState) {
			c.deb.Trigger(c.saveNow)
		},
	)
}

// Stop unsubscribes and cancels any pending save.
func (c *Controller) Stop() {
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.deb.Cancel()
}

// Flush cancels the pending debounce timer and saves immediately.
func (c *Controller) Flush() {
	c.deb.Cancel()
	c.saveNow()
}

// saveNow serializes the current snapshot and writes it. Storage quota
// failures purge the entry and drop the write; nothing here may crash
// the app.
func (c *Controller) saveNow() {
	snap := c.store.Get().Snapshot()

	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("persist: serializing snapshot: %v", err)
		return
	}

	payload := string(data)
	compressed := false
	if len(data) > c.threshold {
		encoded, err := compress(data)
		if err != nil {
			log.Printf("persist: compressing snapshot: %v", err)
			return
		}
		payload = encoded
		compressed = true
	}

	if err := c.storage.Set(StateKey, payload); err != nil {
		c.handleWriteError(err)
		return
	}
	if compressed {
		err = c.storage.Set(CompressedKey, "1")
	} else {
		err = c.storage.Delete(CompressedKey)
	}
	if err != nil {
		c.handleWriteError(err)
		return
	}
	if err := c.storage.Set(VersionKey, strconv.Itoa(state.SchemaVersion)); err != nil {
		c.handleWriteError(err)
		return
	}

	if c.AfterSave != nil {
		c.AfterSave(snap)
	}
}

// handleWriteError drops the write. On quota errors the stale entry is
// removed so the next save starts from a clean slot.
func (c *Controller) handleWriteError(err error) {
	if errors.Is(err, ErrQuota) {
		log.Printf("persist: quota exceeded, dropping snapshot: %v", err)
		_ = c.storage.Delete(StateKey)
		_ = c.storage.Delete(CompressedKey)
		_ = c.storage.Delete(VersionKey)
		return
	}
	log.Printf("persist: writing snapshot: %v", err)
}

// Load reads, gates and returns the persisted snapshot. It returns
// (nil, nil) when there is no usable state; on corruption, version
// mismatch or expiry the stored keys are purged first. Callers install
// the result via the store's ReplaceIfNewer path.
func (c *Controller) Load() (*state.DashboardState, error) {
	raw, ok, err := c.storage.Get(StateKey)
	if err != nil {
		return nil, fmt.Errorf("reading persisted state: %w", err)
	}
	if !ok {
		return nil, nil
	}

	flag, _, err := c.storage.Get(CompressedKey)
	if err != nil {
		return nil, fmt.Errorf("reading compression flag: %w", err)
	}
	data := []byte(raw)
	if flag == "1" {
		data, err = decompress(raw)
		if err != nil {
			log.Printf("persist: corrupted compressed snapshot, purging: %v", err)
			c.Clear()
			return nil, nil
		}
	}

	var snap state.DashboardState
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("persist: corrupted snapshot, purging: %v", err)
		c.Clear()
		return nil, nil
	}

	if snap.Version != state.SchemaVersion {
		log.Printf("persist: schema version %d does not match %d, purging", snap.Version, state.SchemaVersion)
		c.Clear()
		return nil, nil
	}
	if versionRaw, ok, _ := c.storage.Get(VersionKey); ok {
		if v, err := strconv.Atoi(versionRaw); err != nil || v != state.SchemaVersion {
			log.Printf("persist: stored version entry %q does not match %d, purging", versionRaw, state.SchemaVersion)
			c.Clear()
			return nil, nil
		}
	}

	if snap.Age(c.now()) > c.ttl {
		log.Printf("persist: snapshot older than TTL, purging")
		c.Clear()
		return nil, nil
	}

	// Transient fields never survive a restore, whatever was on disk.
	snap.Loading = state.LoadingState{}
	snap.Errors = nil
	return &snap, nil
}

// Clear removes all storage entries owned by this controller.
func (c *Controller) Clear() {
	_ = c.storage.Delete(StateKey)
	_ = c.storage.Delete(CompressedKey)
	_ = c.storage.Delete(VersionKey)
}

// compress gzips data and encodes it as base64 so it stays a string for
// the key/value storage contract.
func compress(data []byte) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decompress(encoded string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
