package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/blackdropbox/blackdropbox/internal/cloud/storage"
	"github.com/blackdropbox/blackdropbox/internal/constants"
	"github.com/blackdropbox/blackdropbox/internal/events"
	"github.com/blackdropbox/blackdropbox/internal/logging"
	"github.com/blackdropbox/blackdropbox/internal/models"
	"github.com/blackdropbox/blackdropbox/internal/util/filter"
	bdstrings "github.com/blackdropbox/blackdropbox/internal/util/strings"
)

// Catalog toast messages
const (
	msgDownloadStarted = "Download started"
	msgDownloadFailed  = "Failed to download file"
	msgDeleteFailed    = "Failed to delete file"
)

// CatalogState describes the last refresh.
type CatalogState struct {
	Loading     bool
	Err         error // non-nil after a failed refresh, cleared by the next success
	LastRefresh time.Time
}

// FileCatalog holds the snapshot of stored files and performs per-file
// actions. The snapshot is replaced wholesale on every refresh.
//
// Thread-safe: All methods are safe for concurrent use.
type FileCatalog struct {
	store    storage.Storage
	tier     storage.AccessTier
	notifier Notifier
	bus      *events.EventBus
	logger   *logging.Logger

	group singleflight.Group

	mu            sync.RWMutex
	files         []models.FileEntry
	state         CatalogState
	refreshing    bool
	deletedDuring map[string]struct{} // keys removed while a refresh is in flight
	pendingDelete *DeleteConfirmation
	onFilesLoaded func([]models.FileEntry)
}

// NewFileCatalog creates an empty catalog. notifier and bus may be nil.
func NewFileCatalog(store storage.Storage, tier storage.AccessTier, notifier Notifier, bus *events.EventBus, logger *logging.Logger) *FileCatalog {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if tier == "" {
		tier = storage.TierGuest
	}
	return &FileCatalog{
		store:    store,
		tier:     tier,
		notifier: notifier,
		bus:      bus,
		logger:   logger.Component("file-catalog"),
	}
}

// SetOnFilesLoaded registers a callback receiving every new snapshot.
func (c *FileCatalog) SetOnFilesLoaded(fn func([]models.FileEntry)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFilesLoaded = fn
}

// Refresh lists every object in the tier and replaces the snapshot.
// Concurrent calls share one listing. On failure the previous snapshot is
// kept and State().Err is set.
func (c *FileCatalog) Refresh(ctx context.Context) ([]models.FileEntry, error) {
	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return cloneEntries(v.([]models.FileEntry)), nil
}

func (c *FileCatalog) refresh(ctx context.Context) ([]models.FileEntry, error) {
	c.mu.Lock()
	c.state.Loading = true
	c.refreshing = true
	c.deletedDuring = make(map[string]struct{})
	c.mu.Unlock()

	objects, err := c.store.List(ctx, "", storage.ListOptions{AccessTier: c.tier, All: true})
	if err != nil {
		c.mu.Lock()
		c.state.Loading = false
		c.state.Err = err
		c.refreshing = false
		c.mu.Unlock()

		c.logger.Warn().Err(err).Str("cause", storage.Cause(err)).Msg("Failed to list files")
		c.bus.PublishCatalog(events.EventCatalogFailed, 0, 0, "", err)
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	c.mu.Lock()
	entries := make([]models.FileEntry, 0, len(objects))
	var total int64
	for _, obj := range objects {
		if obj.Key == "" {
			continue
		}
		if _, deleted := c.deletedDuring[obj.Key]; deleted {
			continue
		}
		entries = append(entries, models.NewFileEntry(obj.Key, obj.Size, obj.LastModified))
		total += obj.Size
	}
	c.files = entries
	c.state = CatalogState{LastRefresh: time.Now()}
	c.refreshing = false
	c.deletedDuring = nil
	cb := c.onFilesLoaded
	c.mu.Unlock()

	c.logger.Debug().Int("files", len(entries)).Msg("Catalog refreshed")
	c.bus.PublishCatalog(events.EventCatalogRefreshed, len(entries), total, "", nil)
	if cb != nil {
		cb(cloneEntries(entries))
	}
	return entries, nil
}

// State returns the loading/error state of the catalog.
func (c *FileCatalog) State() CatalogState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Files returns a copy of the current snapshot.
func (c *FileCatalog) Files() []models.FileEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneEntries(c.files)
}

// Find returns the entry stored under key.
func (c *FileCatalog) Find(key string) (models.FileEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.files {
		if f.Key == key {
			return f, true
		}
	}
	return models.FileEntry{}, false
}

// Search returns entries whose name contains query, case-insensitively.
func (c *FileCatalog) Search(query string) []models.FileEntry {
	return filter.Search(c.Files(), query)
}

// Filter applies a full filter configuration to the snapshot.
func (c *FileCatalog) Filter(cfg filter.Config) []models.FileEntry {
	return filter.Apply(c.Files(), cfg)
}

// Stats derives the dashboard counters from the snapshot. uploadsToday
// counts entries last modified on now's local calendar day.
func (c *FileCatalog) Stats(now time.Time) models.Stats {
	files := c.Files()

	var total int64
	today := 0
	y, m, d := now.Date()
	for _, f := range files {
		total += f.Size
		fy, fm, fd := f.LastModified.In(now.Location()).Date()
		if fy == y && fm == m && fd == d {
			today++
		}
	}

	return models.Stats{
		TotalFiles:     len(files),
		TotalSize:      bdstrings.FormatSize(total),
		TotalSizeBytes: total,
		UploadsToday:   today,
		Versions:       len(files),
	}
}

// Download returns a signed URL for entry valid for constants.SignedURLExpiry
// and reports the outcome as a toast.
func (c *FileCatalog) Download(ctx context.Context, entry models.FileEntry) (string, error) {
	u, err := c.store.SignedURL(ctx, entry.Key, storage.URLOptions{
		AccessTier: c.tier,
		Expires:    constants.SignedURLExpiry,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("file", entry.Key).Msg("Download failed")
		c.notifier.Notify(ToastError, msgDownloadFailed)
		return "", fmt.Errorf("failed to sign download of %s: %w", entry.Key, err)
	}
	c.notifier.Notify(ToastSuccess, msgDownloadStarted)
	return u, nil
}

// RequestDelete starts a delete confirmation for entry. Only one
// confirmation is open at a time; an earlier one still confirming is
// cancelled.
func (c *FileCatalog) RequestDelete(entry models.FileEntry) *DeleteConfirmation {
	d := &DeleteConfirmation{catalog: c, entry: entry, state: ConfirmIdle}
	d.open()

	c.mu.Lock()
	prev := c.pendingDelete
	c.pendingDelete = d
	c.mu.Unlock()

	if prev != nil {
		_ = prev.Cancel()
	}
	return d
}

// DeleteState returns the state of the latest delete confirmation, or
// ConfirmIdle when none was requested.
func (c *FileCatalog) DeleteState() ConfirmState {
	c.mu.RLock()
	d := c.pendingDelete
	c.mu.RUnlock()
	if d == nil {
		return ConfirmIdle
	}
	return d.State()
}

// remove deletes entry from storage and, only on success, from the snapshot.
func (c *FileCatalog) remove(ctx context.Context, entry models.FileEntry) error {
	if err := c.store.Remove(ctx, entry.Key, storage.RemoveOptions{AccessTier: c.tier}); err != nil {
		c.logger.Warn().Err(err).Str("file", entry.Key).Msg("Delete failed")
		c.notifier.Notify(ToastError, msgDeleteFailed)
		return fmt.Errorf("failed to delete %s: %w", entry.Key, err)
	}

	c.mu.Lock()
	kept := c.files[:0:0]
	for _, f := range c.files {
		if f.Key != entry.Key {
			kept = append(kept, f)
		}
	}
	c.files = kept
	if c.refreshing {
		c.deletedDuring[entry.Key] = struct{}{}
	}
	c.mu.Unlock()

	c.logger.Info().Str("file", entry.Key).Msg("Deleted")
	c.bus.PublishCatalog(events.EventFileDeleted, 0, 0, entry.Key, nil)
	c.notifier.Notify(ToastSuccess, fmt.Sprintf("%q deleted", entry.Name()))
	return nil
}

func cloneEntries(in []models.FileEntry) []models.FileEntry {
	out := make([]models.FileEntry, len(in))
	copy(out, in)
	return out
}
