// Package core wires the session gate, upload tracker, file catalog and
// version retriever into the dashboard shell used by the CLI.
package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/blackdropbox/blackdropbox/internal/cloud/storage"
	"github.com/blackdropbox/blackdropbox/internal/events"
	"github.com/blackdropbox/blackdropbox/internal/identity"
	"github.com/blackdropbox/blackdropbox/internal/logging"
	"github.com/blackdropbox/blackdropbox/internal/models"
	"github.com/blackdropbox/blackdropbox/internal/services"
)

// MsgUploadComplete is the toast shown for every finished upload.
const MsgUploadComplete = "File uploaded successfully!"

// ErrNotMounted is returned by operations that need an authenticated dashboard.
var ErrNotMounted = errors.New("dashboard is not mounted: sign in first")

// Options configures a Dashboard.
type Options struct {
	Gate      *identity.Gate
	Store     storage.Storage
	Versions  services.VersionLister // nil when the version API is not configured
	FS        afero.Fs               // nil selects the OS filesystem
	Bus       *events.EventBus
	Logger    *logging.Logger
	Tier      storage.AccessTier
	MaxUpload int // concurrent upload cap, 0 = unlimited
}

// mount is the per-session part of the dashboard, created on Start and
// dropped on sign-out.
type mount struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tracker *services.UploadTracker
	catalog *services.FileCatalog
	wg      sync.WaitGroup // background refreshes
}

// Dashboard is the shell around the services. It owns the toasts, the
// refresh counter and the selected file.
type Dashboard struct {
	opts     Options
	toasts   *ToastCenter
	versions *services.VersionRetriever
	logger   *logging.Logger

	refreshCount atomic.Int64

	mu       sync.RWMutex
	mounted  *mount
	selected *models.FileEntry
}

// NewDashboard creates an unmounted dashboard.
func NewDashboard(opts Options) *Dashboard {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Tier == "" {
		opts.Tier = storage.TierGuest
	}
	return &Dashboard{
		opts:     opts,
		toasts:   NewToastCenter(opts.Bus, 0),
		versions: services.NewVersionRetriever(opts.Versions, opts.Logger),
		logger:   opts.Logger.Component("dashboard"),
	}
}

// Start resolves the session gate and, when authenticated, mounts the
// tracker and catalog and loads the first snapshot. A failed first
// listing is reported through the catalog state, not as an error.
func (d *Dashboard) Start(ctx context.Context) identity.State {
	state := d.opts.Gate.Resolve(ctx)
	if state != identity.StateAuthenticated {
		d.unmount()
		return state
	}

	m := d.mount()
	if _, err := m.catalog.Refresh(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Initial file listing failed")
	}
	return state
}

func (d *Dashboard) mount() *mount {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mounted != nil {
		return d.mounted
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &mount{
		ctx:    ctx,
		cancel: cancel,
		tracker: services.NewUploadTracker(d.opts.Store, d.opts.FS, d.opts.Bus, d.opts.Logger, services.UploadTrackerConfig{
			AccessTier:    d.opts.Tier,
			MaxConcurrent: d.opts.MaxUpload,
		}),
		catalog: services.NewFileCatalog(d.opts.Store, d.opts.Tier, d.toasts, d.opts.Bus, d.opts.Logger),
	}
	m.tracker.SetOnUploadComplete(func(models.FileSummary) {
		d.toasts.Notify(services.ToastSuccess, MsgUploadComplete)
		d.TriggerRefresh()
	})
	d.mounted = m
	d.logger.Debug().Str("user", d.opts.Gate.DisplayName()).Msg("Dashboard mounted")
	return m
}

// unmount cancels in-flight work and drops the per-session state.
func (d *Dashboard) unmount() {
	d.mu.Lock()
	m := d.mounted
	d.mounted = nil
	d.selected = nil
	d.mu.Unlock()
	if m == nil {
		return
	}

	m.cancel()
	m.tracker.Close()
	m.wg.Wait()
	d.logger.Debug().Msg("Dashboard unmounted")
}

func (d *Dashboard) current() (*mount, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.mounted == nil {
		return nil, ErrNotMounted
	}
	return d.mounted, nil
}

// Mounted reports whether the dashboard has an authenticated session.
func (d *Dashboard) Mounted() bool {
	_, err := d.current()
	return err == nil
}

// Gate returns the session gate.
func (d *Dashboard) Gate() *identity.Gate { return d.opts.Gate }

// Toasts returns the toast center.
func (d *Dashboard) Toasts() *ToastCenter { return d.toasts }

// Versions returns the version retriever.
func (d *Dashboard) Versions() *services.VersionRetriever { return d.versions }

// Tracker returns the upload tracker of the mounted session.
func (d *Dashboard) Tracker() (*services.UploadTracker, error) {
	m, err := d.current()
	if err != nil {
		return nil, err
	}
	return m.tracker, nil
}

// Catalog returns the file catalog of the mounted session.
func (d *Dashboard) Catalog() (*services.FileCatalog, error) {
	m, err := d.current()
	if err != nil {
		return nil, err
	}
	return m.catalog, nil
}

// RefreshCount returns how many refreshes have been requested.
func (d *Dashboard) RefreshCount() int64 {
	return d.refreshCount.Load()
}

// TriggerRefresh bumps the refresh counter and re-fetches the catalog in
// the background. It is a no-op when unmounted.
func (d *Dashboard) TriggerRefresh() int64 {
	n := d.refreshCount.Add(1)

	d.mu.RLock()
	m := d.mounted
	if m != nil {
		m.wg.Add(1)
	}
	d.mu.RUnlock()
	if m == nil {
		return n
	}

	go func() {
		defer m.wg.Done()
		if _, err := m.catalog.Refresh(m.ctx); err != nil && m.ctx.Err() == nil {
			d.logger.Warn().Err(err).Msg("Catalog refresh failed")
		}
	}()
	return n
}

// Refresh bumps the refresh counter and re-fetches the catalog, waiting
// for the result.
func (d *Dashboard) Refresh(ctx context.Context) ([]models.FileEntry, error) {
	m, err := d.current()
	if err != nil {
		return nil, err
	}
	d.refreshCount.Add(1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()
	return m.catalog.Refresh(ctx)
}

// Select opens the version view for entry.
func (d *Dashboard) Select(entry models.FileEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected = &entry
}

// ClearSelection closes the version view.
func (d *Dashboard) ClearSelection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected = nil
}

// Selected returns the selected file, or nil when the version view is closed.
func (d *Dashboard) Selected() *models.FileEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.selected == nil {
		return nil
	}
	entry := *d.selected
	return &entry
}

// SelectedVersions fetches the history of the selected file.
func (d *Dashboard) SelectedVersions(ctx context.Context) (models.VersionHistory, error) {
	entry := d.Selected()
	if entry == nil {
		return models.VersionHistory{}, errors.New("no file selected")
	}
	return d.versions.FetchVersions(ctx, *entry)
}

// Stats derives the dashboard counters from the current snapshot.
func (d *Dashboard) Stats(now time.Time) (models.Stats, error) {
	m, err := d.current()
	if err != nil {
		return models.Stats{}, err
	}
	return m.catalog.Stats(now), nil
}

// SignOut unmounts the dashboard and signs out of the identity
// collaborator. Local state is reset even when the collaborator fails.
func (d *Dashboard) SignOut(ctx context.Context) error {
	d.unmount()
	return d.opts.Gate.SignOut(ctx)
}

// Close unmounts the dashboard and stops the toast timers.
func (d *Dashboard) Close() {
	d.unmount()
	d.toasts.Close()
}
