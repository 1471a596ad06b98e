package services

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/blackdropbox/blackdropbox/internal/cloud/storage"
	"github.com/blackdropbox/blackdropbox/internal/constants"
	"github.com/blackdropbox/blackdropbox/internal/events"
	"github.com/blackdropbox/blackdropbox/internal/logging"
	"github.com/blackdropbox/blackdropbox/internal/models"
	"github.com/blackdropbox/blackdropbox/internal/transfer"
)

// UploadTrackerConfig configures the UploadTracker.
type UploadTrackerConfig struct {
	AccessTier storage.AccessTier

	// RemovalDelay is how long a completed task stays visible.
	// Defaults to constants.TaskRemovalDelay.
	RemovalDelay time.Duration

	// MaxConcurrent caps parallel uploads. 0 means unlimited.
	MaxConcurrent int
}

// UploadTracker uploads local files and tracks each one as a task.
//
// Files are independent: one failure never affects another. There is no
// retry and no rollback. After Close no task state changes.
type UploadTracker struct {
	store  storage.Storage
	fs     afero.Fs
	queue  *transfer.Queue
	slots  *transfer.Slots
	logger *logging.Logger
	cfg    UploadTrackerConfig

	// Tracker lifetime; cancelled by Close
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	timers     map[string]*time.Timer
	onComplete func(models.FileSummary)
}

// NewUploadTracker creates a tracker. A nil fs selects the OS filesystem.
func NewUploadTracker(store storage.Storage, fs afero.Fs, bus *events.EventBus, logger *logging.Logger, cfg UploadTrackerConfig) *UploadTracker {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.RemovalDelay <= 0 {
		cfg.RemovalDelay = constants.TaskRemovalDelay
	}
	if cfg.AccessTier == "" {
		cfg.AccessTier = storage.TierGuest
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &UploadTracker{
		store:  store,
		fs:     fs,
		queue:  transfer.NewQueue(bus),
		slots:  transfer.NewSlots(cfg.MaxConcurrent),
		logger: logger.Component("upload-tracker"),
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[string]*time.Timer),
	}
}

// SetOnUploadComplete registers the callback fired once per successful upload.
func (t *UploadTracker) SetOnUploadComplete(fn func(models.FileSummary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onComplete = fn
}

// SubmitFiles starts one upload per path and returns the task ids in
// order. It does not wait for the uploads; use Wait or the event bus.
func (t *UploadTracker) SubmitFiles(ctx context.Context, paths []string) ([]string, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrTrackerClosed
	}

	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)

		info, err := t.fs.Stat(path)
		if err == nil && info.IsDir() {
			err = fmt.Errorf("%s is a directory", path)
		}
		var size int64
		if err == nil {
			size = info.Size()
		}

		task := t.queue.Track(name, path, size)
		ids = append(ids, task.ID)

		if err != nil {
			t.logger.Warn().Err(err).Str("file", name).Msg("Cannot upload file")
			t.queue.Fail(task.ID, err)
			continue
		}

		t.wg.Add(1)
		go func(task transfer.UploadTask) {
			defer t.wg.Done()
			t.run(ctx, task)
		}(task)
	}
	return ids, nil
}

// run executes one upload. The task context ends when either the caller's
// context or the tracker is cancelled.
func (t *UploadTracker) run(parent context.Context, task transfer.UploadTask) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(t.ctx, cancel)
	defer stop()

	if err := t.slots.Acquire(ctx); err != nil {
		t.finish(ctx, task, err)
		return
	}
	defer t.slots.Release()

	f, err := t.fs.Open(task.Source)
	if err != nil {
		t.finish(ctx, task, fmt.Errorf("failed to open %s: %w", task.Source, err))
		return
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(task.Name))
	if contentType == "" {
		contentType = constants.DefaultContentType
	}

	t.logger.Debug().Str("file", task.Name).Int64("size", task.Size).Msg("Upload started")

	err = t.store.Upload(ctx, task.Name, f, storage.UploadOptions{
		AccessTier:  t.cfg.AccessTier,
		ContentType: contentType,
		Size:        task.Size,
		OnProgress: func(transferred, total int64) {
			t.progress(ctx, task, transferred, total)
		},
	})
	t.finish(ctx, task, err)
}

// finish records the outcome. A cancelled task context turns success into
// failure, and nothing is recorded once the tracker is closed.
func (t *UploadTracker) finish(ctx context.Context, task transfer.UploadTask, err error) {
	if err == nil {
		err = ctx.Err()
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	if err != nil {
		t.queue.Fail(task.ID, err)
		t.mu.Unlock()
		t.logger.Warn().Err(err).Str("file", task.Name).Str("cause", storage.Cause(err)).Msg("Upload failed")
		return
	}

	if !t.queue.Complete(task.ID) {
		t.mu.Unlock()
		return
	}
	id := task.ID
	t.timers[id] = time.AfterFunc(t.cfg.RemovalDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.timers, id)
		if !t.closed {
			t.queue.Remove(id)
		}
	})
	cb := t.onComplete
	t.mu.Unlock()

	t.logger.Info().Str("file", task.Name).Msg("Upload complete")
	if cb != nil {
		cb(models.FileSummary{Key: task.Name, Name: task.Name, Size: task.Size})
	}
}

// progress records a progress callback unless the task is cancelled or
// the tracker is closed.
func (t *UploadTracker) progress(ctx context.Context, task transfer.UploadTask, transferred, total int64) {
	if total <= 0 {
		total = task.Size
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || ctx.Err() != nil {
		return
	}
	t.queue.UpdateProgress(task.ID, transferred, total)
}

// Wait blocks until every submitted upload has finished.
func (t *UploadTracker) Wait() {
	t.wg.Wait()
}

// Tasks returns snapshots of the active task set.
func (t *UploadTracker) Tasks() []transfer.UploadTask {
	return t.queue.Tasks()
}

// Task returns a snapshot of one task.
func (t *UploadTracker) Task(id string) (transfer.UploadTask, bool) {
	return t.queue.Get(id)
}

// Dismiss removes a finished task, typically a failed one.
func (t *UploadTracker) Dismiss(id string) error {
	t.mu.Lock()
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
	t.mu.Unlock()
	return t.queue.Dismiss(id)
}

// Close cancels in-flight uploads, stops pending removal timers and waits
// for upload goroutines to return. It is safe to call more than once.
func (t *UploadTracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}
