// Package daemon watches a local drop folder and submits new or changed
// files to the upload tracker.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/blackdropbox/blackdropbox/internal/constants"
	"github.com/blackdropbox/blackdropbox/internal/logging"
	"github.com/blackdropbox/blackdropbox/internal/util/filter"
	"github.com/blackdropbox/blackdropbox/internal/validation"
)

// DefaultExcludes skips hidden, temporary and partially written files.
var DefaultExcludes = []string{".*", "*~", "*.tmp", "*.part", "*.crdownload", "*.swp"}

// Submitter starts uploads. *services.UploadTracker implements it.
type Submitter interface {
	SubmitFiles(ctx context.Context, paths []string) ([]string, error)
}

// Config holds drop folder configuration.
type Config struct {
	// Dir is the watched directory
	Dir string

	// Recursive also watches subdirectories. Keys are still base names.
	Recursive bool

	// ScanExisting submits files already present when the watcher starts
	ScanExisting bool

	// Debounce is the quiet period after the last write (default constants.DropFolderDebounce)
	Debounce time.Duration

	// Include and Exclude are glob patterns on the base name.
	// DefaultExcludes are always applied.
	Include []string
	Exclude []string

	// StateFile persists submitted files across restarts (empty = memory only)
	StateFile string
}

// Watcher submits files dropped into a directory.
type Watcher struct {
	cfg       Config
	submitter Submitter
	fs        afero.Fs
	state     *State
	debounce  *Debounce
	filter    filter.Config
	logger    *logging.Logger

	ready     chan string
	startOnce sync.Once
	started   chan struct{}
}

// New creates a watcher for cfg.Dir. A nil fs selects the OS filesystem.
func New(cfg Config, submitter Submitter, fs afero.Fs, logger *logging.Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("drop folder directory is required")
	}
	if submitter == nil {
		return nil, errors.New("drop folder needs an upload submitter")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = constants.DropFolderDebounce
	}

	info, err := fs.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", cfg.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot watch %s: not a directory", cfg.Dir)
	}

	state := NewState(fs, cfg.StateFile)
	if err := state.Load(); err != nil {
		return nil, err
	}

	return &Watcher{
		cfg:       cfg,
		submitter: submitter,
		fs:        fs,
		state:     state,
		debounce:  NewDebounce(cfg.Debounce),
		filter: filter.Config{
			Include: cfg.Include,
			Exclude: append(append([]string(nil), DefaultExcludes...), cfg.Exclude...),
		},
		logger:  logger.Component("drop-folder"),
		ready:   make(chan string, 64),
		started: make(chan struct{}),
	}, nil
}

// State returns the submission state.
func (w *Watcher) State() *State {
	return w.state
}

// Started is closed once the directory is being watched.
func (w *Watcher) Started() <-chan struct{} {
	return w.started
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()
	defer w.debounce.Stop()

	if err := w.addDirs(watcher, w.cfg.Dir); err != nil {
		return err
	}
	w.logger.Info().Str("dir", w.cfg.Dir).Bool("recursive", w.cfg.Recursive).Msg("Watching drop folder")
	w.startOnce.Do(func() { close(w.started) })

	if w.cfg.ScanExisting {
		w.scan(ctx, watcher)
	}

	for {
		select {
		case <-ctx.Done():
			if err := w.state.Save(); err != nil {
				w.logger.Warn().Err(err).Msg("Failed to save drop folder state")
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.logger.Debug().Str("event", event.String()).Msg("File event")

			switch {
			case isOp(event.Op, fsnotify.Remove) || isOp(event.Op, fsnotify.Rename):
				w.debounce.Cancel(event.Name)
				w.state.Forget(event.Name)
			case isOp(event.Op, fsnotify.Create) || isOp(event.Op, fsnotify.Write):
				if !w.accepts(event.Name) {
					continue
				}
				w.debounce.Add(event, func(ev fsnotify.Event) {
					select {
					case w.ready <- ev.Name:
					case <-ctx.Done():
					}
				})
			}

		case path := <-w.ready:
			w.handle(ctx, watcher, path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

// accepts reports whether a path passes the name filters.
func (w *Watcher) accepts(path string) bool {
	return filter.MatchName(filepath.Base(path), w.filter)
}

// handle submits path once its writes settled. Directories are added to
// the watch list in recursive mode.
func (w *Watcher) handle(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	if abs, err := filepath.Abs(path); err == nil {
		if err := validation.ValidatePathInDirectory(abs, w.cfg.Dir); err != nil {
			w.logger.Warn().Err(err).Msg("Ignoring event outside the drop folder")
			return
		}
	}

	info, err := w.fs.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn().Err(err).Str("file", path).Msg("Cannot stat dropped file")
		}
		return
	}

	if info.IsDir() {
		if w.cfg.Recursive && watcher != nil {
			if err := w.addDirs(watcher, path); err != nil {
				w.logger.Warn().Err(err).Str("dir", path).Msg("Cannot watch new directory")
			}
		}
		return
	}

	w.submit(ctx, path, info)
}

func (w *Watcher) submit(ctx context.Context, path string, info os.FileInfo) {
	if info.Size() == 0 {
		return
	}
	if w.state.IsSubmitted(path, info.Size(), info.ModTime()) {
		w.logger.Debug().Str("file", path).Msg("Unchanged, skipping")
		return
	}

	ids, err := w.submitter.SubmitFiles(ctx, []string{path})
	if err != nil {
		w.logger.Warn().Err(err).Str("file", path).Msg("Failed to submit dropped file")
		w.state.MarkFailed(path, err)
	} else {
		var id string
		if len(ids) > 0 {
			id = ids[0]
		}
		w.logger.Info().Str("file", filepath.Base(path)).Str("task", id).Msg("Dropped file submitted")
		w.state.MarkSubmitted(path, info.Size(), info.ModTime(), id)
	}

	if err := w.state.Save(); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to save drop folder state")
	}
}

// scan submits files already present in the watched tree.
func (w *Watcher) scan(ctx context.Context, watcher *fsnotify.Watcher) {
	_ = afero.Walk(w.fs, w.cfg.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			if path != w.cfg.Dir && !w.cfg.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if w.accepts(path) {
			w.submit(ctx, path, info)
		}
		return nil
	})
}

func (w *Watcher) addDirs(watcher *fsnotify.Watcher, root string) error {
	if !w.cfg.Recursive {
		if err := watcher.Add(root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
		return nil
	}
	return afero.Walk(w.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}
