package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recordingSubmitter) SubmitFiles(_ context.Context, paths []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.paths = append(r.paths, paths...)
	ids := make([]string, len(paths))
	for i := range paths {
		ids[i] = "task-" + filepath.Base(paths[i])
	}
	return ids, nil
}

func (r *recordingSubmitter) submitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestState_SaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/state/drop.json"
	mod := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s := NewState(fs, path)
	s.MarkSubmitted("/drop/a.txt", 10, mod, "t1")
	s.MarkFailed("/drop/b.txt", errors.New("tracker closed"))
	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := fs.Stat(path)
	if err != nil {
		t.Fatalf("state file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("state file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded := NewState(fs, path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.IsSubmitted("/drop/a.txt", 10, mod) {
		t.Error("a.txt should be recorded as submitted")
	}
	if loaded.IsSubmitted("/drop/a.txt", 11, mod) {
		t.Error("a changed size must count as a new file")
	}
	if loaded.IsSubmitted("/drop/b.txt", 0, time.Time{}) {
		t.Error("failed submissions must not count")
	}
	if loaded.SubmittedCount() != 1 || loaded.FailedCount() != 1 {
		t.Errorf("counts = %d/%d, want 1/1", loaded.SubmittedCount(), loaded.FailedCount())
	}

	loaded.Forget("/drop/a.txt")
	if loaded.IsSubmitted("/drop/a.txt", 10, mod) {
		t.Error("Forget() should drop the entry")
	}
}

func TestState_LoadMissing(t *testing.T) {
	s := NewState(afero.NewMemMapFs(), "/nope/state.json")
	if err := s.Load(); err != nil {
		t.Fatalf("Load() of missing file error = %v", err)
	}
	if s.SubmittedCount() != 0 {
		t.Error("missing state file should give an empty state")
	}
}

func TestDebounce_Coalesces(t *testing.T) {
	d := NewDebounce(30 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	fn := func(fsnotify.Event) { calls.Add(1) }
	for i := 0; i < 5; i++ {
		d.Add(fsnotify.Event{Name: "/drop/a.txt", Op: fsnotify.Write}, fn)
		time.Sleep(5 * time.Millisecond)
	}
	d.Add(fsnotify.Event{Name: "/drop/b.txt", Op: fsnotify.Create}, fn)

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Errorf("callbacks = %d, want 2 (one per path)", got)
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", d.Pending())
	}
}

func TestDebounce_CancelAndStop(t *testing.T) {
	d := NewDebounce(20 * time.Millisecond)
	var calls atomic.Int32
	fn := func(fsnotify.Event) { calls.Add(1) }

	d.Add(fsnotify.Event{Name: "/a"}, fn)
	d.Cancel("/a")
	d.Add(fsnotify.Event{Name: "/b"}, fn)
	d.Stop()
	d.Add(fsnotify.Event{Name: "/c"}, fn)

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("callbacks = %d, want 0", got)
	}
}

func TestWatcher_Submit(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/drop", 0o755); err != nil {
		t.Fatal(err)
	}
	for name, data := range map[string]string{
		"/drop/report.pdf": "pdf",
		"/drop/.hidden":    "x",
		"/drop/empty.txt":  "",
		"/drop/draft.tmp":  "x",
	} {
		if err := afero.WriteFile(fs, name, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sub := &recordingSubmitter{}
	w, err := New(Config{Dir: "/drop", ScanExisting: true}, sub, fs, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	w.scan(t.Context(), nil)
	if got := sub.submitted(); len(got) != 1 || got[0] != "/drop/report.pdf" {
		t.Fatalf("submitted = %v, want [/drop/report.pdf]", got)
	}

	// Unchanged files are not submitted twice
	w.handle(t.Context(), nil, "/drop/report.pdf")
	if got := len(sub.submitted()); got != 1 {
		t.Errorf("unchanged file resubmitted, %d submissions", got)
	}

	sub.err = errors.New("tracker closed")
	if err := afero.WriteFile(fs, "/drop/new.txt", []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.handle(t.Context(), nil, "/drop/new.txt")
	if w.State().FailedCount() != 1 {
		t.Errorf("FailedCount() = %d, want 1", w.State().FailedCount())
	}

	// Paths outside the drop folder are ignored
	sub.err = nil
	if err := afero.WriteFile(fs, "/elsewhere.txt", []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.handle(t.Context(), nil, "/drop/../elsewhere.txt")
	for _, p := range sub.submitted() {
		if p == "/drop/../elsewhere.txt" {
			t.Error("path outside the drop folder was submitted")
		}
	}
}

func TestNew_Validation(t *testing.T) {
	fs := afero.NewMemMapFs()
	if _, err := New(Config{}, &recordingSubmitter{}, fs, nil); err == nil {
		t.Error("empty dir should fail")
	}
	if _, err := New(Config{Dir: "/missing"}, &recordingSubmitter{}, fs, nil); err == nil {
		t.Error("missing dir should fail")
	}
	if err := afero.WriteFile(fs, "/file", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{Dir: "/file"}, &recordingSubmitter{}, fs, nil); err == nil {
		t.Error("regular file should fail")
	}
	if err := fs.MkdirAll("/drop", 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{Dir: "/drop"}, nil, fs, nil); err == nil {
		t.Error("nil submitter should fail")
	}
}

func TestWatcher_RunDetectsNewFile(t *testing.T) {
	dir := t.TempDir()
	sub := &recordingSubmitter{}
	w, err := New(Config{Dir: dir, Debounce: 50 * time.Millisecond}, sub, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Started():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not start")
	}

	path := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.tmp"), []byte("tmp"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for len(sub.submitted()) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}

	got := sub.submitted()
	if len(got) != 1 || got[0] != path {
		t.Errorf("submitted = %v, want [%s]", got, path)
	}
}
