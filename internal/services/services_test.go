package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackdropbox/blackdropbox/internal/cloud/providers/memory"
	"github.com/blackdropbox/blackdropbox/internal/cloud/storage"
	"github.com/blackdropbox/blackdropbox/internal/events"
	"github.com/blackdropbox/blackdropbox/internal/models"
)

type toast struct {
	level   ToastLevel
	message string
}

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []toast
}

func (n *recordingNotifier) Notify(level ToastLevel, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, toast{level, message})
}

func (n *recordingNotifier) all() []toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]toast(nil), n.toasts...)
}

func seed(t *testing.T, store *memory.Provider, key string, data string, modified time.Time) {
	t.Helper()
	require.NoError(t, store.Put(storage.TierGuest, key, []byte(data), modified))
}

func TestFileCatalog_Refresh(t *testing.T) {
	store := memory.NewProvider()
	store.SetPageSize(1) // All must walk past the first page
	now := time.Now()
	seed(t, store, "report.pdf", "abc", now)
	seed(t, store, "photo.PNG", "12345", now.Add(-48*time.Hour))

	var loaded []models.FileEntry
	catalog := NewFileCatalog(store, storage.TierGuest, nil, nil, nil)
	catalog.SetOnFilesLoaded(func(files []models.FileEntry) { loaded = files })

	files, err := catalog.Refresh(t.Context())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "photo.PNG", files[0].Key)
	assert.Equal(t, models.FileTypeImage, files[0].Type)
	assert.Equal(t, "report.pdf", files[1].Key)
	assert.Equal(t, int64(3), files[1].Size)
	assert.Len(t, loaded, 2)

	state := catalog.State()
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)
	assert.False(t, state.LastRefresh.IsZero())
}

func TestFileCatalog_RefreshFailureKeepsSnapshot(t *testing.T) {
	store := memory.NewProvider()
	seed(t, store, "a.txt", "a", time.Now())

	bus := events.NewEventBus(10)
	defer bus.Close()
	failed := bus.Subscribe(events.EventCatalogFailed)

	catalog := NewFileCatalog(store, storage.TierGuest, nil, bus, nil)
	_, err := catalog.Refresh(t.Context())
	require.NoError(t, err)

	listErr := errors.New("network down")
	store.SetError(memory.OpList, listErr)
	_, err = catalog.Refresh(t.Context())
	require.ErrorIs(t, err, listErr)

	assert.Len(t, catalog.Files(), 1)
	assert.ErrorIs(t, catalog.State().Err, listErr)

	select {
	case ev := <-failed:
		assert.Equal(t, events.EventCatalogFailed, ev.Type())
	case <-time.After(time.Second):
		t.Fatal("expected catalog_failed event")
	}

	store.SetError(memory.OpList, nil)
	_, err = catalog.Refresh(t.Context())
	require.NoError(t, err)
	assert.NoError(t, catalog.State().Err)
}

func TestFileCatalog_Search(t *testing.T) {
	store := memory.NewProvider()
	for _, k := range []string{"Report.pdf", "my-report-2.txt", "photo.png"} {
		seed(t, store, k, "x", time.Now())
	}
	catalog := NewFileCatalog(store, storage.TierGuest, nil, nil, nil)
	_, err := catalog.Refresh(t.Context())
	require.NoError(t, err)

	var names []string
	for _, f := range catalog.Search("rep") {
		names = append(names, f.Key)
	}
	assert.ElementsMatch(t, []string{"Report.pdf", "my-report-2.txt"}, names)
	assert.Len(t, catalog.Search(""), 3)
}

func TestFileCatalog_Stats(t *testing.T) {
	store := memory.NewProvider()
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.Local)
	seed(t, store, "today.txt", strings.Repeat("x", 1024), now.Add(-time.Hour))
	seed(t, store, "yesterday.txt", strings.Repeat("x", 1024), now.Add(-24*time.Hour))

	catalog := NewFileCatalog(store, storage.TierGuest, nil, nil, nil)
	_, err := catalog.Refresh(t.Context())
	require.NoError(t, err)

	stats := catalog.Stats(now)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, int64(2048), stats.TotalSizeBytes)
	assert.Equal(t, "2.0 KB", stats.TotalSize)
	assert.Equal(t, 1, stats.UploadsToday)
	assert.Equal(t, 2, stats.Versions)
}

func TestFileCatalog_Download(t *testing.T) {
	store := memory.NewProvider()
	seed(t, store, "a.txt", "a", time.Now())
	notifier := &recordingNotifier{}
	catalog := NewFileCatalog(store, storage.TierGuest, notifier, nil, nil)
	_, err := catalog.Refresh(t.Context())
	require.NoError(t, err)

	entry, ok := catalog.Find("a.txt")
	require.True(t, ok)
	u, err := catalog.Download(t.Context(), entry)
	require.NoError(t, err)
	assert.Contains(t, u, "public/a.txt")

	_, err = catalog.Download(t.Context(), models.NewFileEntry("missing.txt", 0, time.Now()))
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err))

	assert.Equal(t, []toast{
		{ToastSuccess, "Download started"},
		{ToastError, "Failed to download file"},
	}, notifier.all())
}

func TestDeleteConfirmation_Confirm(t *testing.T) {
	store := memory.NewProvider()
	seed(t, store, "a.txt", "a", time.Now())
	seed(t, store, "b.txt", "b", time.Now())
	notifier := &recordingNotifier{}
	catalog := NewFileCatalog(store, storage.TierGuest, notifier, nil, nil)
	_, err := catalog.Refresh(t.Context())
	require.NoError(t, err)

	entry, _ := catalog.Find("a.txt")
	confirm := catalog.RequestDelete(entry)
	assert.Equal(t, ConfirmConfirming, confirm.State())
	assert.Equal(t, `Delete "a.txt"? This cannot be undone.`, confirm.Prompt())

	// Nothing is removed before confirmation
	assert.Equal(t, 2, store.Len())

	require.NoError(t, confirm.Confirm(t.Context()))
	assert.Equal(t, ConfirmConfirmed, confirm.State())
	assert.Equal(t, 1, store.Len())
	_, ok := catalog.Find("a.txt")
	assert.False(t, ok)
	assert.Equal(t, []toast{{ToastSuccess, `"a.txt" deleted`}}, notifier.all())

	assert.ErrorIs(t, confirm.Confirm(t.Context()), ErrInvalidTransition)
	assert.ErrorIs(t, confirm.Cancel(), ErrInvalidTransition)
}

func TestDeleteConfirmation_FailureKeepsEntry(t *testing.T) {
	store := memory.NewProvider()
	seed(t, store, "a.txt", "a", time.Now())
	notifier := &recordingNotifier{}
	catalog := NewFileCatalog(store, storage.TierGuest, notifier, nil, nil)
	_, err := catalog.Refresh(t.Context())
	require.NoError(t, err)

	removeErr := errors.New("access denied")
	store.SetError(memory.OpRemove, removeErr)

	entry, _ := catalog.Find("a.txt")
	confirm := catalog.RequestDelete(entry)
	err = confirm.Confirm(t.Context())
	require.ErrorIs(t, err, removeErr)
	assert.ErrorIs(t, confirm.Err(), removeErr)

	_, ok := catalog.Find("a.txt")
	assert.True(t, ok)
	assert.Equal(t, []toast{{ToastError, "Failed to delete file"}}, notifier.all())
}

func TestDeleteConfirmation_Cancel(t *testing.T) {
	store := memory.NewProvider()
	seed(t, store, "a.txt", "a", time.Now())
	catalog := NewFileCatalog(store, storage.TierGuest, nil, nil, nil)

	confirm := catalog.RequestDelete(models.NewFileEntry("a.txt", 1, time.Now()))
	require.NoError(t, confirm.Cancel())
	assert.Equal(t, ConfirmCancelled, confirm.State())
	assert.ErrorIs(t, confirm.Confirm(t.Context()), ErrInvalidTransition)
	assert.Equal(t, 1, store.Len())
}

func TestDeleteConfirmation_States(t *testing.T) {
	store := memory.NewProvider()
	catalog := NewFileCatalog(store, storage.TierGuest, nil, nil, nil)
	assert.Equal(t, ConfirmIdle, catalog.DeleteState())

	first := catalog.RequestDelete(models.NewFileEntry("a.txt", 1, time.Now()))
	assert.Equal(t, ConfirmConfirming, catalog.DeleteState())

	// A second request replaces the open one
	second := catalog.RequestDelete(models.NewFileEntry("b.txt", 1, time.Now()))
	assert.Equal(t, ConfirmCancelled, first.State())
	assert.ErrorIs(t, first.Confirm(t.Context()), ErrInvalidTransition)
	assert.Equal(t, ConfirmConfirming, second.State())

	require.NoError(t, second.Cancel())
	assert.Equal(t, ConfirmCancelled, catalog.DeleteState())
}

// stalledStore returns a listing taken before the stall, then waits for
// release before handing it back.
type stalledStore struct {
	storage.Storage
	listed  chan struct{}
	release chan struct{}
}

func (s *stalledStore) List(ctx context.Context, prefix string, opts storage.ListOptions) ([]storage.Object, error) {
	objects, err := s.Storage.List(ctx, prefix, opts)
	close(s.listed)
	<-s.release
	return objects, err
}

func TestFileCatalog_DeleteDuringRefresh(t *testing.T) {
	mem := memory.NewProvider()
	seed(t, mem, "a.txt", "a", time.Now())
	seed(t, mem, "b.txt", "b", time.Now())
	store := &stalledStore{Storage: mem, listed: make(chan struct{}), release: make(chan struct{})}
	catalog := NewFileCatalog(store, storage.TierGuest, nil, nil, nil)

	done := make(chan []models.FileEntry, 1)
	go func() {
		files, err := catalog.Refresh(context.Background())
		assert.NoError(t, err)
		done <- files
	}()
	<-store.listed

	confirm := catalog.RequestDelete(models.NewFileEntry("a.txt", 1, time.Now()))
	require.NoError(t, confirm.Confirm(t.Context()))
	close(store.release)

	var files []models.FileEntry
	select {
	case files = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not finish")
	}

	require.Len(t, files, 1)
	assert.Equal(t, "b.txt", files[0].Key)
	_, ok := catalog.Find("a.txt")
	assert.False(t, ok, "deleted file came back from the in-flight listing")
	assert.Equal(t, 1, mem.Len())
}

type fakeLister struct {
	versions []models.VersionEntry
	err      error
	url      string
}

func (f *fakeLister) ListVersions(ctx context.Context, key string) ([]models.VersionEntry, error) {
	return f.versions, f.err
}

func (f *fakeLister) VersionDownloadURL(ctx context.Context, key, versionID string) (string, error) {
	return f.url + "?key=" + key + "&versionId=" + versionID, f.err
}

func TestVersionRetriever_Unconfigured(t *testing.T) {
	r := NewVersionRetriever(nil, nil)
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	history, err := r.FetchVersions(t.Context(), models.NewFileEntry("a.txt", 42, modified))
	require.NoError(t, err)
	require.Len(t, history.Versions, 1)
	assert.True(t, history.Fallback)
	assert.Equal(t, models.VersionEntry{VersionID: "current", LastModified: modified, Size: 42, IsLatest: true}, history.Versions[0])

	assert.False(t, r.CanDownloadVersion())
	_, err = r.DownloadVersionURL(t.Context(), "a.txt", "v1")
	assert.ErrorIs(t, err, ErrVersionDownloadDisabled)
}

func TestVersionRetriever_FallbackUsesNow(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := NewVersionRetriever(&fakeLister{err: errors.New("502 bad gateway")}, nil)
	r.now = func() time.Time { return now }

	history, err := r.FetchVersions(t.Context(), models.FileEntry{Key: "a.txt"})
	require.NoError(t, err)
	require.Len(t, history.Versions, 1)
	assert.Equal(t, now, history.Versions[0].LastModified)
	assert.True(t, history.Fallback)
}

func TestVersionRetriever_SortsNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lister := &fakeLister{versions: []models.VersionEntry{
		{VersionID: "v1", LastModified: base},
		{VersionID: "v3", LastModified: base.Add(2 * time.Hour), IsLatest: true},
		{VersionID: "v2", LastModified: base.Add(time.Hour)},
	}}
	r := NewVersionRetriever(lister, nil)

	history, err := r.FetchVersions(t.Context(), models.FileEntry{Key: "a.txt"})
	require.NoError(t, err)
	assert.False(t, history.Fallback)
	var ids []string
	for _, v := range history.Versions {
		ids = append(ids, v.VersionID)
	}
	assert.Equal(t, []string{"v3", "v2", "v1"}, ids)
	assert.Equal(t, "v1", lister.versions[0].VersionID, "input must not be reordered")
}

func TestVersionRetriever_EmptyHistory(t *testing.T) {
	r := NewVersionRetriever(&fakeLister{}, nil)
	history, err := r.FetchVersions(t.Context(), models.FileEntry{Key: "a.txt"})
	require.NoError(t, err)
	assert.Empty(t, history.Versions)
	assert.False(t, history.Fallback)
}

func TestVersionRetriever_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	r := NewVersionRetriever(&fakeLister{err: context.Canceled}, nil)
	_, err := r.FetchVersions(ctx, models.FileEntry{Key: "a.txt"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVersionRetriever_DownloadURL(t *testing.T) {
	r := NewVersionRetriever(&fakeLister{url: "https://dl"}, nil)
	assert.True(t, r.CanDownloadVersion())
	u, err := r.DownloadVersionURL(t.Context(), "a.txt", "v2")
	require.NoError(t, err)
	assert.Equal(t, "https://dl?key=a.txt&versionId=v2", u)
}

func TestVersionDisplay(t *testing.T) {
	assert.Equal(t, 3, VersionNumber(3, 0))
	assert.Equal(t, 1, VersionNumber(3, 2))
	assert.Equal(t, "current", ShortVersionID("current"))
	assert.Equal(t, "abcdefghijkl", ShortVersionID("abcdefghijkl"))
	assert.Equal(t, "abcdefghijkl...", ShortVersionID("abcdefghijklmnop"))
}

func newTracker(t *testing.T, store storage.Storage, fs afero.Fs, cfg UploadTrackerConfig) *UploadTracker {
	t.Helper()
	tracker := NewUploadTracker(store, fs, nil, nil, cfg)
	t.Cleanup(tracker.Close)
	return tracker
}

func TestUploadTracker_Success(t *testing.T) {
	store := memory.NewProvider()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/docs/report.pdf", bytes.Repeat([]byte("x"), 2048), 0o644))

	tracker := newTracker(t, store, fs, UploadTrackerConfig{RemovalDelay: 50 * time.Millisecond})

	var mu sync.Mutex
	var completed []models.FileSummary
	tracker.SetOnUploadComplete(func(s models.FileSummary) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, s)
	})

	ids, err := tracker.SubmitFiles(t.Context(), []string{"/docs/report.pdf"})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	tracker.Wait()

	task, ok := tracker.Task(ids[0])
	require.True(t, ok)
	assert.Equal(t, "complete", string(task.Status))
	assert.Equal(t, 100, task.Progress)

	data, err := store.Get(storage.TierGuest, "report.pdf")
	require.NoError(t, err)
	assert.Len(t, data, 2048)

	mu.Lock()
	assert.Equal(t, []models.FileSummary{{Key: "report.pdf", Name: "report.pdf", Size: 2048}}, completed)
	mu.Unlock()

	assert.Eventually(t, func() bool {
		_, ok := tracker.Task(ids[0])
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestUploadTracker_IndependentFailures(t *testing.T) {
	store := memory.NewProvider()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ok.txt", []byte("ok"), 0o644))
	require.NoError(t, fs.MkdirAll("/dir", 0o755))

	tracker := newTracker(t, store, fs, UploadTrackerConfig{RemovalDelay: time.Hour})
	ids, err := tracker.SubmitFiles(t.Context(), []string{"/missing.txt", "/ok.txt", "/dir"})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	tracker.Wait()

	missing, _ := tracker.Task(ids[0])
	ok, _ := tracker.Task(ids[1])
	dir, _ := tracker.Task(ids[2])
	assert.Equal(t, "error", string(missing.Status))
	assert.NotEmpty(t, missing.Error)
	assert.Equal(t, "complete", string(ok.Status))
	assert.Equal(t, "error", string(dir.Status))

	// Failed tasks stay until dismissed
	require.NoError(t, tracker.Dismiss(ids[0]))
	_, found := tracker.Task(ids[0])
	assert.False(t, found)
}

func TestUploadTracker_StorageFailure(t *testing.T) {
	store := memory.NewProvider()
	store.SetError(memory.OpUpload, errors.New("quota exceeded"))
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("a"), 0o644))

	tracker := newTracker(t, store, fs, UploadTrackerConfig{RemovalDelay: 10 * time.Millisecond})
	called := false
	tracker.SetOnUploadComplete(func(models.FileSummary) { called = true })

	ids, err := tracker.SubmitFiles(t.Context(), []string{"/a.txt"})
	require.NoError(t, err)
	tracker.Wait()

	time.Sleep(30 * time.Millisecond)
	task, ok := tracker.Task(ids[0])
	require.True(t, ok, "failed tasks are never auto-removed")
	assert.Equal(t, "error", string(task.Status))
	assert.Contains(t, task.Error, "quota exceeded")
	assert.False(t, called)
}

func TestUploadTracker_CancelledContextFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("a"), 0o644))
	tracker := newTracker(t, memory.NewProvider(), fs, UploadTrackerConfig{})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	ids, err := tracker.SubmitFiles(ctx, []string{"/a.txt"})
	require.NoError(t, err)
	tracker.Wait()

	task, _ := tracker.Task(ids[0])
	assert.Equal(t, "error", string(task.Status))
}

func TestUploadTracker_CloseStopsRemoval(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("a"), 0o644))
	tracker := NewUploadTracker(memory.NewProvider(), fs, nil, nil, UploadTrackerConfig{RemovalDelay: 20 * time.Millisecond})

	ids, err := tracker.SubmitFiles(t.Context(), []string{"/a.txt"})
	require.NoError(t, err)
	tracker.Wait()
	tracker.Close()
	tracker.Close()

	time.Sleep(50 * time.Millisecond)
	_, ok := tracker.Task(ids[0])
	assert.True(t, ok, "removal timer must not fire after Close")

	_, err = tracker.SubmitFiles(t.Context(), []string{"/a.txt"})
	assert.ErrorIs(t, err, ErrTrackerClosed)
}

func TestUploadTracker_MaxConcurrent(t *testing.T) {
	fs := afero.NewMemMapFs()
	var paths []string
	for _, name := range []string{"/a.txt", "/b.txt", "/c.txt"} {
		require.NoError(t, afero.WriteFile(fs, name, []byte(name), 0o644))
		paths = append(paths, name)
	}
	store := memory.NewProvider()
	tracker := newTracker(t, store, fs, UploadTrackerConfig{MaxConcurrent: 1, RemovalDelay: time.Hour})

	_, err := tracker.SubmitFiles(t.Context(), paths)
	require.NoError(t, err)
	tracker.Wait()
	assert.Equal(t, 3, store.Len())
}
