package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/blackdropbox/blackdropbox/internal/events"
)

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		path string
		n    int
		want string
	}{
		{"file.txt", 2, "file.txt"},
		{"dir/file.txt", 2, "file.txt"},
		{"/a/b/c/file.txt", 2, "…/c/file.txt"},
	}
	for _, tt := range tests {
		if got := truncatePath(tt.path, tt.n); got != tt.want {
			t.Errorf("truncatePath(%q, %d) = %q, want %q", tt.path, tt.n, got, tt.want)
		}
	}
}

func TestIsTerminal_Buffer(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}

func TestUploadUI_NonTerminal(t *testing.T) {
	var out bytes.Buffer
	ui := NewUploadUI(&out, 2)

	ui.Handle(&events.UploadEvent{BaseEvent: events.BaseEvent{EventType: events.EventUploadQueued}, TaskID: "1", Name: "a.txt", Size: 1024})
	ui.Handle(&events.UploadEvent{BaseEvent: events.BaseEvent{EventType: events.EventUploadProgress}, TaskID: "1", Progress: 50})
	ui.Handle(&events.UploadEvent{BaseEvent: events.BaseEvent{EventType: events.EventUploadCompleted}, TaskID: "1"})
	ui.Handle(&events.UploadEvent{BaseEvent: events.BaseEvent{EventType: events.EventUploadFailed}, TaskID: "2", Name: "b.txt", Error: "no such file"})
	ui.Stop()

	completed, failed := ui.Counts()
	if completed != 1 || failed != 1 {
		t.Errorf("Counts() = %d, %d, want 1, 1", completed, failed)
	}

	text := out.String()
	for _, want := range []string{"Uploading [1/2] a.txt (1.0 KB)", "✓ a.txt", "✗ b.txt: no such file"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestUploadUI_Listen(t *testing.T) {
	bus := events.NewEventBus(16)
	defer bus.Close()

	var out bytes.Buffer
	ui := NewUploadUI(&out, 1)
	ui.Listen(bus)

	bus.PublishUpload(events.EventUploadQueued, "t1", "x.bin", 10, 0, "")
	bus.PublishUpload(events.EventUploadCompleted, "t1", "x.bin", 10, 100, "")
	ui.Stop()

	if completed, _ := ui.Counts(); completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}
}

func TestFileBar_CompleteOnce(t *testing.T) {
	var out bytes.Buffer
	ui := NewUploadUI(&out, 1)
	fb := ui.AddFileBar("1", "a.txt", 1)
	if again := ui.AddFileBar("1", "a.txt", 1); again != fb {
		t.Error("AddFileBar() should return the existing bar")
	}
	fb.Complete(errors.New("boom"))
	fb.Complete(nil)
	ui.Stop()

	if completed, failed := ui.Counts(); completed != 0 || failed != 1 {
		t.Errorf("Counts() = %d, %d, want 0, 1", completed, failed)
	}
}

func TestDownloadBar_NonTerminal(t *testing.T) {
	var out bytes.Buffer
	bar := NewDownloadBar(&out, "report.pdf", -1)
	bar.Update(512, 2048)
	bar.Update(2048, 2048)
	bar.Finish("/tmp/report.pdf", nil)

	if !strings.Contains(out.String(), "✓ report.pdf → /tmp/report.pdf (2.0 KB") {
		t.Errorf("unexpected output: %q", out.String())
	}

	out.Reset()
	failed := NewDownloadBar(&out, "x", 10)
	failed.Finish("", errors.New("404"))
	if !strings.Contains(out.String(), "✗ x: 404") {
		t.Errorf("unexpected output: %q", out.String())
	}
}
