package progress

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/blackdropbox/blackdropbox/internal/constants"
	"github.com/blackdropbox/blackdropbox/internal/events"
	bdstrings "github.com/blackdropbox/blackdropbox/internal/util/strings"
)

// UploadUI draws one bar per upload task from upload tracker events.
type UploadUI struct {
	out        io.Writer
	progress   *mpb.Progress
	isTerminal bool
	totalFiles int

	mu        sync.Mutex
	bars      map[string]*FileBar // task id -> bar
	started   int
	completed int
	failed    int

	bus  *events.EventBus
	sub  <-chan events.Event
	stop chan struct{}
	done chan struct{}
}

// FileBar is the bar of a single upload task.
type FileBar struct {
	bar       *mpb.Bar
	ui        *UploadUI
	index     int
	name      string
	size      int64
	startTime time.Time
	finished  bool
}

// NewUploadUI creates an upload UI writing to out for totalFiles uploads.
func NewUploadUI(out io.Writer, totalFiles int) *UploadUI {
	isTerminal := IsTerminal(out)

	var p *mpb.Progress
	if isTerminal {
		prepareTerminal(out)
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressUpdateInterval),
			mpb.WithWidth(constants.ProgressBarWidth),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &UploadUI{
		out:        out,
		progress:   p,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
		bars:       make(map[string]*FileBar),
	}
}

// Listen subscribes to upload events on bus and renders them until Stop.
func (u *UploadUI) Listen(bus *events.EventBus) {
	u.bus = bus
	u.sub = bus.Subscribe(
		events.EventUploadQueued,
		events.EventUploadProgress,
		events.EventUploadCompleted,
		events.EventUploadFailed,
	)
	u.stop = make(chan struct{})
	u.done = make(chan struct{})

	go func() {
		defer close(u.done)
		for {
			select {
			case ev, ok := <-u.sub:
				if !ok {
					return
				}
				u.Handle(ev)
			case <-u.stop:
				// Drain what was published before Stop
				for {
					select {
					case ev, ok := <-u.sub:
						if !ok {
							return
						}
						u.Handle(ev)
					default:
						return
					}
				}
			}
		}
	}()
}

// Handle applies one upload event.
func (u *UploadUI) Handle(ev events.Event) {
	ue, ok := ev.(*events.UploadEvent)
	if !ok {
		return
	}

	switch ue.Type() {
	case events.EventUploadQueued:
		u.AddFileBar(ue.TaskID, ue.Name, ue.Size)
	case events.EventUploadProgress:
		if fb := u.bar(ue.TaskID); fb != nil {
			fb.UpdateProgress(ue.Progress)
		}
	case events.EventUploadCompleted:
		if fb := u.bar(ue.TaskID); fb != nil {
			fb.Complete(nil)
		}
	case events.EventUploadFailed:
		fb := u.bar(ue.TaskID)
		if fb == nil {
			// Failed before it was queued on screen, e.g. a missing file
			fb = u.AddFileBar(ue.TaskID, ue.Name, ue.Size)
		}
		fb.Complete(errors.New(ue.Error))
	}
}

func (u *UploadUI) bar(taskID string) *FileBar {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.bars[taskID]
}

// AddFileBar creates the bar for a task. Adding the same task twice
// returns the existing bar.
func (u *UploadUI) AddFileBar(taskID, name string, size int64) *FileBar {
	u.mu.Lock()
	if fb, ok := u.bars[taskID]; ok {
		u.mu.Unlock()
		return fb
	}
	u.started++
	fb := &FileBar{
		ui:        u,
		index:     u.started,
		name:      name,
		size:      size,
		startTime: time.Now(),
	}
	u.bars[taskID] = fb
	u.mu.Unlock()

	label := fmt.Sprintf("[%d/%d] %s (%s)", fb.index, u.totalFiles, truncatePath(name, 2), bdstrings.FormatSize(size))
	if u.isTerminal {
		fb.bar = u.progress.New(100,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(decor.Name(label, decor.WCSyncSpaceR)),
			mpb.AppendDecorators(
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Uploading %s\n", label)
	}
	return fb
}

// UpdateProgress moves the bar to percent (0..100).
func (f *FileBar) UpdateProgress(percent int) {
	if f.bar == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	f.bar.SetCurrent(int64(percent))
}

// Complete finishes the bar and prints a summary line.
func (f *FileBar) Complete(err error) {
	f.ui.mu.Lock()
	if f.finished {
		f.ui.mu.Unlock()
		return
	}
	f.finished = true
	if err == nil {
		f.ui.completed++
	} else {
		f.ui.failed++
	}
	f.ui.mu.Unlock()

	elapsed := time.Since(f.startTime).Round(100 * time.Millisecond)
	var msg string
	if err == nil {
		if f.bar != nil {
			f.bar.SetCurrent(100)
			f.bar.SetTotal(100, true)
		}
		msg = fmt.Sprintf("✓ %s (%s, %s)\n", f.name, bdstrings.FormatSize(f.size), elapsed)
	} else {
		if f.bar != nil {
			f.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s: %v\n", f.name, err)
	}
	_, _ = f.ui.Writer().Write([]byte(msg))
}

// Stop ends the subscription, aborts unfinished bars and waits for the
// bars to render.
func (u *UploadUI) Stop() {
	if u.stop != nil {
		close(u.stop)
		<-u.done
		u.bus.Unsubscribe(u.sub)
		u.stop = nil
	}

	u.mu.Lock()
	var open []*FileBar
	for _, fb := range u.bars {
		if !fb.finished && fb.bar != nil {
			open = append(open, fb)
		}
	}
	u.mu.Unlock()
	for _, fb := range open {
		fb.bar.Abort(true)
	}
	u.progress.Wait()
}

// Counts returns how many uploads completed and failed.
func (u *UploadUI) Counts() (completed, failed int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.completed, u.failed
}

// Writer returns a writer that prints above the bars.
func (u *UploadUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal reports whether bars are drawn.
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}
