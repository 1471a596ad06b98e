package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/blackdropbox/blackdropbox/internal/constants"
	bdstrings "github.com/blackdropbox/blackdropbox/internal/util/strings"
)

// DownloadBar reports the progress of a single download.
type DownloadBar struct {
	out        io.Writer
	bar        *progressbar.ProgressBar
	name       string
	isTerminal bool
	startTime  time.Time
	written    int64
}

// NewDownloadBar creates a bar for name. size may be -1 when unknown.
func NewDownloadBar(out io.Writer, name string, size int64) *DownloadBar {
	isTerminal := IsTerminal(out)
	barOut := io.Discard
	if isTerminal {
		prepareTerminal(out)
		barOut = out
	}

	return &DownloadBar{
		out:        out,
		name:       name,
		isTerminal: isTerminal,
		startTime:  time.Now(),
		bar: progressbar.NewOptions64(size,
			progressbar.OptionSetDescription(truncatePath(name, 2)),
			progressbar.OptionSetWriter(barOut),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(constants.ProgressBarWidth),
			progressbar.OptionThrottle(constants.ProgressUpdateInterval),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(barOut, "\n")
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		),
	}
}

// Update sets the number of bytes written so far. It matches
// storage.ProgressFunc.
func (d *DownloadBar) Update(transferred, total int64) {
	if total > 0 && d.bar.GetMax64() != total {
		d.bar.ChangeMax64(total)
	}
	d.written = transferred
	_ = d.bar.Set64(transferred)
}

// Finish completes the bar and prints a summary line.
func (d *DownloadBar) Finish(localPath string, err error) {
	if err != nil {
		_ = d.bar.Exit()
		fmt.Fprintf(d.out, "✗ %s: %v\n", d.name, err)
		return
	}
	_ = d.bar.Finish()
	elapsed := time.Since(d.startTime).Round(100 * time.Millisecond)
	fmt.Fprintf(d.out, "✓ %s → %s (%s, %s)\n", d.name, localPath, bdstrings.FormatSize(d.written), elapsed)
}
