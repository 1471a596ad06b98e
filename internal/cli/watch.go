package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackdropbox/blackdropbox/internal/config"
	"github.com/blackdropbox/blackdropbox/internal/core"
	"github.com/blackdropbox/blackdropbox/internal/daemon"
	"github.com/blackdropbox/blackdropbox/internal/events"
	"github.com/blackdropbox/blackdropbox/internal/pathutil"
	"github.com/blackdropbox/blackdropbox/internal/util/filter"
	bdstrings "github.com/blackdropbox/blackdropbox/internal/util/strings"
)

const dropFolderStateFile = "dropfolder-state.json"

func newWatchCmd() *cobra.Command {
	var (
		recursive    bool
		scanExisting bool
		debounce     time.Duration
		include      string
		exclude      string
		noState      bool
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Upload files dropped into a local folder",
		Long: `Watch a local folder and upload every new or changed file once it has
been quiet for the debounce period. Hidden, temporary and partial files are
skipped. Without [dir] the configured drop_folder is watched.

Press Ctrl+C to stop.`,
		Example: `  blackdropbox watch ~/Drop
  blackdropbox watch ~/Drop --recursive --scan-existing --include "*.pdf,*.png"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			return withDashboard(ctx, func(a *app, d *core.Dashboard) error {
				dir := a.cfg.DropFolder
				if len(args) == 1 {
					dir = args[0]
				}
				if dir == "" {
					return errors.New("no folder given and drop_folder is not configured")
				}
				dir, err := pathutil.ResolveAbsolutePath(dir)
				if err != nil {
					return fmt.Errorf("invalid drop folder: %w", err)
				}

				tracker, err := d.Tracker()
				if err != nil {
					return err
				}

				cfg := daemon.Config{
					Dir:          dir,
					Recursive:    recursive,
					ScanExisting: scanExisting,
					Debounce:     debounce,
					Include:      filter.ParsePatternList(include),
					Exclude:      filter.ParsePatternList(exclude),
				}
				if !noState {
					cfg.StateFile = filepath.Join(config.ConfigDirectory(), dropFolderStateFile)
				}

				w, err := daemon.New(cfg, tracker, a.fs, a.logger)
				if err != nil {
					return err
				}

				go reportUploads(ctx, cmd.OutOrStdout(), a.bus)

				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", dir)
				if err := w.Run(ctx); err != nil {
					return err
				}
				tracker.Wait()
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped. %d file(s) uploaded, %d failed\n",
					w.State().SubmittedCount(), w.State().FailedCount())
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Also watch subdirectories")
	cmd.Flags().BoolVar(&scanExisting, "scan-existing", false, "Upload files already in the folder")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before upload (default 2s)")
	cmd.Flags().StringVar(&include, "include", "", "Comma-separated glob patterns to include")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Comma-separated glob patterns to exclude")
	cmd.Flags().BoolVar(&noState, "no-state", false, "Do not remember uploaded files across restarts")
	return cmd
}

// reportUploads prints one line per finished upload until ctx is done.
func reportUploads(ctx context.Context, out io.Writer, bus *events.EventBus) {
	ch := bus.Subscribe(events.EventUploadCompleted, events.EventUploadFailed)
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			up, ok := ev.(*events.UploadEvent)
			if !ok {
				continue
			}
			if up.Type() == events.EventUploadFailed {
				fmt.Fprintf(out, "✗ %s: %s\n", up.Name, up.Error)
				continue
			}
			fmt.Fprintf(out, "✓ %s (%s)\n", up.Name, bdstrings.FormatSize(up.Size))
		}
	}
}
