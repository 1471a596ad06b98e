package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackdropbox/blackdropbox/internal/config"
	"github.com/blackdropbox/blackdropbox/internal/core"
	"github.com/blackdropbox/blackdropbox/internal/events"
	"github.com/blackdropbox/blackdropbox/internal/models"
	"github.com/blackdropbox/blackdropbox/internal/services"
	"github.com/blackdropbox/blackdropbox/internal/transfer"
	"github.com/blackdropbox/blackdropbox/internal/util/filter"
	bdstrings "github.com/blackdropbox/blackdropbox/internal/util/strings"
)

const shellHelp = `Commands:
  ls [type]              list files, optionally of one type
  search <text>          list files whose name contains text
  upload <path>...       upload local files
  tasks                  show uploads in progress
  dismiss <task-id>      remove a failed upload from the list
  download <name>        print a signed download URL (valid one hour)
  delete <name>          delete a file after confirmation
  select <name>          open the version panel for a file
  versions               show the selected file's versions
  version-url <id>       print a download URL for a version of the selected file
  close                  close the version panel
  stats                  show totals
  refresh                reload the file list
  toasts                 show active notifications
  whoami                 show the signed-in user
  signout                sign out and leave
  help                   show this help
  quit | exit            leave the dashboard`

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"shell"},
		Short:   "Interactive dashboard for a signed-in user",
		Long: `Open an interactive dashboard: file list, uploads, stats and a version
panel for the selected file. Notifications are shown before each prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			return withDashboard(ctx, func(a *app, d *core.Dashboard) error {
				sh := newShell(a, d, cmd.OutOrStdout())
				defer sh.close()
				sh.run(ctx, bufio.NewScanner(cmd.InOrStdin()))
				return nil
			})
		},
	}
}

// shell is the line-oriented dashboard.
type shell struct {
	app     *app
	dash    *core.Dashboard
	out     io.Writer
	toasts  <-chan events.Event
	scanner *bufio.Scanner
}

func newShell(a *app, d *core.Dashboard, out io.Writer) *shell {
	return &shell{
		app:    a,
		dash:   d,
		out:    out,
		toasts: a.bus.Subscribe(events.EventToast),
	}
}

func (s *shell) close() {
	s.app.bus.Unsubscribe(s.toasts)
}

func (s *shell) println(a ...interface{}) {
	fmt.Fprintln(s.out, a...)
}

// run reads commands until EOF, quit or sign-out. Command errors are
// printed and the loop continues.
func (s *shell) run(ctx context.Context, scanner *bufio.Scanner) {
	s.scanner = scanner
	s.header()
	for {
		s.flushToasts()
		fmt.Fprintf(s.out, "bdx %s> ", s.dash.Gate().Initials())
		if !scanner.Scan() {
			s.println()
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		done, err := s.exec(ctx, parts[0], parts[1:])
		if err != nil {
			s.println("Error:", err)
		}
		if done {
			s.flushToasts()
			return
		}
	}
}

func (s *shell) header() {
	s.println(fmt.Sprintf("BlackDropbox  |  %s (%s)", s.dash.Gate().DisplayName(), s.dash.Gate().Initials()))
	if err := s.stats(); err != nil {
		s.println("Error:", err)
	}
	s.println("Type 'help' for commands.")
}

// exec runs one command. done reports that the shell should exit.
func (s *shell) exec(ctx context.Context, name string, args []string) (done bool, err error) {
	switch name {
	case "help", "?":
		s.println(shellHelp)
	case "ls", "list":
		return false, s.list(args)
	case "search":
		if len(args) == 0 {
			return false, errors.New("usage: search <text>")
		}
		return false, s.search(strings.Join(args, " "))
	case "upload":
		return false, s.upload(ctx, args)
	case "tasks":
		return false, s.tasks()
	case "dismiss":
		return false, s.dismiss(args)
	case "download":
		return false, s.download(ctx, args)
	case "delete", "rm":
		return false, s.delete(ctx, args)
	case "select":
		return false, s.selectFile(args)
	case "versions":
		return false, s.versions(ctx)
	case "version-url":
		return false, s.versionURL(ctx, args)
	case "close":
		s.dash.ClearSelection()
	case "stats":
		return false, s.stats()
	case "refresh":
		files, err := s.dash.Refresh(ctx)
		if err != nil {
			return false, err
		}
		s.println(fmt.Sprintf("%d %s", len(files), bdstrings.Pluralize("file", int64(len(files)))))
	case "toasts":
		s.listToasts()
	case "whoami":
		s.println(s.dash.Gate().DisplayName())
	case "signout":
		if err := s.dash.SignOut(ctx); err != nil {
			s.app.logger.Warn().Err(err).Msg("Sign-out was not acknowledged by the identity provider")
		}
		s.println("Signed out")
		return true, nil
	case "quit", "exit":
		s.println("Bye!")
		return true, nil
	default:
		s.println("Unknown command:", name, "(type 'help')")
	}
	return false, nil
}

func (s *shell) catalog() (*services.FileCatalog, error) {
	return s.dash.Catalog()
}

func (s *shell) find(args []string) (*services.FileCatalog, models.FileEntry, error) {
	if len(args) == 0 {
		return nil, models.FileEntry{}, errors.New("a file name is required")
	}
	catalog, err := s.catalog()
	if err != nil {
		return nil, models.FileEntry{}, err
	}
	name := strings.Join(args, " ")
	entry, ok := catalog.Find(name)
	if !ok {
		return nil, models.FileEntry{}, fmt.Errorf("file not found: %s", name)
	}
	return catalog, entry, nil
}

func (s *shell) list(args []string) error {
	catalog, err := s.catalog()
	if err != nil {
		return err
	}
	if st := catalog.State(); st.Err != nil {
		s.println("Failed to load files:", st.Err)
	}
	files := catalog.Files()
	if len(args) > 0 {
		t, ok := models.ParseFileType(args[0])
		if !ok {
			return fmt.Errorf("unknown file type %q", args[0])
		}
		files = catalog.Filter(filter.Config{Types: []models.FileType{t}})
	}
	if len(files) == 0 {
		s.println("No files yet. Upload one with 'upload <path>'.")
		return nil
	}
	return renderFiles(s.out, config.OutputTable, files)
}

func (s *shell) search(query string) error {
	catalog, err := s.catalog()
	if err != nil {
		return err
	}
	files := catalog.Search(query)
	if len(files) == 0 {
		s.println("No files match", fmt.Sprintf("%q", query))
		return nil
	}
	return renderFiles(s.out, config.OutputTable, files)
}

func (s *shell) upload(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errors.New("usage: upload <path>...")
	}
	tracker, err := s.dash.Tracker()
	if err != nil {
		return err
	}
	ids, err := tracker.SubmitFiles(ctx, paths)
	if err != nil {
		return err
	}
	s.println(fmt.Sprintf("%d %s started", len(ids), bdstrings.Pluralize("upload", int64(len(ids)))))
	return nil
}

func (s *shell) tasks() error {
	tracker, err := s.dash.Tracker()
	if err != nil {
		return err
	}
	tasks := tracker.Tasks()
	if len(tasks) == 0 {
		s.println("No uploads")
		return nil
	}
	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tPROGRESS\t")
	for _, t := range tasks {
		status := string(t.Status)
		if t.Status == transfer.StatusError {
			status = "error: " + t.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t\n", bdstrings.Truncate(t.ID, 8), t.Name, status, t.Progress)
	}
	return tw.Flush()
}

func (s *shell) dismiss(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: dismiss <task-id>")
	}
	tracker, err := s.dash.Tracker()
	if err != nil {
		return err
	}
	for _, t := range tracker.Tasks() {
		if strings.HasPrefix(t.ID, args[0]) {
			return tracker.Dismiss(t.ID)
		}
	}
	return fmt.Errorf("no upload %s", args[0])
}

func (s *shell) download(ctx context.Context, args []string) error {
	catalog, entry, err := s.find(args)
	if err != nil {
		return err
	}
	signedURL, err := catalog.Download(ctx, entry)
	if err != nil {
		return err
	}
	s.println(signedURL)
	return nil
}

func (s *shell) delete(ctx context.Context, args []string) error {
	catalog, entry, err := s.find(args)
	if err != nil {
		return err
	}
	confirmation := catalog.RequestDelete(entry)
	fmt.Fprintf(s.out, "%s [y/N]: ", confirmation.Prompt())
	answer := ""
	if s.scanner.Scan() {
		answer = strings.ToLower(strings.TrimSpace(s.scanner.Text()))
	}
	if answer != "y" && answer != "yes" {
		s.println("Cancelled")
		return confirmation.Cancel()
	}
	if err := confirmation.Confirm(ctx); err != nil {
		return err
	}
	if sel := s.dash.Selected(); sel != nil && sel.Key == entry.Key {
		s.dash.ClearSelection()
	}
	return nil
}

func (s *shell) selectFile(args []string) error {
	_, entry, err := s.find(args)
	if err != nil {
		return err
	}
	s.dash.Select(entry)
	s.println("Selected", entry.Name())
	return nil
}

func (s *shell) versions(ctx context.Context) error {
	if s.dash.Selected() == nil {
		return errors.New("no file selected: use 'select <name>'")
	}
	history, err := s.dash.SelectedVersions(ctx)
	if err != nil {
		return err
	}
	return renderVersions(s.out, config.OutputTable, history, s.dash.Versions().CanDownloadVersion(), false)
}

func (s *shell) versionURL(ctx context.Context, args []string) error {
	sel := s.dash.Selected()
	if sel == nil {
		return errors.New("no file selected: use 'select <name>'")
	}
	if len(args) != 1 {
		return errors.New("usage: version-url <version-id>")
	}
	signedURL, err := s.dash.Versions().DownloadVersionURL(ctx, sel.Key, args[0])
	if err != nil {
		return err
	}
	s.println(signedURL)
	return nil
}

func (s *shell) stats() error {
	stats, err := s.dash.Stats(time.Now())
	if err != nil {
		return err
	}
	s.println(fmt.Sprintf("Files: %d  |  Size: %s  |  Uploads today: %d  |  Versions: %d",
		stats.TotalFiles, stats.TotalSize, stats.UploadsToday, stats.Versions))
	return nil
}

func (s *shell) listToasts() {
	active := s.dash.Toasts().Active()
	if len(active) == 0 {
		s.println("No notifications")
		return
	}
	for _, t := range active {
		s.println(formatToast(t.Level, t.Message))
	}
}

// flushToasts prints notifications published since the last prompt.
func (s *shell) flushToasts() {
	for {
		select {
		case ev, ok := <-s.toasts:
			if !ok {
				return
			}
			if t, ok := ev.(*events.ToastEvent); ok {
				s.println(formatToast(services.ToastLevel(t.Level), t.Message))
			}
		default:
			return
		}
	}
}

func formatToast(level services.ToastLevel, message string) string {
	switch level {
	case services.ToastSuccess:
		return "✓ " + message
	case services.ToastError:
		return "✗ " + message
	default:
		return "• " + message
	}
}
