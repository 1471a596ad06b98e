package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackdropbox/blackdropbox/internal/cloud/download"
	"github.com/blackdropbox/blackdropbox/internal/core"
	"github.com/blackdropbox/blackdropbox/internal/models"
	"github.com/blackdropbox/blackdropbox/internal/progress"
	"github.com/blackdropbox/blackdropbox/internal/services"
	"github.com/blackdropbox/blackdropbox/internal/transfer"
	"github.com/blackdropbox/blackdropbox/internal/util/filter"
	"github.com/blackdropbox/blackdropbox/internal/validation"
)

// withDashboard runs fn against a mounted dashboard.
func withDashboard(ctx context.Context, fn func(a *app, d *core.Dashboard) error) error {
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	d, err := a.startDashboard(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(a, d)
}

// loadedCatalog returns the catalog after the first listing, failing when
// that listing did not succeed.
func loadedCatalog(d *core.Dashboard) (*services.FileCatalog, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	if err := catalog.State().Err; err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return catalog, nil
}

func findFile(d *core.Dashboard, key string) (*services.FileCatalog, models.FileEntry, error) {
	catalog, err := loadedCatalog(d)
	if err != nil {
		return nil, models.FileEntry{}, err
	}
	entry, ok := catalog.Find(key)
	if !ok {
		return nil, models.FileEntry{}, fmt.Errorf("file not found: %s", key)
	}
	return catalog, entry, nil
}

// newFilesCmd creates the 'files' command group.
func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Upload, list, download and delete files",
	}
	cmd.AddCommand(newFilesListCmd())
	cmd.AddCommand(newFilesSearchCmd())
	cmd.AddCommand(newFilesUploadCmd())
	cmd.AddCommand(newFilesDownloadCmd())
	cmd.AddCommand(newFilesDeleteCmd())
	cmd.AddCommand(newFilesVersionsCmd())
	cmd.AddCommand(newFilesDownloadVersionCmd())
	cmd.AddCommand(newFilesStatsCmd())
	return cmd
}

// listFilter holds the shared list/search flags.
type listFilter struct {
	types   []string
	include string
	exclude string
	tree    bool
}

func (f *listFilter) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.types, "type", nil, "Only show these types: image, document, video, code, other")
	cmd.Flags().StringVar(&f.include, "include", "", "Comma-separated glob patterns to include (e.g. '*.pdf,*.png')")
	cmd.Flags().StringVar(&f.exclude, "exclude", "", "Comma-separated glob patterns to exclude")
	cmd.Flags().BoolVar(&f.tree, "tree", false, "Group files by type as a tree")
}

func (f *listFilter) config(query string) (filter.Config, error) {
	cfg := filter.Config{
		Query:   query,
		Include: filter.ParsePatternList(f.include),
		Exclude: filter.ParsePatternList(f.exclude),
	}
	for _, s := range f.types {
		t, ok := models.ParseFileType(s)
		if !ok {
			return filter.Config{}, fmt.Errorf("unknown file type %q", s)
		}
		cfg.Types = append(cfg.Types, t)
	}
	return cfg, nil
}

func runList(cmd *cobra.Command, f *listFilter, query string) error {
	fc, err := f.config(query)
	if err != nil {
		return err
	}
	return withDashboard(GetContext(), func(a *app, d *core.Dashboard) error {
		catalog, err := loadedCatalog(d)
		if err != nil {
			return err
		}
		files := catalog.Filter(fc)
		if f.tree {
			renderFileTree(cmd.OutOrStdout(), files)
			return nil
		}
		return renderFiles(cmd.OutOrStdout(), a.cfg.OutputFormat, files)
	})
}

func newFilesListCmd() *cobra.Command {
	f := &listFilter{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, f, "")
		},
	}
	f.register(cmd)
	return cmd
}

func newFilesSearchCmd() *cobra.Command {
	f := &listFilter{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find files whose name contains query (case-insensitive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, f, args[0])
		},
	}
	f.register(cmd)
	return cmd
}

func newFilesUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files under their base names",
		Long: `Upload files to the guest tier. Each file is stored under its base
name; an existing file with the same name is overwritten.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeUpload(cmd, args)
		},
	}
}

func executeUpload(cmd *cobra.Command, paths []string) error {
	ctx := GetContext()
	return withDashboard(ctx, func(a *app, d *core.Dashboard) error {
		tracker, err := d.Tracker()
		if err != nil {
			return err
		}

		ui := progress.NewUploadUI(cmd.ErrOrStderr(), len(paths))
		ui.Listen(a.bus)
		if _, err := tracker.SubmitFiles(ctx, paths); err != nil {
			ui.Stop()
			return err
		}
		tracker.Wait()
		ui.Stop()

		var failed []string
		for _, task := range tracker.Tasks() {
			if task.Status == transfer.StatusError {
				failed = append(failed, fmt.Sprintf("%s: %s", task.Name, task.Error))
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d of %d uploaded\n", len(paths)-len(failed), len(paths))
		if len(failed) > 0 {
			return fmt.Errorf("%d upload(s) failed:\n  %s", len(failed), strings.Join(failed, "\n  "))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	})
}

// fetchToFile downloads a signed URL with a progress bar.
func fetchToFile(cmd *cobra.Command, a *app, signedURL, name, localPath string, size int64) error {
	if strings.HasPrefix(signedURL, "memory://") {
		return fmt.Errorf("the memory backend has no downloadable URLs; use --url-only")
	}
	isDir := false
	if localPath != "" {
		if info, err := a.fs.Stat(localPath); err == nil && info.IsDir() {
			isDir = true
		}
	}
	localPath, err := validation.ResolveDownloadPath(name, localPath, isDir)
	if err != nil {
		return err
	}

	bar := progress.NewDownloadBar(cmd.ErrOrStderr(), name, size)
	_, err = download.NewDownloader(a.httpClient, a.fs).Download(GetContext(), signedURL, localPath, bar.Update)
	bar.Finish(localPath, err)
	return err
}

func newFilesDownloadCmd() *cobra.Command {
	var outPath string
	var urlOnly bool

	cmd := &cobra.Command{
		Use:   "download <name>",
		Short: "Download a file through a signed URL",
		Long: `Download a file. The signed URL is valid for one hour; --url-only
prints it instead of downloading.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeDownload(cmd, args[0], outPath, urlOnly)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "O", "", "Local file or directory (default: ./<name>)")
	cmd.Flags().BoolVar(&urlOnly, "url-only", false, "Print the signed URL instead of downloading")
	return cmd
}

func executeDownload(cmd *cobra.Command, key, outPath string, urlOnly bool) error {
	ctx := GetContext()
	return withDashboard(ctx, func(a *app, d *core.Dashboard) error {
		catalog, entry, err := findFile(d, key)
		if err != nil {
			return err
		}
		signedURL, err := catalog.Download(ctx, entry)
		if err != nil {
			return err
		}
		if urlOnly {
			fmt.Fprintln(cmd.OutOrStdout(), signedURL)
			return nil
		}
		return fetchToFile(cmd, a, signedURL, entry.Name(), outPath, entry.Size)
	})
}

func newFilesDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a file after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			return withDashboard(ctx, func(a *app, d *core.Dashboard) error {
				catalog, entry, err := findFile(d, args[0])
				if err != nil {
					return err
				}

				confirmation := catalog.RequestDelete(entry)
				if !yes {
					ok, err := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).confirm(confirmation.Prompt())
					if err != nil {
						return err
					}
					if !ok {
						_ = confirmation.Cancel()
						fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
						return nil
					}
				}
				if err := confirmation.Confirm(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%q deleted\n", entry.Name())
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newFilesVersionsCmd() *cobra.Command {
	var tree bool

	cmd := &cobra.Command{
		Use:   "versions <name>",
		Short: "Show the version history of a file",
		Long: `Show the version history of a file, newest first.

Without a version API endpoint (BLACKDROPBOX_API_ENDPOINT, api_endpoint or
--api-url) only the current version is shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			return withDashboard(ctx, func(a *app, d *core.Dashboard) error {
				_, entry, err := findFile(d, args[0])
				if err != nil {
					return err
				}
				d.Select(entry)
				history, err := d.SelectedVersions(ctx)
				if err != nil {
					return err
				}
				return renderVersions(cmd.OutOrStdout(), a.cfg.OutputFormat, history, d.Versions().CanDownloadVersion(), tree)
			})
		},
	}
	cmd.Flags().BoolVar(&tree, "tree", false, "Show the history as a tree")
	return cmd
}

func newFilesDownloadVersionCmd() *cobra.Command {
	var outPath string
	var urlOnly bool

	cmd := &cobra.Command{
		Use:   "download-version <name> <version-id>",
		Short: "Download one stored version of a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			d := a.dashboard()
			defer d.Close()
			signedURL, err := d.Versions().DownloadVersionURL(ctx, args[0], args[1])
			if err != nil {
				if errors.Is(err, services.ErrVersionDownloadDisabled) {
					return fmt.Errorf("%w (set BLACKDROPBOX_API_ENDPOINT or --api-url)", err)
				}
				return err
			}
			if urlOnly {
				fmt.Fprintln(cmd.OutOrStdout(), signedURL)
				return nil
			}
			return fetchToFile(cmd, a, signedURL, args[0], outPath, -1)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "O", "", "Local file or directory (default: ./<name>)")
	cmd.Flags().BoolVar(&urlOnly, "url-only", false, "Print the signed URL instead of downloading")
	return cmd
}

func newFilesStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show file count, total size and today's uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(GetContext(), func(a *app, d *core.Dashboard) error {
				if _, err := loadedCatalog(d); err != nil {
					return err
				}
				stats, err := d.Stats(time.Now())
				if err != nil {
					return err
				}
				return renderStats(cmd.OutOrStdout(), a.cfg.OutputFormat, stats)
			})
		},
	}
}
