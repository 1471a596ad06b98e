package cli

import (
	"github.com/spf13/cobra"
)

// AddShortcuts adds shortcut commands to the root command.
// Shortcuts provide convenient aliases for commonly-used operations.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newUploadShortcut())
	rootCmd.AddCommand(newDownloadShortcut())
	rootCmd.AddCommand(newLsShortcut())
}

// newUploadShortcut creates the 'upload' shortcut command.
// Shortcut for: files upload
func newUploadShortcut() *cobra.Command {
	cmd := newFilesUploadCmd()
	cmd.Short = "Upload files (shortcut for 'files upload')"
	cmd.Example = `  blackdropbox upload report.pdf photo.png
  blackdropbox upload *.csv`
	return cmd
}

// newDownloadShortcut creates the 'download' shortcut command.
// Shortcut for: files download
func newDownloadShortcut() *cobra.Command {
	cmd := newFilesDownloadCmd()
	cmd.Short = "Download a file (shortcut for 'files download')"
	cmd.Example = `  blackdropbox download report.pdf
  blackdropbox download report.pdf -O ./downloads
  blackdropbox download report.pdf --url-only`
	return cmd
}

// newLsShortcut creates the 'ls' shortcut command.
// Shortcut for: files list
func newLsShortcut() *cobra.Command {
	cmd := newFilesListCmd()
	cmd.Use = "ls"
	cmd.Aliases = nil
	cmd.Short = "List files (shortcut for 'files list')"
	return cmd
}
