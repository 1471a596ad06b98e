// Package progress renders upload and download progress on the terminal.
// Bars are drawn only when the output is a TTY; otherwise one line per
// file is printed.
package progress

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// prepareTerminal enables ANSI sequences on w when it is a console.
func prepareTerminal(w io.Writer) {
	if f, ok := w.(*os.File); ok {
		enableWindowsANSI(f)
	}
}

// truncatePath keeps the last maxComponents elements of path.
// Example: truncatePath("/a/b/c/d/file.txt", 2) → "…/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}
