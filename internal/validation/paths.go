// Package validation checks names that come from storage before they touch
// the local filesystem.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilename validates an object name used as a local file name.
//
// Returns an error if the name:
//   - Is empty
//   - Contains path separators (/ or \)
//   - Is "." or ".."
//   - Contains null bytes
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}
	// "foo..bar.txt" is fine, only the bare dot names are rejected
	if filename == "." || filename == ".." {
		return fmt.Errorf("filename cannot be %q", filename)
	}
	return nil
}

// ResolveDownloadPath returns where a download of name is written.
//
// An empty out selects ./name; an out with isDir set selects out/name; any
// other out is used as given. name is validated whenever it becomes part of
// the path.
func ResolveDownloadPath(name, out string, isDir bool) (string, error) {
	if out != "" && !isDir {
		return filepath.Clean(out), nil
	}
	if err := ValidateFilename(name); err != nil {
		return "", fmt.Errorf("unsafe file name: %w", err)
	}
	if out == "" {
		return name, nil
	}
	return filepath.Join(out, name), nil
}

// ValidatePathInDirectory validates that a path, when resolved, stays within baseDir.
//
//	ValidatePathInDirectory("../../etc/passwd", "/tmp/drop") // Error: escapes base dir
//	ValidatePathInDirectory("sub/file.txt", "/tmp/drop")      // OK
func ValidatePathInDirectory(path string, baseDir string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if baseDir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	cleanBase, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(cleanBase, resolved)
	}

	rel, err := filepath.Rel(cleanBase, resolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s (base: %s)", path, baseDir)
	}
	return nil
}
