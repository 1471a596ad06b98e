// Package diskspace checks free space before a download is written.
package diskspace

import (
	"errors"
	"fmt"
	"path/filepath"

	bdstrings "github.com/blackdropbox/blackdropbox/internal/util/strings"
)

// DefaultSafetyMargin leaves 10% headroom above the expected size.
const DefaultSafetyMargin = 1.1

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %s, have %s available",
		e.Path, bdstrings.FormatSize(e.RequiredBytes), bdstrings.FormatSize(e.AvailableBytes))
}

// CheckAvailableSpace returns an *InsufficientSpaceError when the filesystem
// holding targetPath has less than requiredBytes*safetyMargin free.
// targetPath itself need not exist. When free space cannot be determined
// (network or virtual filesystems) the check passes.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	if requiredBytes <= 0 {
		return nil
	}
	available, ok := availableBytes(filepath.Dir(targetPath))
	if !ok {
		return nil
	}
	return compare(targetPath, requiredBytes, safetyMargin, available)
}

// GetAvailableSpace returns the free bytes on the filesystem containing
// path, or 0 if unknown.
func GetAvailableSpace(path string) int64 {
	available, ok := availableBytes(filepath.Dir(path))
	if !ok {
		return 0
	}
	return available
}

func compare(targetPath string, requiredBytes int64, safetyMargin float64, available int64) error {
	if safetyMargin < 1 {
		safetyMargin = 1
	}
	required := int64(float64(requiredBytes) * safetyMargin)
	if available < required {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// IsInsufficientSpaceError reports whether err wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}
