// Package download fetches objects from signed URLs onto the local filesystem.
package download

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/blackdropbox/blackdropbox/internal/cloud/storage"
	"github.com/blackdropbox/blackdropbox/internal/diskspace"
	"github.com/blackdropbox/blackdropbox/internal/version"
)

// PartSuffix marks an incomplete download next to its destination.
const PartSuffix = ".part"

// Downloader streams signed URLs to files.
type Downloader struct {
	client *nethttp.Client
	fs     afero.Fs

	// checkSpace rejects a download whose Content-Length does not fit.
	// Only set for the OS filesystem.
	checkSpace func(path string, size int64) error
}

// NewDownloader creates a downloader. A nil client selects http.DefaultClient,
// a nil fs the OS filesystem.
func NewDownloader(client *nethttp.Client, fs afero.Fs) *Downloader {
	if client == nil {
		client = nethttp.DefaultClient
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	d := &Downloader{client: client, fs: fs}
	if _, ok := fs.(*afero.OsFs); ok {
		d.checkSpace = func(path string, size int64) error {
			return diskspace.CheckAvailableSpace(path, size, diskspace.DefaultSafetyMargin)
		}
	}
	return d
}

// Download GETs signedURL into localPath and returns the byte count.
// Data is written to localPath+".part" and renamed once complete, so an
// interrupted download never leaves a truncated file under the final name.
func (d *Downloader) Download(ctx context.Context, signedURL, localPath string, onProgress storage.ProgressFunc) (int64, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, signedURL, nil)
	if err != nil {
		return 0, fmt.Errorf("invalid download URL: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == nethttp.StatusNotFound {
			return 0, fmt.Errorf("%w: %s", storage.ErrNotFound, resp.Status)
		}
		return 0, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(body))
	}

	if dir := filepath.Dir(localPath); dir != "." {
		if err := d.fs.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if d.checkSpace != nil && resp.ContentLength > 0 {
		if err := d.checkSpace(localPath, resp.ContentLength); err != nil {
			return 0, err
		}
	}

	partPath := localPath + PartSuffix
	f, err := d.fs.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", partPath, err)
	}

	n, copyErr := io.Copy(f, storage.NewProgressReader(resp.Body, resp.ContentLength, onProgress))
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = d.fs.Remove(partPath)
		if copyErr != nil {
			return n, fmt.Errorf("download interrupted after %d bytes: %w", n, copyErr)
		}
		return n, fmt.Errorf("failed to close %s: %w", partPath, closeErr)
	}

	if err := d.fs.Rename(partPath, localPath); err != nil {
		_ = d.fs.Remove(partPath)
		return n, fmt.Errorf("failed to move download into place: %w", err)
	}
	return n, nil
}
