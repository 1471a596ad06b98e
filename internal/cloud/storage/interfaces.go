// Package storage defines the object storage contract shared by the S3,
// Azure and in-memory backends.
package storage

import (
	"context"
	"io"
	"time"
)

// Object is one listed object. Key is relative to the access tier prefix.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ProgressFunc receives cumulative bytes transferred and the expected total.
// total is 0 when unknown.
type ProgressFunc func(transferred, total int64)

// ListOptions controls a listing.
type ListOptions struct {
	AccessTier AccessTier
	// All follows continuation tokens until the listing is exhausted.
	// Without it only the first page is returned and the result may be truncated.
	All bool
}

// URLOptions controls a signed URL.
type URLOptions struct {
	AccessTier AccessTier
	Expires    time.Duration
	VersionID  string // empty = latest
}

// UploadOptions controls an upload.
type UploadOptions struct {
	AccessTier  AccessTier
	ContentType string
	Size        int64
	OnProgress  ProgressFunc
}

// RemoveOptions controls a removal.
type RemoveOptions struct {
	AccessTier AccessTier
}

// Storage is the object store collaborator. All keys are scoped to the
// access tier given in the options.
type Storage interface {
	// List returns the objects whose key starts with prefix.
	List(ctx context.Context, prefix string, opts ListOptions) ([]Object, error)

	// SignedURL returns a time-limited URL granting read access to one object.
	SignedURL(ctx context.Context, key string, opts URLOptions) (string, error)

	// Upload stores body under key, replacing any existing object.
	// opts.OnProgress is called from the uploading goroutine.
	Upload(ctx context.Context, key string, body io.Reader, opts UploadOptions) error

	// Remove deletes the object stored under key.
	Remove(ctx context.Context, key string, opts RemoveOptions) error
}
