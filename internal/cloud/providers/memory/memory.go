// Package memory provides an in-process implementation of storage.Storage.
// It backs `storage_backend=memory` for offline use and the service tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blackdropbox/blackdropbox/internal/cloud/storage"
	"github.com/blackdropbox/blackdropbox/internal/constants"
)

// Operation names accepted by SetError.
const (
	OpList      = "list"
	OpSignedURL = "signed_url"
	OpUpload    = "upload"
	OpRemove    = "remove"
)

type object struct {
	data     []byte
	modified time.Time
}

// Provider is a map-backed object store.
//
// Thread-safe: All operations are safe for concurrent use.
type Provider struct {
	mu       sync.Mutex
	objects  map[string]object
	errs     map[string]error
	pageSize int
	now      func() time.Time
}

// NewProvider returns an empty store.
func NewProvider() *Provider {
	return &Provider{
		objects: make(map[string]object),
		errs:    make(map[string]error),
		now:     time.Now,
	}
}

// SetPageSize limits each listing page to n objects. 0 means unlimited.
func (p *Provider) SetPageSize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageSize = n
}

// SetError makes every subsequent call of op fail with err. A nil err clears it.
func (p *Provider) SetError(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.errs, op)
		return
	}
	p.errs[op] = err
}

// SetClock overrides the time source used for LastModified.
func (p *Provider) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// Put stores data directly under key in the tier, bypassing Upload.
func (p *Provider) Put(tier storage.AccessTier, key string, data []byte, modified time.Time) error {
	objectKey, err := storage.ObjectKey(tier, key)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[objectKey] = object{data: append([]byte(nil), data...), modified: modified}
	return nil
}

// Get returns the bytes stored under key.
func (p *Provider) Get(tier storage.AccessTier, key string) ([]byte, error) {
	objectKey, err := storage.ObjectKey(tier, key)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, objectKey)
	}
	return append([]byte(nil), obj.data...), nil
}

// Len returns the number of stored objects across all tiers.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

func (p *Provider) injected(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs[op]
}

// List returns stored objects in key order.
func (p *Provider) List(ctx context.Context, prefix string, opts storage.ListOptions) ([]storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.injected(OpList); err != nil {
		return nil, err
	}
	tierPrefix, err := opts.AccessTier.Prefix()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]string, 0, len(p.objects))
	for k := range p.objects {
		if strings.HasPrefix(k, tierPrefix+prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if !opts.All && p.pageSize > 0 && len(keys) > p.pageSize {
		keys = keys[:p.pageSize]
	}

	objects := make([]storage.Object, 0, len(keys))
	for _, k := range keys {
		key, _ := storage.UserKey(opts.AccessTier, k)
		obj := p.objects[k]
		objects = append(objects, storage.Object{
			Key:          key,
			Size:         int64(len(obj.data)),
			LastModified: obj.modified,
		})
	}
	return objects, nil
}

// SignedURL returns a memory:// URL. It is not fetchable over HTTP.
func (p *Provider) SignedURL(ctx context.Context, key string, opts storage.URLOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := p.injected(OpSignedURL); err != nil {
		return "", err
	}
	objectKey, err := storage.ObjectKey(opts.AccessTier, key)
	if err != nil {
		return "", err
	}

	expires := opts.Expires
	if expires <= 0 {
		expires = constants.SignedURLExpiry
	}

	p.mu.Lock()
	_, ok := p.objects[objectKey]
	now := p.now()
	p.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, objectKey)
	}

	q := url.Values{}
	q.Set("expires", now.Add(expires).UTC().Format(time.RFC3339))
	if opts.VersionID != "" {
		q.Set("versionId", opts.VersionID)
	}
	u := url.URL{Scheme: "memory", Host: "local", Path: "/" + objectKey, RawQuery: q.Encode()}
	return u.String(), nil
}

// Upload reads body fully and stores it under key.
func (p *Provider) Upload(ctx context.Context, key string, body io.Reader, opts storage.UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objectKey, err := storage.ObjectKey(opts.AccessTier, key)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, storage.NewProgressReader(body, opts.Size, opts.OnProgress)); err != nil {
		return fmt.Errorf("failed to read upload body: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.injected(OpUpload); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[objectKey] = object{data: buf.Bytes(), modified: p.now()}
	return nil
}

// Remove deletes the object under key.
func (p *Provider) Remove(ctx context.Context, key string, opts storage.RemoveOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.injected(OpRemove); err != nil {
		return err
	}
	objectKey, err := storage.ObjectKey(opts.AccessTier, key)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.objects[objectKey]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, objectKey)
	}
	delete(p.objects, objectKey)
	return nil
}

// Compile-time interface verification
var _ storage.Storage = (*Provider)(nil)
