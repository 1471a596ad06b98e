// Package azure provides the Azure Blob implementation of storage.Storage.
package azure

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/blackdropbox/blackdropbox/internal/cloud/storage"
	"github.com/blackdropbox/blackdropbox/internal/constants"
)

// Config holds the storage account location and shared key.
type Config struct {
	Account    string
	Container  string
	ServiceURL string // defaults to https://<account>.blob.core.windows.net/
	AccountKey string
	HTTPClient *nethttp.Client
}

// Provider implements storage.Storage on one blob container.
//
// Thread-safe: All operations are safe for concurrent use.
type Provider struct {
	client    *azblob.Client
	container string
}

// NewProvider creates an Azure provider from cfg.
// The shared key is required: signed URLs are SAS tokens derived from it.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Account == "" || cfg.Container == "" {
		return nil, fmt.Errorf("account and container are required")
	}
	if cfg.AccountKey == "" {
		return nil, fmt.Errorf("account key is required (set %sAZURE_ACCOUNT_KEY)", constants.EnvPrefix)
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.Account, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid Azure shared key: %w", err)
	}

	opts := &azblob.ClientOptions{}
	if cfg.HTTPClient != nil {
		opts.ClientOptions = azcore.ClientOptions{
			Transport: cfg.HTTPClient, // Preserve connection pool and proxy settings
		}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL(cfg), cred, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &Provider{client: client, container: cfg.Container}, nil
}

func serviceURL(cfg Config) string {
	if cfg.ServiceURL != "" {
		return strings.TrimRight(cfg.ServiceURL, "/") + "/"
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.Account)
}

// Container returns the blob container name.
func (p *Provider) Container() string {
	return p.container
}

// List returns blobs under the tier prefix joined with prefix.
func (p *Provider) List(ctx context.Context, prefix string, opts storage.ListOptions) ([]storage.Object, error) {
	tierPrefix, err := opts.AccessTier.Prefix()
	if err != nil {
		return nil, err
	}

	full := tierPrefix + prefix
	pager := p.client.NewListBlobsFlatPager(p.container, &azblob.ListBlobsFlatOptions{
		Prefix: &full,
	})

	var objects []storage.Object
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s/%s: %w", p.container, full, mapError(err))
		}
		if page.Segment != nil {
			objects = append(objects, toObjects(opts.AccessTier, page.Segment.BlobItems)...)
		}
		if !opts.All {
			break
		}
	}
	return objects, nil
}

func toObjects(tier storage.AccessTier, items []*container.BlobItem) []storage.Object {
	objects := make([]storage.Object, 0, len(items))
	for _, item := range items {
		if item == nil || item.Name == nil {
			continue
		}
		key, ok := storage.UserKey(tier, *item.Name)
		if !ok {
			continue
		}
		obj := storage.Object{Key: key}
		if props := item.Properties; props != nil {
			if props.ContentLength != nil {
				obj.Size = *props.ContentLength
			}
			if props.LastModified != nil {
				obj.LastModified = *props.LastModified
			}
		}
		objects = append(objects, obj)
	}
	return objects
}

// SignedURL returns a read-only SAS URL, optionally for one blob version.
func (p *Provider) SignedURL(ctx context.Context, key string, opts storage.URLOptions) (string, error) {
	blobName, err := storage.ObjectKey(opts.AccessTier, key)
	if err != nil {
		return "", err
	}

	expires := opts.Expires
	if expires <= 0 {
		expires = constants.SignedURLExpiry
	}

	blobClient := p.client.ServiceClient().NewContainerClient(p.container).NewBlobClient(blobName)
	if opts.VersionID != "" {
		blobClient, err = blobClient.WithVersionID(opts.VersionID)
		if err != nil {
			return "", fmt.Errorf("invalid version id %q: %w", opts.VersionID, err)
		}
	}

	u, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().UTC().Add(expires), nil)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", blobName, err)
	}
	return u, nil
}

// Upload streams body into a block blob.
func (p *Provider) Upload(ctx context.Context, key string, body io.Reader, opts storage.UploadOptions) error {
	blobName, err := storage.ObjectKey(opts.AccessTier, key)
	if err != nil {
		return err
	}

	uploadOpts := &azblob.UploadStreamOptions{}
	if opts.ContentType != "" {
		contentType := opts.ContentType
		uploadOpts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}

	reader := storage.NewProgressReader(body, opts.Size, opts.OnProgress)
	if _, err := p.client.UploadStream(ctx, p.container, blobName, reader, uploadOpts); err != nil {
		return fmt.Errorf("failed to upload %s: %w", blobName, mapError(err))
	}
	return nil
}

// Remove deletes the blob under key.
func (p *Provider) Remove(ctx context.Context, key string, opts storage.RemoveOptions) error {
	blobName, err := storage.ObjectKey(opts.AccessTier, key)
	if err != nil {
		return err
	}

	if _, err := p.client.DeleteBlob(ctx, p.container, blobName, nil); err != nil {
		return fmt.Errorf("failed to delete %s: %w", blobName, mapError(err))
	}
	return nil
}

// mapError translates missing blob and container codes to storage.ErrNotFound.
func mapError(err error) error {
	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound):
		return fmt.Errorf("%w: %s", storage.ErrNotFound, bloberror.BlobNotFound)
	case bloberror.HasCode(err, bloberror.ContainerNotFound):
		return fmt.Errorf("%w: %s", storage.ErrNotFound, bloberror.ContainerNotFound)
	}
	return err
}

// Compile-time interface verification
var _ storage.Storage = (*Provider)(nil)
