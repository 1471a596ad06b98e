// Package providers contains the cloud storage provider implementations
// and the factory that selects one from configuration.
package providers

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/blackdropbox/blackdropbox/internal/cloud/providers/azure"
	"github.com/blackdropbox/blackdropbox/internal/cloud/providers/memory"
	"github.com/blackdropbox/blackdropbox/internal/cloud/providers/s3"
	"github.com/blackdropbox/blackdropbox/internal/cloud/storage"
	"github.com/blackdropbox/blackdropbox/internal/config"
)

// Factory creates storage providers based on the configured backend.
type Factory struct {
	httpClient *nethttp.Client
}

// NewFactory creates a new provider factory. httpClient may be nil, in
// which case each SDK uses its default transport.
func NewFactory(httpClient *nethttp.Client) *Factory {
	return &Factory{httpClient: httpClient}
}

// New creates the storage backend named by cfg.StorageBackend.
func (f *Factory) New(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	switch cfg.StorageBackend {
	case config.BackendS3:
		return s3.NewProvider(ctx, s3.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			SessionToken:    cfg.S3SessionToken,
			HTTPClient:      f.httpClient,
		})
	case config.BackendAzure:
		return azure.NewProvider(azure.Config{
			Account:    cfg.AzureAccount,
			Container:  cfg.AzureContainer,
			ServiceURL: cfg.AzureServiceURL,
			AccountKey: cfg.AzureAccountKey,
			HTTPClient: f.httpClient,
		})
	case config.BackendMemory:
		return memory.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}
