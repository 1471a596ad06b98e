package providers

import (
	"context"
	"testing"

	"github.com/blackdropbox/blackdropbox/internal/cloud/providers/azure"
	"github.com/blackdropbox/blackdropbox/internal/cloud/providers/memory"
	"github.com/blackdropbox/blackdropbox/internal/cloud/providers/s3"
	"github.com/blackdropbox/blackdropbox/internal/config"
)

func TestFactoryNew(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.StorageBackend = config.BackendMemory
	st, err := f.New(ctx, cfg)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := st.(*memory.Provider); !ok {
		t.Errorf("memory backend returned %T", st)
	}

	cfg = config.DefaultConfig()
	cfg.S3Bucket = "bdx-files"
	cfg.S3AccessKeyID = "AKIDEXAMPLE"
	cfg.S3SecretAccessKey = "secret"
	st, err = f.New(ctx, cfg)
	if err != nil {
		t.Fatalf("s3: %v", err)
	}
	if p, ok := st.(*s3.Provider); !ok || p.Bucket() != "bdx-files" {
		t.Errorf("s3 backend returned %T", st)
	}

	cfg = config.DefaultConfig()
	cfg.StorageBackend = config.BackendAzure
	cfg.AzureAccount = "bdx"
	cfg.AzureContainer = "files"
	cfg.AzureAccountKey = "c2VjcmV0" // base64("secret")
	st, err = f.New(ctx, cfg)
	if err != nil {
		t.Fatalf("azure: %v", err)
	}
	if p, ok := st.(*azure.Provider); !ok || p.Container() != "files" {
		t.Errorf("azure backend returned %T", st)
	}
}

func TestFactoryUnsupported(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StorageBackend = "ftp"
	if _, err := NewFactory(nil).New(context.Background(), cfg); err == nil {
		t.Error("expected error for unsupported backend")
	}
	if _, err := NewFactory(nil).New(context.Background(), nil); err == nil {
		t.Error("expected error for nil config")
	}
}
