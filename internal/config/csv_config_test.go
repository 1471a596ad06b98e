package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.csv")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigCSV(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "valid config",
			body: "key,value\nstorage_backend,S3\ns3_bucket,bdx-files\ns3_region,eu-west-1\napi_endpoint,https://api.example.com\nmax_concurrent_uploads,4\n",
			check: func(t *testing.T, cfg *Config) {
				if cfg.StorageBackend != BackendS3 {
					t.Errorf("StorageBackend = %q, want %q", cfg.StorageBackend, BackendS3)
				}
				if cfg.S3Bucket != "bdx-files" {
					t.Errorf("S3Bucket = %q, want %q", cfg.S3Bucket, "bdx-files")
				}
				if cfg.S3Region != "eu-west-1" {
					t.Errorf("S3Region = %q, want %q", cfg.S3Region, "eu-west-1")
				}
				if cfg.MaxConcurrentUploads != 4 {
					t.Errorf("MaxConcurrentUploads = %d, want 4", cfg.MaxConcurrentUploads)
				}
				if !cfg.VersionAPIConfigured() {
					t.Error("version API should be configured")
				}
			},
		},
		{
			name: "secrets in file are ignored",
			body: "s3_secret_access_key,shh\nproxy_password,hunter2\n",
			check: func(t *testing.T, cfg *Config) {
				if cfg.S3SecretAccessKey != "" {
					t.Errorf("S3SecretAccessKey = %q, want empty", cfg.S3SecretAccessKey)
				}
				if cfg.ProxyPassword != "" {
					t.Errorf("ProxyPassword = %q, want empty", cfg.ProxyPassword)
				}
			},
		},
		{
			name: "non-existent file returns defaults",
			check: func(t *testing.T, cfg *Config) {
				if cfg.AccessTier != "guest" {
					t.Errorf("AccessTier = %q, want guest", cfg.AccessTier)
				}
				if cfg.VersionAPIConfigured() {
					t.Error("version API should not be configured by default")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing.csv")
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			cfg, err := LoadConfigCSV(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadConfigCSV() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestSaveConfigCSVRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.S3Bucket = "bdx-files"
	cfg.APIEndpoint = "https://api.example.com"
	cfg.S3SecretAccessKey = "never-written"

	path := filepath.Join(t.TempDir(), "nested", "config.csv")
	if err := SaveConfigCSV(cfg, path); err != nil {
		t.Fatalf("SaveConfigCSV() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if strings.Contains(string(data), "never-written") {
		t.Error("secret was written to the config file")
	}

	loaded, err := LoadConfigCSV(path)
	if err != nil {
		t.Fatalf("LoadConfigCSV() error = %v", err)
	}
	if loaded.S3Bucket != cfg.S3Bucket || loaded.APIEndpoint != cfg.APIEndpoint {
		t.Errorf("loaded = %+v, want bucket/endpoint from %+v", loaded, cfg)
	}
}

func TestMergeWithFlags(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		apiURL   string
		backend  string
		output   string
		wantURL  string
		wantBack string
	}{
		{
			name:     "flags override config",
			config:   &Config{APIEndpoint: "https://config.example.com", StorageBackend: BackendS3},
			apiURL:   "https://flag.example.com/",
			backend:  "Azure",
			wantURL:  "https://flag.example.com",
			wantBack: BackendAzure,
		},
		{
			name:     "empty flags use config",
			config:   &Config{APIEndpoint: "https://config.example.com", StorageBackend: BackendS3},
			wantURL:  "https://config.example.com",
			wantBack: BackendS3,
		},
		{
			name:     "scheme is added",
			config:   &Config{StorageBackend: BackendMemory},
			apiURL:   "api.example.com",
			wantURL:  "https://api.example.com",
			wantBack: BackendMemory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.MergeWithFlags(tt.apiURL, tt.backend, tt.output)
			if tt.config.APIEndpoint != tt.wantURL {
				t.Errorf("APIEndpoint = %q, want %q", tt.config.APIEndpoint, tt.wantURL)
			}
			if tt.config.StorageBackend != tt.wantBack {
				t.Errorf("StorageBackend = %q, want %q", tt.config.StorageBackend, tt.wantBack)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.S3Bucket = "bdx-files"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing bucket", mutate: func(c *Config) { c.S3Bucket = "" }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.StorageBackend = "ftp" }, wantErr: true},
		{name: "memory backend needs nothing", mutate: func(c *Config) { c.StorageBackend = BackendMemory; c.S3Bucket = "" }},
		{name: "azure without container", mutate: func(c *Config) { c.StorageBackend = BackendAzure; c.AzureAccount = "acct" }, wantErr: true},
		{name: "private tier unsupported", mutate: func(c *Config) { c.AccessTier = "private" }, wantErr: true},
		{name: "ntlm without host", mutate: func(c *Config) { c.ProxyMode = "ntlm" }, wantErr: true},
		{name: "negative concurrency", mutate: func(c *Config) { c.MaxConcurrentUploads = -1 }, wantErr: true},
		{name: "bad output", mutate: func(c *Config) { c.OutputFormat = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEntriesMaskSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AzureAccountKey = "abcdefghij"

	for _, e := range cfg.Entries() {
		if e.Key == "azure_account_key" {
			if e.Value != "ab******ij" {
				t.Errorf("masked key = %q, want %q", e.Value, "ab******ij")
			}
			return
		}
	}
	t.Fatal("azure_account_key missing from entries")
}
