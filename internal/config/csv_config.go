package config

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blackdropbox/blackdropbox/internal/constants"
)

// Storage backends
const (
	BackendS3     = "s3"
	BackendAzure  = "azure"
	BackendMemory = "memory"
)

// Output formats
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// Config represents the client configuration
type Config struct {
	// Storage collaborator
	StorageBackend string // "s3", "azure", "memory"
	AccessTier     string // only "guest" is served

	S3Bucket          string
	S3Region          string
	S3Endpoint        string // optional, S3-compatible endpoints
	S3PathStyle       bool
	S3AccessKeyID     string // environment only
	S3SecretAccessKey string // environment only
	S3SessionToken    string // environment only

	AzureAccount    string
	AzureContainer  string
	AzureServiceURL string // optional, defaults to https://<account>.blob.core.windows.net/
	AzureAccountKey string // environment only

	// Identity collaborator
	CognitoRegion       string
	CognitoUserPoolID   string
	CognitoClientID     string
	CognitoClientSecret string // environment only

	// Version API collaborator (empty = degraded mode)
	APIEndpoint string

	// Uploads
	MaxConcurrentUploads int    // 0 = unlimited
	DropFolder           string // default directory for `watch`

	// Proxy settings
	ProxyMode     string // "no-proxy", "ntlm", "basic", "system"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // environment only
	NoProxy       string // Comma-separated list of hosts to bypass proxy

	// Output
	OutputFormat string // "table", "json", "yaml"
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		StorageBackend:       BackendS3,
		AccessTier:           constants.DefaultAccessTier,
		S3Region:             "us-east-1",
		CognitoRegion:        "us-east-1",
		MaxConcurrentUploads: constants.DefaultMaxConcurrentUploads,
		ProxyMode:            "no-proxy",
		OutputFormat:         OutputTable,
	}
}

// LoadConfigCSV loads configuration from a CSV file
// CSV format: key,value pairs
func LoadConfigCSV(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // Return defaults if config doesn't exist
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read config CSV: %w", err)
	}

	for i, record := range records {
		if i == 0 {
			// Skip header row if it looks like a header
			if len(record) >= 2 && strings.ToLower(record[0]) == "key" {
				continue
			}
		}

		if len(record) < 2 {
			continue
		}

		key := strings.TrimSpace(strings.ToLower(record[0]))
		value := strings.TrimSpace(record[1])

		switch key {
		case "storage_backend":
			cfg.StorageBackend = strings.ToLower(value)
		case "access_tier":
			cfg.AccessTier = strings.ToLower(value)
		case "s3_bucket":
			cfg.S3Bucket = value
		case "s3_region":
			cfg.S3Region = value
		case "s3_endpoint":
			cfg.S3Endpoint = value
		case "s3_path_style":
			cfg.S3PathStyle = parseBool(value)
		case "azure_account":
			cfg.AzureAccount = value
		case "azure_container":
			cfg.AzureContainer = value
		case "azure_service_url":
			cfg.AzureServiceURL = value
		case "cognito_region":
			cfg.CognitoRegion = value
		case "cognito_user_pool_id":
			cfg.CognitoUserPoolID = value
		case "cognito_client_id":
			cfg.CognitoClientID = value
		case "api_endpoint":
			cfg.APIEndpoint = value
		case "max_concurrent_uploads":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.MaxConcurrentUploads = v
			}
		case "drop_folder":
			cfg.DropFolder = value
		case "proxy_mode":
			cfg.ProxyMode = value
		case "proxy_host":
			cfg.ProxyHost = value
		case "proxy_port":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.ProxyPort = v
			}
		case "proxy_user":
			cfg.ProxyUser = value
		case "no_proxy":
			cfg.NoProxy = value
		case "output":
			cfg.OutputFormat = strings.ToLower(value)
		case "proxy_password", "s3_secret_access_key", "s3_access_key_id", "azure_account_key", "cognito_client_secret":
			// SECURITY: secrets are never read from config files
			if value != "" {
				log.Printf("[WARN] %s in config file is ignored for security - set %s%s instead", key, constants.EnvPrefix, strings.ToUpper(key))
			}
		}
	}

	return cfg, nil
}

// SaveConfigCSV saves configuration to a CSV file
// CSV format: key,value pairs
func SaveConfigCSV(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"key", "value"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// SECURITY: secrets are intentionally NOT saved to config files
	for _, record := range cfg.records() {
		// Only write non-empty values to keep file clean
		if record[1] != "" && record[1] != "false" {
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush config file: %w", err)
	}
	return nil
}

// records lists the persistable key,value pairs in file order.
func (c *Config) records() [][]string {
	return [][]string{
		{"storage_backend", c.StorageBackend},
		{"access_tier", c.AccessTier},
		{"s3_bucket", c.S3Bucket},
		{"s3_region", c.S3Region},
		{"s3_endpoint", c.S3Endpoint},
		{"s3_path_style", strconv.FormatBool(c.S3PathStyle)},
		{"azure_account", c.AzureAccount},
		{"azure_container", c.AzureContainer},
		{"azure_service_url", c.AzureServiceURL},
		{"cognito_region", c.CognitoRegion},
		{"cognito_user_pool_id", c.CognitoUserPoolID},
		{"cognito_client_id", c.CognitoClientID},
		{"api_endpoint", c.APIEndpoint},
		{"max_concurrent_uploads", strconv.Itoa(c.MaxConcurrentUploads)},
		{"drop_folder", c.DropFolder},
		{"proxy_mode", c.ProxyMode},
		{"proxy_host", c.ProxyHost},
		{"proxy_port", strconv.Itoa(c.ProxyPort)},
		{"proxy_user", c.ProxyUser},
		{"no_proxy", c.NoProxy},
		{"output", c.OutputFormat},
	}
}

// Entry is one key/value line of the effective configuration.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Entries returns the effective configuration with secrets masked.
func (c *Config) Entries() []Entry {
	var out []Entry
	for _, r := range c.records() {
		out = append(out, Entry{Key: r[0], Value: r[1]})
	}
	secrets := [][2]string{
		{"s3_access_key_id", c.S3AccessKeyID},
		{"s3_secret_access_key", c.S3SecretAccessKey},
		{"azure_account_key", c.AzureAccountKey},
		{"cognito_client_secret", c.CognitoClientSecret},
		{"proxy_password", c.ProxyPassword},
	}
	for _, s := range secrets {
		out = append(out, Entry{Key: s[0], Value: mask(s[1])})
	}
	return out
}

// MergeWithFlags applies command-line overrides (highest priority).
func (c *Config) MergeWithFlags(apiEndpoint, backend, output string) {
	if apiEndpoint != "" {
		c.APIEndpoint = apiEndpoint
	}
	if backend != "" {
		c.StorageBackend = strings.ToLower(backend)
	}
	if output != "" {
		c.OutputFormat = strings.ToLower(output)
	}

	// Ensure HTTPS scheme
	if c.APIEndpoint != "" && !strings.HasPrefix(c.APIEndpoint, "http") {
		c.APIEndpoint = "https://" + c.APIEndpoint
	}
	c.APIEndpoint = strings.TrimRight(c.APIEndpoint, "/")
}

// VersionAPIConfigured reports whether the version API endpoint is set.
func (c *Config) VersionAPIConfigured() bool {
	return c.APIEndpoint != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3_bucket is required for the s3 backend")
		}
		if c.S3Region == "" {
			return fmt.Errorf("s3_region is required for the s3 backend")
		}
	case BackendAzure:
		if c.AzureAccount == "" || c.AzureContainer == "" {
			return fmt.Errorf("azure_account and azure_container are required for the azure backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unsupported storage_backend %q (want s3, azure or memory)", c.StorageBackend)
	}

	if c.AccessTier != constants.DefaultAccessTier {
		return fmt.Errorf("unsupported access_tier %q (only %q is served)", c.AccessTier, constants.DefaultAccessTier)
	}

	switch c.ProxyMode {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return fmt.Errorf("unsupported proxy_mode %q", c.ProxyMode)
	}
	if (c.ProxyMode == "basic" || c.ProxyMode == "ntlm") && c.ProxyHost == "" {
		return fmt.Errorf("proxy_host is required for proxy_mode %s", c.ProxyMode)
	}

	if c.MaxConcurrentUploads < 0 || c.MaxConcurrentUploads > constants.MaxMaxConcurrentUploads {
		return fmt.Errorf("max_concurrent_uploads must be between 0 and %d", constants.MaxMaxConcurrentUploads)
	}

	switch c.OutputFormat {
	case OutputTable, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("unsupported output format %q (want table, json or yaml)", c.OutputFormat)
	}
	return nil
}

// ValidateIdentity checks the identity collaborator settings.
func (c *Config) ValidateIdentity() error {
	if c.CognitoClientID == "" {
		return fmt.Errorf("cognito_client_id is required (config file or %sCOGNITO_CLIENT_ID)", constants.EnvPrefix)
	}
	if c.CognitoRegion == "" {
		return fmt.Errorf("cognito_region is required")
	}
	return nil
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true" || value == "1"
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
