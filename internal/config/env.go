package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/blackdropbox/blackdropbox/internal/constants"
)

// envOverlay holds BLACKDROPBOX_* overrides. Nil pointers mean "not set".
type envOverlay struct {
	StorageBackend *string `env:"STORAGE_BACKEND"`
	AccessTier     *string `env:"ACCESS_TIER"`

	S3Bucket          *string `env:"S3_BUCKET"`
	S3Region          *string `env:"S3_REGION"`
	S3Endpoint        *string `env:"S3_ENDPOINT"`
	S3PathStyle       *bool   `env:"S3_PATH_STYLE"`
	S3AccessKeyID     *string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey *string `env:"S3_SECRET_ACCESS_KEY"`
	S3SessionToken    *string `env:"S3_SESSION_TOKEN"`

	AzureAccount    *string `env:"AZURE_ACCOUNT"`
	AzureContainer  *string `env:"AZURE_CONTAINER"`
	AzureServiceURL *string `env:"AZURE_SERVICE_URL"`
	AzureAccountKey *string `env:"AZURE_ACCOUNT_KEY"`

	CognitoRegion       *string `env:"COGNITO_REGION"`
	CognitoUserPoolID   *string `env:"COGNITO_USER_POOL_ID"`
	CognitoClientID     *string `env:"COGNITO_CLIENT_ID"`
	CognitoClientSecret *string `env:"COGNITO_CLIENT_SECRET"`

	APIEndpoint *string `env:"API_ENDPOINT"`

	MaxConcurrentUploads *int    `env:"MAX_CONCURRENT_UPLOADS"`
	DropFolder           *string `env:"DROP_FOLDER"`

	ProxyMode     *string `env:"PROXY_MODE"`
	ProxyHost     *string `env:"PROXY_HOST"`
	ProxyPort     *int    `env:"PROXY_PORT"`
	ProxyUser     *string `env:"PROXY_USER"`
	ProxyPassword *string `env:"PROXY_PASSWORD"`
	NoProxy       *string `env:"NO_PROXY"`

	OutputFormat *string `env:"OUTPUT"`
}

// LoadDotEnv loads KEY=VALUE files into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	var present []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays BLACKDROPBOX_* environment variables onto cfg.
func (c *Config) ApplyEnv() error {
	var o envOverlay
	if err := env.ParseWithOptions(&o, env.Options{Prefix: constants.EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	setString(&c.StorageBackend, o.StorageBackend)
	setString(&c.AccessTier, o.AccessTier)
	setString(&c.S3Bucket, o.S3Bucket)
	setString(&c.S3Region, o.S3Region)
	setString(&c.S3Endpoint, o.S3Endpoint)
	if o.S3PathStyle != nil {
		c.S3PathStyle = *o.S3PathStyle
	}
	setString(&c.S3AccessKeyID, o.S3AccessKeyID)
	setString(&c.S3SecretAccessKey, o.S3SecretAccessKey)
	setString(&c.S3SessionToken, o.S3SessionToken)
	setString(&c.AzureAccount, o.AzureAccount)
	setString(&c.AzureContainer, o.AzureContainer)
	setString(&c.AzureServiceURL, o.AzureServiceURL)
	setString(&c.AzureAccountKey, o.AzureAccountKey)
	setString(&c.CognitoRegion, o.CognitoRegion)
	setString(&c.CognitoUserPoolID, o.CognitoUserPoolID)
	setString(&c.CognitoClientID, o.CognitoClientID)
	setString(&c.CognitoClientSecret, o.CognitoClientSecret)
	setString(&c.APIEndpoint, o.APIEndpoint)
	if o.MaxConcurrentUploads != nil {
		c.MaxConcurrentUploads = *o.MaxConcurrentUploads
	}
	setString(&c.DropFolder, o.DropFolder)
	setString(&c.ProxyMode, o.ProxyMode)
	setString(&c.ProxyHost, o.ProxyHost)
	if o.ProxyPort != nil {
		c.ProxyPort = *o.ProxyPort
	}
	setString(&c.ProxyUser, o.ProxyUser)
	setString(&c.ProxyPassword, o.ProxyPassword)
	setString(&c.NoProxy, o.NoProxy)
	setString(&c.OutputFormat, o.OutputFormat)

	c.StorageBackend = strings.ToLower(c.StorageBackend)
	c.OutputFormat = strings.ToLower(c.OutputFormat)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// Load resolves the effective configuration:
// defaults < CSV file < .env files < BLACKDROPBOX_* environment.
// Command-line flags are applied afterwards with MergeWithFlags.
func Load(path string, dotenvPaths ...string) (*Config, error) {
	cfg, err := LoadConfigCSV(path)
	if err != nil {
		return nil, err
	}
	if err := LoadDotEnv(dotenvPaths...); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}
