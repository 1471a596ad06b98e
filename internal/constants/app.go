package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for the config directory, session file and user agent.
	AppName = "blackdropbox"

	// ConfigFileName - default key,value CSV config file inside the config directory
	ConfigFileName = "config.csv"

	// SessionFileName - persisted identity tokens inside the config directory
	SessionFileName = "session.json"

	// EnvPrefix - prefix for environment overrides (BLACKDROPBOX_API_ENDPOINT etc.)
	EnvPrefix = "BLACKDROPBOX_"
)

// Storage
const (
	// DefaultAccessTier - every object operation is scoped to the public tier
	DefaultAccessTier = "guest"

	// GuestKeyPrefix - object key prefix backing the guest tier
	GuestKeyPrefix = "public/"

	// SignedURLExpiry - lifetime of download URLs (3600 seconds)
	SignedURLExpiry = 3600 * time.Second

	// DefaultContentType - used when the extension has no registered MIME type
	DefaultContentType = "application/octet-stream"
)

// Upload tracker
const (
	// TaskRemovalDelay - completed uploads leave the active set after this delay (3000ms)
	TaskRemovalDelay = 3000 * time.Millisecond

	// DefaultMaxConcurrentUploads - 0 means every submitted file uploads in parallel
	DefaultMaxConcurrentUploads = 0

	// MaxMaxConcurrentUploads - upper bound accepted from config
	MaxMaxConcurrentUploads = 64
)

// Dashboard
const (
	// ToastTTL - toasts expire after this long (4000ms)
	ToastTTL = 4000 * time.Millisecond

	// VersionIDDisplayLength - version ids are shown truncated to this many characters
	VersionIDDisplayLength = 12

	// CurrentVersionID - sentinel id of the synthesized single-version history
	CurrentVersionID = "current"
)

// Version API
const (
	// VersionAPITimeout - per-request timeout for the version API
	VersionAPITimeout = 15 * time.Second

	// VersionAPIRetryMax - retries before the retriever falls back
	VersionAPIRetryMax = 2

	// VersionAPIRetryWaitMin / Max bound retryablehttp backoff
	VersionAPIRetryWaitMin = 200 * time.Millisecond
	VersionAPIRetryWaitMax = 2 * time.Second

	// VersionAPIRatePerSec / VersionAPIBurst bound client-side request rate.
	// The catalog can open many version views in quick succession.
	VersionAPIRatePerSec = 5.0
	VersionAPIBurst      = 10.0
)

// Identity
const (
	// TokenExpiryLeeway - ID tokens this close to expiry are refreshed
	TokenExpiryLeeway = 60 * time.Second
)

// Drop folder
const (
	// DropFolderDebounce - quiet period after the last write before a file is uploaded
	DropFolderDebounce = 2 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// 1000 events is generous for upload progress throughput
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// UI Updates
const (
	// ProgressUpdateInterval - interval for progress bar updates (250ms)
	ProgressUpdateInterval = 250 * time.Millisecond

	// ProgressBarWidth - width of mpb upload bars
	ProgressBarWidth = 40
)

// HTTP
const (
	// HTTPDialTimeout - TCP connect timeout
	HTTPDialTimeout = 30 * time.Second

	// HTTPTLSHandshakeTimeout - TLS handshake timeout
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPIdleConnTimeout - idle keep-alive timeout
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPResponseHeaderTimeout - time to wait for response headers
	HTTPResponseHeaderTimeout = 60 * time.Second

	// HTTPMaxIdleConnsPerHost - pooled connections per storage host
	HTTPMaxIdleConnsPerHost = 16
)
