// Package api is the client for the serverless version API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/blackdropbox/blackdropbox/internal/constants"
	"github.com/blackdropbox/blackdropbox/internal/logging"
	"github.com/blackdropbox/blackdropbox/internal/models"
	"github.com/blackdropbox/blackdropbox/internal/ratelimit"
	"github.com/blackdropbox/blackdropbox/internal/version"
)

// TokenSource returns a bearer token for the Authorization header.
// An empty token sends the request unauthenticated.
type TokenSource func(ctx context.Context) (string, error)

// Options configures a Client.
type Options struct {
	BaseURL     string
	HTTPClient  *nethttp.Client // base transport; proxy settings come from here
	Logger      *logging.Logger
	TokenSource TokenSource
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client calls the version API with bounded retries and a client-side
// rate limit.
type Client struct {
	httpClient  *nethttp.Client
	baseURL     string
	limiter     *ratelimit.RateLimiter
	tokenSource TokenSource
	logger      *logging.Logger
}

// NewClient creates a new API client
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", baseURL, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Component("version-api")

	retryClient := retryablehttp.NewClient()
	if opts.HTTPClient != nil {
		retryClient.HTTPClient = opts.HTTPClient
	}
	retryClient.RetryMax = constants.VersionAPIRetryMax
	retryClient.RetryWaitMin = constants.VersionAPIRetryWaitMin
	retryClient.RetryWaitMax = constants.VersionAPIRetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}

	return &Client{
		httpClient:  retryClient.StandardClient(),
		baseURL:     baseURL,
		limiter:     ratelimit.NewVersionAPILimiter(),
		tokenSource: opts.TokenSource,
		logger:      logger,
	}, nil
}

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// getJSON performs a GET request against path and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter cancelled: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.VersionAPITimeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	if c.tokenSource != nil {
		token, err := c.tokenSource(ctx)
		if err != nil {
			return fmt.Errorf("failed to get API token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("path", path).Msg("API call failed")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Path:       path,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrMalformedResponse)
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

type versionsResponse struct {
	Versions []models.VersionEntry `json:"versions"`
}

// ListVersions returns the stored versions of key as reported by
// GET {base}/files/versions?key=<key>. A body without a versions field
// yields an empty, non-nil slice.
func (c *Client) ListVersions(ctx context.Context, key string) ([]models.VersionEntry, error) {
	var resp versionsResponse
	if err := c.getJSON(ctx, "/files/versions", url.Values{"key": {key}}, &resp); err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", key, err)
	}
	if resp.Versions == nil {
		return []models.VersionEntry{}, nil
	}
	return resp.Versions, nil
}

type downloadResponse struct {
	URL string `json:"url"`
}

// VersionDownloadURL asks GET {base}/files/download for a signed URL to
// one version of key.
func (c *Client) VersionDownloadURL(ctx context.Context, key, versionID string) (string, error) {
	var resp downloadResponse
	query := url.Values{"key": {key}, "versionId": {versionID}}
	if err := c.getJSON(ctx, "/files/download", query, &resp); err != nil {
		return "", fmt.Errorf("download url for %s@%s: %w", key, versionID, err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("download url for %s@%s: %w: no url", key, versionID, ErrMalformedResponse)
	}
	return resp.URL, nil
}
