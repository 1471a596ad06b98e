package api

import (
	"errors"
	"fmt"
	nethttp "net/http"
)

var (
	// ErrEmptyBaseURL indicates the version API endpoint is not configured.
	ErrEmptyBaseURL = errors.New("API base URL is empty")

	// ErrMalformedResponse indicates a 2xx response whose body could not be used.
	ErrMalformedResponse = errors.New("malformed API response")
)

// APIError is a non-2xx response from the version API.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d %s", e.Path, e.StatusCode, nethttp.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the version API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == nethttp.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
