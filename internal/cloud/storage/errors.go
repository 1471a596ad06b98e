package storage

import (
	"errors"
	"strings"
)

// Common storage operation errors
var (
	// ErrNotFound indicates the object does not exist
	ErrNotFound = errors.New("object not found")
	// ErrEmptyKey indicates an operation was attempted without a key
	ErrEmptyKey = errors.New("object key is empty")
	// ErrUnsupportedTier indicates an access tier this client does not serve
	ErrUnsupportedTier = errors.New("unsupported access tier")
)

// IsNotFound reports whether err means the object is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNetworkError checks if an error is network-related
func IsNetworkError(err error) bool {
	return containsAny(err,
		"connection",    // connection refused, connection reset, etc.
		"timeout",       // i/o timeout, dial timeout, etc.
		"network",       // network unreachable, network error, etc.
		"eof",           // unexpected EOF
		"broken pipe",   // broken pipe
		"tls handshake", // TLS handshake errors
		"no such host",  // DNS failure
	)
}

// IsCredentialError checks if an error is authentication/authorization related
func IsCredentialError(err error) bool {
	return containsAny(err,
		"403",                  // HTTP Forbidden
		"unauthorized",         // HTTP Unauthorized
		"accessdenied",         // AWS AccessDenied
		"expiredtoken",         // AWS specific
		"invalid token",        // invalid authentication
		"authenticationfailed", // Azure shared key mismatch
	)
}

// Cause returns a short label for logging: "network", "credentials",
// "not_found" or "other".
func Cause(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNotFound(err):
		return "not_found"
	case IsCredentialError(err):
		return "credentials"
	case IsNetworkError(err):
		return "network"
	default:
		return "other"
	}
}

func containsAny(err error, indicators ...string) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, indicator := range indicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
