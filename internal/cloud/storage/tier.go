package storage

import (
	"fmt"
	"strings"

	"github.com/blackdropbox/blackdropbox/internal/constants"
)

// AccessTier is a visibility scope that determines key prefixing.
type AccessTier string

// TierGuest is the public tier every operation runs against.
const TierGuest AccessTier = constants.DefaultAccessTier

// ParseAccessTier validates a tier name. Empty selects the guest tier.
func ParseAccessTier(s string) (AccessTier, error) {
	switch AccessTier(strings.ToLower(strings.TrimSpace(s))) {
	case "", TierGuest:
		return TierGuest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTier, s)
	}
}

// Prefix returns the object key prefix backing the tier.
func (t AccessTier) Prefix() (string, error) {
	switch t {
	case "", TierGuest:
		return constants.GuestKeyPrefix, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTier, string(t))
	}
}

// ObjectKey joins the tier prefix and a user-visible key.
func ObjectKey(t AccessTier, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	prefix, err := t.Prefix()
	if err != nil {
		return "", err
	}
	return prefix + key, nil
}

// UserKey strips the tier prefix from a stored object key.
// The tier placeholder object itself maps to "".
func UserKey(t AccessTier, objectKey string) (string, bool) {
	prefix, err := t.Prefix()
	if err != nil || !strings.HasPrefix(objectKey, prefix) {
		return "", false
	}
	return strings.TrimPrefix(objectKey, prefix), true
}
