package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/blackdropbox/blackdropbox/internal/constants"
	"github.com/blackdropbox/blackdropbox/internal/logging"
	"github.com/blackdropbox/blackdropbox/internal/models"
)

// VersionLister is the version API collaborator.
type VersionLister interface {
	ListVersions(ctx context.Context, key string) ([]models.VersionEntry, error)
	VersionDownloadURL(ctx context.Context, key, versionID string) (string, error)
}

// VersionRetriever looks up the stored versions of a file. Without a
// configured lister every lookup yields the single current version.
type VersionRetriever struct {
	lister VersionLister
	logger *logging.Logger
	now    func() time.Time
}

// NewVersionRetriever creates a retriever. A nil lister means the version
// API is not configured.
func NewVersionRetriever(lister VersionLister, logger *logging.Logger) *VersionRetriever {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &VersionRetriever{
		lister: lister,
		logger: logger.Component("version-retriever"),
		now:    time.Now,
	}
}

// CanDownloadVersion reports whether historical versions can be downloaded.
func (r *VersionRetriever) CanDownloadVersion() bool {
	return r.lister != nil
}

// FetchVersions returns the history of entry, newest first. Failures of
// the version API fall back to the current version; only cancellation of
// ctx is returned as an error.
func (r *VersionRetriever) FetchVersions(ctx context.Context, entry models.FileEntry) (models.VersionHistory, error) {
	if err := ctx.Err(); err != nil {
		return models.VersionHistory{}, err
	}
	if r.lister == nil {
		return r.fallback(entry), nil
	}

	versions, err := r.lister.ListVersions(ctx, entry.Key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
			if ctxErr == nil {
				ctxErr = err
			}
			return models.VersionHistory{}, ctxErr
		}
		r.logger.Warn().Err(err).Str("file", entry.Key).Msg("Version lookup failed, showing current version only")
		return r.fallback(entry), nil
	}

	sorted := make([]models.VersionEntry, len(versions))
	copy(sorted, versions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastModified.After(sorted[j].LastModified)
	})
	return models.VersionHistory{Key: entry.Key, Versions: sorted}, nil
}

// DownloadVersionURL resolves a download URL for one version of key.
func (r *VersionRetriever) DownloadVersionURL(ctx context.Context, key, versionID string) (string, error) {
	if r.lister == nil {
		return "", ErrVersionDownloadDisabled
	}
	u, err := r.lister.VersionDownloadURL(ctx, key, versionID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve version %s of %s: %w", versionID, key, err)
	}
	return u, nil
}

func (r *VersionRetriever) fallback(entry models.FileEntry) models.VersionHistory {
	modified := entry.LastModified
	if modified.IsZero() {
		modified = r.now()
	}
	return models.VersionHistory{
		Key: entry.Key,
		Versions: []models.VersionEntry{{
			VersionID:    constants.CurrentVersionID,
			LastModified: modified,
			Size:         entry.Size,
			IsLatest:     true,
		}},
		Fallback: true,
	}
}

// VersionNumber is the display number of the version at index in a
// newest-first list of total versions.
func VersionNumber(total, index int) int {
	return total - index
}

// ShortVersionID truncates a version id for display.
func ShortVersionID(id string) string {
	if len(id) <= constants.VersionIDDisplayLength {
		return id
	}
	return id[:constants.VersionIDDisplayLength] + "..."
}
