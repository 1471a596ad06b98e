// Package filter provides catalog search and name filtering.
// Shared by the file catalog, the CLI list commands and the drop folder.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/blackdropbox/blackdropbox/internal/models"
)

// Config holds filter configuration.
type Config struct {
	// Query is a case-insensitive substring matched against the name.
	// Empty matches everything.
	Query string

	// Include patterns (glob-style). Empty means include all.
	// Example: []string{"*.pdf", "*.png"}
	Include []string

	// Exclude patterns (glob-style). Takes precedence over Include.
	// Example: []string{"*.tmp", ".*"}
	Exclude []string

	// Types restricts entries to the given categories. Empty means all.
	Types []models.FileType
}

// Search returns the entries whose name contains query, ignoring case.
// The input order is preserved and the input slice is not modified.
func Search(files []models.FileEntry, query string) []models.FileEntry {
	return Apply(files, Config{Query: query})
}

// Apply filters entries by the configuration.
func Apply(files []models.FileEntry, config Config) []models.FileEntry {
	filtered := make([]models.FileEntry, 0, len(files))
	for _, f := range files {
		if !matchesType(f.Type, config.Types) {
			continue
		}
		if MatchName(f.Name(), config) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// MatchName checks if a name passes the query and glob patterns.
func MatchName(name string, config Config) bool {
	base := filepath.Base(name)

	// 1. Exclude patterns first (highest priority)
	for _, pattern := range config.Exclude {
		if globMatch(pattern, name) || globMatch(pattern, base) {
			return false
		}
	}

	// 2. Include patterns
	if len(config.Include) > 0 {
		included := false
		for _, pattern := range config.Include {
			if globMatch(pattern, name) || globMatch(pattern, base) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	// 3. Substring query
	if config.Query != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(config.Query)) {
		return false
	}

	return true
}

func globMatch(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}

func matchesType(t models.FileType, types []models.FileType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

// ParsePatternList parses a comma-separated list of patterns into a slice.
// Example: "*.dat,*.txt" -> []string{"*.dat", "*.txt"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
