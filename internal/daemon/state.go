package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const stateVersion = "1.0.0"

// SubmittedFile tracks a drop folder file handed to the upload tracker.
type SubmittedFile struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	SubmittedAt time.Time `json:"submitted_at"`
	TaskID      string    `json:"task_id,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// State remembers which drop folder files were already submitted so an
// unchanged file is not uploaded again after a restart.
type State struct {
	mu sync.RWMutex

	// Submitted files keyed by path
	Submitted map[string]*SubmittedFile `json:"submitted"`

	// Version for state file format migration
	Version string `json:"version"`

	fs       afero.Fs
	filePath string // empty keeps the state in memory only
}

// NewState creates an empty state persisted at filePath.
func NewState(fs afero.Fs, filePath string) *State {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &State{
		Submitted: make(map[string]*SubmittedFile),
		Version:   stateVersion,
		fs:        fs,
		filePath:  filePath,
	}
}

// Load reads state from disk. A missing file yields an empty state.
func (s *State) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filePath == "" {
		return nil
	}
	data, err := afero.ReadFile(s.fs, s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.Submitted = make(map[string]*SubmittedFile)
			s.Version = stateVersion
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	if s.Submitted == nil {
		s.Submitted = make(map[string]*SubmittedFile)
	}
	return nil
}

// Save writes state to disk.
func (s *State) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.filePath == "" {
		return nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmpFile := s.filePath + ".tmp"
	if err := afero.WriteFile(s.fs, tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := s.fs.Rename(tmpFile, s.filePath); err != nil {
		_ = s.fs.Remove(tmpFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// IsSubmitted reports whether path was submitted with the same size and
// modification time. Failed submissions do not count.
func (s *State) IsSubmitted(path string, size int64, modTime time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.Submitted[path]
	if !ok || f.Error != "" {
		return false
	}
	return f.Size == size && f.ModTime.Equal(modTime)
}

// MarkSubmitted records a successful submission.
func (s *State) MarkSubmitted(path string, size int64, modTime time.Time, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Submitted[path] = &SubmittedFile{
		Path:        path,
		Size:        size,
		ModTime:     modTime,
		SubmittedAt: time.Now(),
		TaskID:      taskID,
	}
}

// MarkFailed records a submission that could not be started.
func (s *State) MarkFailed(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Submitted[path] = &SubmittedFile{
		Path:        path,
		SubmittedAt: time.Now(),
		Error:       err.Error(),
	}
}

// Forget drops path, typically after it was removed from the folder.
func (s *State) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Submitted, path)
}

// SubmittedCount returns the number of successful submissions.
func (s *State) SubmittedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, f := range s.Submitted {
		if f.Error == "" {
			count++
		}
	}
	return count
}

// FailedCount returns the number of failed submissions.
func (s *State) FailedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, f := range s.Submitted {
		if f.Error != "" {
			count++
		}
	}
	return count
}
