package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Tokens are the persisted user pool tokens.
type Tokens struct {
	Username     string    `json:"username"`
	IDToken      string    `json:"id_token"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenStore persists Tokens between runs.
type TokenStore interface {
	Load() (*Tokens, error) // ErrNoSession when nothing is stored
	Save(t *Tokens) error
	Clear() error
}

// FileStore keeps tokens in a JSON file readable only by the owner.
type FileStore struct {
	fs   afero.Fs
	path string
}

// NewFileStore creates a store at path. A nil fs selects the OS filesystem.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileStore{fs: fs, path: path}
}

// Path returns the session file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the stored tokens.
func (s *FileStore) Load() (*Tokens, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var t Tokens
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", s.path, err)
	}
	if t.IDToken == "" && t.RefreshToken == "" {
		return nil, ErrNoSession
	}
	return &t, nil
}

// Save writes tokens atomically with 0600 permissions.
func (s *FileStore) Save(t *Tokens) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear removes the session file. Missing files are not an error.
func (s *FileStore) Clear() error {
	if err := s.fs.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
