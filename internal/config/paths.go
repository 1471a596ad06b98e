// Package config provides configuration management for the BlackDropbox client.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blackdropbox/blackdropbox/internal/constants"
)

// ConfigDirectory returns the platform-appropriate config directory.
//   - Windows: %AppData%\blackdropbox
//   - macOS: ~/Library/Application Support/blackdropbox
//   - Unix: $XDG_CONFIG_HOME/blackdropbox or ~/.config/blackdropbox
func ConfigDirectory() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), constants.AppName)
		}
		return filepath.Join(homeDir, ".config", constants.AppName)
	}
	return filepath.Join(configDir, constants.AppName)
}

// GetDefaultConfigPath returns the default config file path.
func GetDefaultConfigPath() string {
	return filepath.Join(ConfigDirectory(), constants.ConfigFileName)
}

// GetDefaultSessionPath returns where identity tokens are persisted.
func GetDefaultSessionPath() string {
	return filepath.Join(ConfigDirectory(), constants.SessionFileName)
}

// GetDefaultDotEnvPaths returns the .env files consulted, in priority order:
// the working directory first, then the config directory.
func GetDefaultDotEnvPaths() []string {
	return []string{".env", filepath.Join(ConfigDirectory(), ".env")}
}

// LogDirectory returns the directory for log files.
func LogDirectory() string {
	return filepath.Join(ConfigDirectory(), "logs")
}

// EnsureConfigDir creates the config directory if it doesn't exist.
// Uses 0700 permissions since it holds session tokens.
func EnsureConfigDir() error {
	dir := ConfigDirectory()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}
