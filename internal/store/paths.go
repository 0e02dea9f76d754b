package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// GlobalPath returns the path to the per-user .neurogrid directory.
// On Unix: ~/.neurogrid
// On Windows: %USERPROFILE%\.neurogrid
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".neurogrid"), nil
}

// DefaultDBPath returns the snapshot database used when none is configured.
func DefaultDBPath() (string, error) {
	dir, err := GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "neurogrid.db"), nil
}
