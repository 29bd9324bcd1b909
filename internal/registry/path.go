package registry

import (
	"os"
	"path/filepath"
)

// FileName is the registry document's file name inside the per-user
// config directory.
const FileName = "eim_idf.json"

// EnvRegistryPath overrides the default registry location, mainly for
// tests and sandboxed environments.
const EnvRegistryPath = "EIM_REGISTRY_PATH"

// DefaultPath returns the per-OS registry file location: the user config
// directory from os.UserConfigDir (%AppData% on Windows, ~/Library/Application
// Support on macOS, XDG config elsewhere) under an "eim" subdirectory.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvRegistryPath); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "eim", FileName), nil
}
