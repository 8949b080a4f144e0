// ABOUTME: XDG-based data and config directory resolution for flowxd.
// ABOUTME: Checks XDG_DATA_HOME / XDG_CONFIG_HOME, falls back to ~/.local/share/flowxd and ~/.config/flowxd.
package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultDataDir returns the default data directory for flowxd's persistent
// state (run store, event logs). It checks XDG_DATA_HOME first, then falls
// back to ~/.local/share/flowxd.
func defaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "flowxd"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "flowxd"), nil
}

// defaultConfigDir returns the default config directory for flowxd
// configuration. It checks XDG_CONFIG_HOME first, then falls back to
// ~/.config/flowxd.
func defaultConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "flowxd"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".config", "flowxd"), nil
}

// defaultPluginsDir returns where flowxd looks for plugin manifests when
// FLOWX_PLUGINS_DIR isn't set: a "plugins" subdirectory of the data dir,
// alongside the run store rather than the config tree, since manifests are
// installed artifacts rather than hand-edited settings.
func defaultPluginsDir() (string, error) {
	dataDir, err := defaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "plugins"), nil
}
