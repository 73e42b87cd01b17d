package config

import (
	"os"
	"path/filepath"
)

// StatecraftPath returns the root directory for statecraft data.
// It uses $STATECRAFT_PATH if set, otherwise defaults to ~/.statecraft.
func StatecraftPath() string {
	if v := os.Getenv("STATECRAFT_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".statecraft")
	}
	return filepath.Join(home, ".statecraft")
}

// ConfigPath returns the path to the statecraft config file.
func ConfigPath() string {
	return filepath.Join(StatecraftPath(), "config.jsonc")
}

// DotenvPath returns the path to the statecraft .env file.
func DotenvPath() string {
	return filepath.Join(StatecraftPath(), ".env")
}

// PluginsPath returns the directory WASM action plugins are loaded from.
func PluginsPath() string {
	return filepath.Join(StatecraftPath(), "plugins")
}
