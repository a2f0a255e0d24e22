package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Names of the files kept under the config directory.
const (
	apiKeyFile       = "api_key"
	systemPromptFile = "system_prompt"
)

// configDirEnv overrides the config directory location, mainly for tests.
const configDirEnv = "LOOM_CONFIG_DIR"

// ConfigDir returns the directory holding persisted configuration.
// Defaults to ~/.loom, overridable via LOOM_CONFIG_DIR.
func ConfigDir() string {
	if dir := os.Getenv(configDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".loom"
	}
	return filepath.Join(home, ".loom")
}

// Store persists small configuration values (API key, system prompt
// suffix) as files under the config directory. All failures are
// non-fatal: reads fall back to the empty string and writes warn on
// stderr, so a broken home directory never blocks a conversation.
type Store struct {
	dir string
}

// NewStore creates a store over the default config directory.
func NewStore() *Store {
	return &Store{dir: ConfigDir()}
}

// NewStoreAt creates a store over an explicit directory.
func NewStoreAt(dir string) *Store {
	return &Store{dir: dir}
}

// APIKey returns the persisted API key, or "" if none is stored.
func (s *Store) APIKey() string {
	return s.read(apiKeyFile)
}

// SetAPIKey persists the API key. Best-effort.
func (s *Store) SetAPIKey(key string) {
	s.write(apiKeyFile, key)
}

// SystemPromptSuffix returns the persisted system prompt suffix, or "".
func (s *Store) SystemPromptSuffix() string {
	return s.read(systemPromptFile)
}

// SetSystemPromptSuffix persists the system prompt suffix. Best-effort.
func (s *Store) SetSystemPromptSuffix(suffix string) {
	s.write(systemPromptFile, suffix)
}

func (s *Store) read(name string) string {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to read %s: %v\n", name, err)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Store) write(name, value string) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create config directory: %v\n", err)
		return
	}
	// API keys are secrets; keep everything here owner-only.
	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(value), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write %s: %v\n", name, err)
	}
}
