package config

import (
	"fmt"
	"sync"
)

// Store holds the active configuration and swaps it atomically on reload.
// A run reads the configuration once at start and keeps using that value,
// so a reload never changes a run in progress.
type Store struct {
	path string

	mu  sync.RWMutex
	cfg *Config
}

// NewStore loads the configuration at path with environment overrides.
func NewStore(path string) (*Store, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cfg: cfg}, nil
}

// NewStoreFromConfig wraps an already loaded configuration. Reload
// re-reads path when it is set.
func NewStoreFromConfig(path string, cfg *Config) *Store {
	return &Store{path: path, cfg: cfg}
}

// Path returns the file the store reloads from.
func (s *Store) Path() string {
	return s.path
}

// Current returns the active configuration.
// It is safe for concurrent use.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Reload re-reads the configuration file. The active configuration is
// replaced only if loading and validation succeed; otherwise the previous
// one stays in place and the error is returned.
func (s *Store) Reload() error {
	if s.path == "" {
		return fmt.Errorf("failed to reload configuration: no path")
	}

	cfg, err := LoadConfigWithEnvOverrides(s.path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	return nil
}
