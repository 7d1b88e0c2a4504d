package config

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

// SettingsFile is the name of the persisted settings file inside the data dir.
const SettingsFile = "settings.toml"

// Store provides thread-safe settings persistence backed by a TOML file.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	path     string
}

// NewStore creates a Store that persists settings to dataDir/settings.toml.
// Keys present in an existing file are laid over base; a missing or invalid
// file leaves base in effect.
func NewStore(dataDir string, base Settings) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	s := &Store{
		path:     filepath.Join(dataDir, SettingsFile),
		settings: base,
	}
	s.load()
	return s, nil
}

// NewMemoryStore creates a Store that keeps settings in memory only.
func NewMemoryStore(base Settings) *Store {
	return &Store{settings: base}
}

// Path returns the backing file, or "" for a memory store.
func (s *Store) Path() string { return s.path }

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update validates and replaces the settings and persists them to disk.
func (s *Store) Update(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return s.save()
}

func (s *Store) load() {
	if _, err := os.Stat(s.path); err != nil {
		return // file missing is OK, use base
	}
	settings, err := LoadFile(s.path, s.settings)
	if err != nil {
		log.Warn().Str("path", s.path).Err(err).Msg("invalid settings file, using defaults")
		return
	}
	s.settings = settings
}

func (s *Store) save() error {
	if s.path == "" {
		return nil // memory-only mode
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s.settings); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
