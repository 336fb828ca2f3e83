// Package file persists client state in a JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Rrens/support-chat/internal/security"
	"github.com/rs/zerolog/log"
)

// Storage keeps all keys in one JSON object on disk.
// Values are sealed when a cipher is configured.
type Storage struct {
	path   string
	cipher *security.Cipher

	mu     sync.Mutex
	values map[string]string
}

// NewStorage loads existing state from path. cipher may be nil.
func NewStorage(path string, cipher *security.Cipher) (*Storage, error) {
	s := &Storage{
		path:   path,
		cipher: cipher,
		values: make(map[string]string),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.values[key]
	if !ok {
		return "", false, nil
	}
	if s.cipher == nil {
		return stored, true, nil
	}

	value, err := s.cipher.Open(stored)
	if err != nil {
		// Unreadable under the current key; treat as absent
		log.Warn().Err(err).Str("key", key).Msg("discarding unreadable stored value")
		return "", false, nil
	}
	return value, true, nil
}

func (s *Storage) Set(_ context.Context, key, value string) error {
	stored := value
	if s.cipher != nil {
		sealed, err := s.cipher.Seal(value)
		if err != nil {
			return fmt.Errorf("failed to seal value: %w", err)
		}
		stored = sealed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = stored
	if err := s.save(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *Storage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	if !had {
		return nil
	}
	delete(s.values, key)
	if err := s.save(); err != nil {
		s.values[key] = prev
		return err
	}
	return nil
}

func (s *Storage) Close() error { return nil }

func (s *Storage) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		// Fall back to empty state for corrupted JSON
		log.Warn().Err(err).Str("path", s.path).Msg("ignoring corrupted state file")
		s.values = make(map[string]string)
	}
	return nil
}

// save writes to a temp file and renames it over the state file
func (s *Storage) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to protect state file: %w", err)
	}

	return os.Rename(tmpPath, s.path)
}
