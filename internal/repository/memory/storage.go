// Package memory is a process-local LocalStorage, used when nothing should outlive the process.
package memory

import (
	"context"
	"sync"
)

// Storage keeps values in a map
type Storage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStorage creates an empty storage
func NewStorage() *Storage {
	return &Storage{values: make(map[string]string)}
}

func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *Storage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *Storage) Close() error { return nil }
