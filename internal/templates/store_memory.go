package templates

import (
	"context"
	"slices"
	"sync"
)

type MemStore struct {
	mu    sync.RWMutex
	items []Template
}

func NewMemStore(seed []Template) *MemStore {
	return &MemStore{items: slices.Clone(seed)}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) List(ctx context.Context) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items), nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Template, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true, nil
	}
	return Template{}, false, nil
}

func (s *MemStore) Create(ctx context.Context, t Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(t.ID) >= 0 {
		return ErrTemplateExists
	}
	s.items = append(s.items, t)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(t Template) bool { return t.ID == id })
	return len(s.items) != before, nil
}

func (s *MemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// indexOf must be called with mu held.
func (s *MemStore) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(t Template) bool { return t.ID == id })
}
