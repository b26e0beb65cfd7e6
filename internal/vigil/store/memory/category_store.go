package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

type CategoryStore struct {
	mu    sync.Mutex
	m     map[string]types.Category
	saves int
}

func NewCategoryStore() *CategoryStore {
	return &CategoryStore{}
}

func (s *CategoryStore) LoadCategories(_ context.Context) (map[string]types.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.m), nil
}

func (s *CategoryStore) SaveCategories(_ context.Context, m map[string]types.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = maps.Clone(m)
	s.saves++
	return nil
}

// Saves reports how many times the mapping was flushed. Test-only helper.
func (s *CategoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
