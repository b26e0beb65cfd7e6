package file

import (
	"context"
	"fmt"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/store"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

// CategoryStore keeps overrides as a flat JSON object deviceId -> category.
type CategoryStore struct {
	path string
}

func NewCategoryStore(path string) *CategoryStore {
	return &CategoryStore{path: path}
}

func (s *CategoryStore) LoadCategories(_ context.Context) (map[string]types.Category, error) {
	var raw map[string]string
	found, err := readJSON(s.path, &raw)
	if err != nil || !found {
		return nil, err
	}

	out := make(map[string]types.Category, len(raw))
	for id, v := range raw {
		c, ok := types.ParseCategory(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s: device %q has category %q", store.ErrCorrupt, s.path, id, v)
		}
		out[id] = c
	}
	return out, nil
}

func (s *CategoryStore) SaveCategories(_ context.Context, m map[string]types.Category) error {
	raw := make(map[string]string, len(m))
	for id, c := range m {
		raw[id] = string(c)
	}
	return writeJSON(s.path, raw)
}
