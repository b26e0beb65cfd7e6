package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Vigil/internal/db"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/store"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

type CategoryStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewCategoryStore(db *sql.DB, writer *dbpkg.Writer) *CategoryStore {
	return &CategoryStore{db: db, writer: writer}
}

func (s *CategoryStore) LoadCategories(ctx context.Context) (map[string]types.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT device_id, category FROM category_overrides;`)
	if err != nil {
		return nil, fmt.Errorf("LoadCategories query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]types.Category)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("LoadCategories scan: %w", err)
		}
		c, ok := types.ParseCategory(raw)
		if !ok {
			return nil, fmt.Errorf("%w: device %q has category %q", store.ErrCorrupt, id, raw)
		}
		out[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LoadCategories rows: %w", err)
	}
	return out, nil
}

func (s *CategoryStore) SaveCategories(ctx context.Context, m map[string]types.Category) error {
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM category_overrides;`); err != nil {
			return fmt.Errorf("SaveCategories clear: %w", err)
		}
		for id, c := range m {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO category_overrides(device_id, category, updated_at_ms) VALUES (?, ?, ?);
`, id, string(c), nowMs); err != nil {
				return fmt.Errorf("SaveCategories insert %s: %w", id, err)
			}
		}
		return nil
	})
}
