package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev pre-assigns response categories to the bench agents so a fresh dev
// database can match incidents without manual categorisation. Existing
// overrides are left alone.
func SeedDev(ctx context.Context, h *Handle, categories map[string]string) error {
	nowMs := time.Now().UTC().UnixMilli()

	return h.Writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for deviceID, cat := range categories {
			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO category_overrides(device_id, category, updated_at_ms)
VALUES (?, ?, ?);`, deviceID, cat, nowMs); err != nil {
				return fmt.Errorf("seed category %s: %w", deviceID, err)
			}
		}
		return nil
	})
}

// DevCategories is the default bench assignment used by SeedDev.
func DevCategories() map[string]string {
	return map[string]string{
		"Agente_1": "maintenance",
		"Agente_2": "maintenance",
		"Agente_3": "security",
		"Agente_4": "security",
	}
}
