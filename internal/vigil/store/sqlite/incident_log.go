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

type IncidentLog struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewIncidentLog(db *sql.DB, writer *dbpkg.Writer) *IncidentLog {
	return &IncidentLog{db: db, writer: writer}
}

func (l *IncidentLog) AppendIncident(ctx context.Context, inc types.Incident) error {
	return l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO incidents(incident_id, location, category, reported_at_ms) VALUES (?, ?, ?, ?);
`, inc.ID, inc.Location, string(inc.Category), inc.ReportedAt.UnixMilli()); err != nil {
			return fmt.Errorf("AppendIncident %s: %w", inc.ID, err)
		}
		return nil
	})
}

func (l *IncidentLog) ListIncidents(ctx context.Context) ([]types.Incident, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT incident_id, location, category, reported_at_ms
FROM incidents
ORDER BY seq;
`)
	if err != nil {
		return nil, fmt.Errorf("ListIncidents query: %w", err)
	}
	defer rows.Close()

	var out []types.Incident
	for rows.Next() {
		var (
			inc        types.Incident
			raw        string
			reportedMs int64
		)
		if err := rows.Scan(&inc.ID, &inc.Location, &raw, &reportedMs); err != nil {
			return nil, fmt.Errorf("ListIncidents scan: %w", err)
		}
		c, ok := types.ParseCategory(raw)
		if !ok {
			return nil, fmt.Errorf("%w: incident %q has category %q", store.ErrCorrupt, inc.ID, raw)
		}
		inc.Category = c
		inc.ReportedAt = time.UnixMilli(reportedMs)
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListIncidents rows: %w", err)
	}
	return out, nil
}
