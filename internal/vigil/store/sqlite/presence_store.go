package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Vigil/internal/db"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

type PresenceStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewPresenceStore(db *sql.DB, writer *dbpkg.Writer) *PresenceStore {
	return &PresenceStore{db: db, writer: writer}
}

func (s *PresenceStore) LoadDevices(ctx context.Context) ([]types.DeviceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT device_id, ap_id, ap_name, ap_lat, ap_lon, ap_hardware_id, last_seen_ms, battery_pct
FROM devices
ORDER BY position;
`)
	if err != nil {
		return nil, fmt.Errorf("LoadDevices query: %w", err)
	}
	defer rows.Close()

	var recs []types.DeviceRecord
	for rows.Next() {
		var (
			deviceID     string
			apID, apName sql.NullString
			apLat, apLon sql.NullFloat64
			apHW         sql.NullString
			lastSeenMs   sql.NullInt64
			battery      sql.NullInt64
		)
		if err := rows.Scan(&deviceID, &apID, &apName, &apLat, &apLon, &apHW, &lastSeenMs, &battery); err != nil {
			return nil, fmt.Errorf("LoadDevices scan: %w", err)
		}

		rec := types.DeviceRecord{DeviceID: deviceID}
		if apID.Valid {
			rec.AccessPoint = &types.AccessPoint{
				ID:         apID.String,
				Name:       apName.String,
				Coord:      types.Coordinate{Lat: apLat.Float64, Lon: apLon.Float64},
				HardwareID: apHW.String,
			}
		}
		if lastSeenMs.Valid {
			t := time.UnixMilli(lastSeenMs.Int64)
			rec.LastSeen = &t
		}
		if battery.Valid {
			b := int(battery.Int64)
			rec.BatteryPercent = &b
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LoadDevices rows: %w", err)
	}
	return recs, nil
}

// SaveDevices replaces the stored snapshot; position keeps the
// first-seen order of the presence store.
func (s *PresenceStore) SaveDevices(ctx context.Context, recs []types.DeviceRecord) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM devices;`); err != nil {
			return fmt.Errorf("SaveDevices clear: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO devices(
  device_id, position, ap_id, ap_name, ap_lat, ap_lon, ap_hardware_id, last_seen_ms, battery_pct
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`)
		if err != nil {
			return fmt.Errorf("SaveDevices prepare: %w", err)
		}
		defer stmt.Close()

		for i, r := range recs {
			var apID, apName, apLat, apLon, apHW any
			if ap := r.AccessPoint; ap != nil {
				apID, apName, apLat, apLon, apHW = ap.ID, ap.Name, ap.Coord.Lat, ap.Coord.Lon, ap.HardwareID
			}

			var lastSeen any
			if r.LastSeen != nil {
				lastSeen = r.LastSeen.UnixMilli()
			}

			var battery any
			if r.BatteryPercent != nil {
				battery = *r.BatteryPercent
			}

			if _, err := stmt.ExecContext(ctx,
				r.DeviceID, i, apID, apName, apLat, apLon, apHW, lastSeen, battery,
			); err != nil {
				return fmt.Errorf("SaveDevices insert %s: %w", r.DeviceID, err)
			}
		}
		return nil
	})
}
