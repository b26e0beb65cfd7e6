package file

import (
	"context"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/store"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

// Files written by the firmware bridge use "nome" and "bateria"; both are
// still read, and saves always use the current keys.
type apDoc struct {
	ID    string     `json:"id"`
	Name  string     `json:"name,omitempty"`
	Nome  string     `json:"nome,omitempty"`
	Coord [2]float64 `json:"coord"` // [lat, lon]
	BSSID string     `json:"bssid,omitempty"`
}

type deviceDoc struct {
	ClientID string  `json:"client_id"`
	AP       *apDoc  `json:"ap"`
	LastSeen *string `json:"last_seen"`
	Battery  *int    `json:"battery"`
	Bateria  *int    `json:"bateria,omitempty"`
}

// PresenceStore keeps the snapshot in a single JSON array document.
type PresenceStore struct {
	path string
}

func NewPresenceStore(path string) *PresenceStore {
	return &PresenceStore{path: path}
}

func (s *PresenceStore) LoadDevices(_ context.Context) ([]types.DeviceRecord, error) {
	var docs []deviceDoc
	found, err := readJSON(s.path, &docs)
	if err != nil || !found {
		return nil, err
	}

	recs := make([]types.DeviceRecord, 0, len(docs))
	for i, d := range docs {
		if d.ClientID == "" {
			return nil, fmt.Errorf("%w: %s: entry %d has no client_id", store.ErrCorrupt, s.path, i)
		}
		rec := types.DeviceRecord{DeviceID: d.ClientID, BatteryPercent: d.Battery}
		if rec.BatteryPercent == nil {
			rec.BatteryPercent = d.Bateria
		}
		if d.AP != nil {
			name := d.AP.Name
			if name == "" {
				name = d.AP.Nome
			}
			rec.AccessPoint = &types.AccessPoint{
				ID:         d.AP.ID,
				Name:       name,
				Coord:      types.Coordinate{Lat: d.AP.Coord[0], Lon: d.AP.Coord[1]},
				HardwareID: d.AP.BSSID,
			}
		}
		if d.LastSeen != nil {
			t, err := time.ParseInLocation(LastSeenLayout, *d.LastSeen, time.Local)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: entry %d last_seen: %v", store.ErrCorrupt, s.path, i, err)
			}
			rec.LastSeen = &t
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *PresenceStore) SaveDevices(_ context.Context, recs []types.DeviceRecord) error {
	docs := make([]deviceDoc, 0, len(recs))
	for _, r := range recs {
		d := deviceDoc{ClientID: r.DeviceID, Battery: r.BatteryPercent}
		if ap := r.AccessPoint; ap != nil {
			d.AP = &apDoc{
				ID:    ap.ID,
				Name:  ap.Name,
				Coord: [2]float64{ap.Coord.Lat, ap.Coord.Lon},
				BSSID: ap.HardwareID,
			}
		}
		if r.LastSeen != nil {
			ts := r.LastSeen.In(time.Local).Format(LastSeenLayout)
			d.LastSeen = &ts
		}
		docs = append(docs, d)
	}
	return writeJSON(s.path, docs)
}
