package store

import (
	"context"
	"errors"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

// ErrCorrupt marks stored data that exists but cannot be decoded.
var ErrCorrupt = errors.New("stored data is corrupt")

// PresenceStore persists the full presence snapshot. SaveDevices replaces
// whatever was stored before; LoadDevices returns (nil, nil) when nothing
// has been stored yet.
type PresenceStore interface {
	LoadDevices(ctx context.Context) ([]types.DeviceRecord, error)
	SaveDevices(ctx context.Context, recs []types.DeviceRecord) error
}

// CategoryStore persists the deviceId -> category override mapping.
type CategoryStore interface {
	LoadCategories(ctx context.Context) (map[string]types.Category, error)
	SaveCategories(ctx context.Context, m map[string]types.Category) error
}

// IncidentLog is an append-only record of reported incidents.
type IncidentLog interface {
	AppendIncident(ctx context.Context, inc types.Incident) error
	ListIncidents(ctx context.Context) ([]types.Incident, error)
}
