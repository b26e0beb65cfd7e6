package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

// PresenceStore keeps the last saved snapshot in memory. It is intended for
// tests and for running without a data directory.
type PresenceStore struct {
	mu    sync.Mutex
	recs  []types.DeviceRecord
	saves int
}

func NewPresenceStore(initial ...types.DeviceRecord) *PresenceStore {
	return &PresenceStore{recs: cloneRecords(initial)}
}

func (s *PresenceStore) LoadDevices(_ context.Context) ([]types.DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.recs), nil
}

func (s *PresenceStore) SaveDevices(_ context.Context, recs []types.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = cloneRecords(recs)
	s.saves++
	return nil
}

// Saves reports how many snapshots have been written. Test-only helper.
func (s *PresenceStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func cloneRecords(in []types.DeviceRecord) []types.DeviceRecord {
	if in == nil {
		return nil
	}
	out := make([]types.DeviceRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
