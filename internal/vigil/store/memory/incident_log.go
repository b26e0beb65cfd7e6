package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

// IncidentLog is an in-memory append-only incident log.
type IncidentLog struct {
	mu        sync.Mutex
	incidents []types.Incident
}

func NewIncidentLog() *IncidentLog {
	return &IncidentLog{}
}

func (l *IncidentLog) AppendIncident(_ context.Context, inc types.Incident) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.incidents = append(l.incidents, inc)
	return nil
}

func (l *IncidentLog) ListIncidents(_ context.Context) ([]types.Incident, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Incident, len(l.incidents))
	copy(out, l.incidents)
	return out, nil
}
