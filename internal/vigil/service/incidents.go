package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/network"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/store"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

var (
	ErrUnknownLocation = errors.New("unknown incident location")
	ErrUnknownIncident = errors.New("unknown incident")
)

// IncidentIDLayout is the timestamp part of an incident id.
const IncidentIDLayout = "2006-01-02 15:04:05"

// Incidents is the append-only registry of reported incidents.
type Incidents struct {
	route  network.Route
	log    store.IncidentLog
	logger *slog.Logger

	mu   sync.RWMutex
	list []types.Incident
	byID map[string]int
}

func NewIncidents(route network.Route, log store.IncidentLog, logger *slog.Logger) *Incidents {
	return &Incidents{
		route:  route,
		log:    log,
		logger: logger,
		byID:   make(map[string]int),
	}
}

// Restore reloads previously reported incidents from the log.
func (r *Incidents) Restore(ctx context.Context) error {
	list, err := r.log.ListIncidents(ctx)
	if err != nil {
		return fmt.Errorf("%w: incidents: %w", ErrStoreLoad, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = r.list[:0]
	clear(r.byID)
	for _, inc := range list {
		if _, dup := r.byID[inc.ID]; dup {
			continue
		}
		r.byID[inc.ID] = len(r.list)
		r.list = append(r.list, inc)
	}
	return nil
}

// Report validates and records a new incident. The id is derived from the
// location, category and report time; a clash gets a numeric suffix.
func (r *Incidents) Report(ctx context.Context, location string, cat types.Category, now time.Time) (types.Incident, error) {
	location = strings.TrimSpace(location)
	if location != types.MovingAssetLocation {
		if _, ok := r.route.Station(location); !ok {
			return types.Incident{}, fmt.Errorf("%w: %q", ErrUnknownLocation, location)
		}
	}
	if !cat.Assignable() {
		return types.Incident{}, fmt.Errorf("%w: %q", ErrInvalidCategory, cat)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	base := location + "_" + string(cat) + "_" + now.Format(IncidentIDLayout)
	id := base
	for n := 2; ; n++ {
		if _, taken := r.byID[id]; !taken {
			break
		}
		id = base + "-" + strconv.Itoa(n)
	}

	inc := types.Incident{ID: id, Location: location, Category: cat, ReportedAt: now}
	if err := r.log.AppendIncident(ctx, inc); err != nil {
		return types.Incident{}, fmt.Errorf("%w: incident: %w", ErrPersistenceWrite, err)
	}
	r.byID[id] = len(r.list)
	r.list = append(r.list, inc)

	r.logger.Info("incident reported", "incident_id", id, "location", location, "category", cat)
	return inc, nil
}

func (r *Incidents) Get(id string) (types.Incident, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return types.Incident{}, false
	}
	return r.list[i], true
}

// List returns all incidents in the order they were reported.
func (r *Incidents) List() []types.Incident {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Incident, len(r.list))
	copy(out, r.list)
	return out
}
