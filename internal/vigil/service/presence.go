package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/store"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

var (
	ErrStoreLoad        = errors.New("presence store load failed")
	ErrPersistenceWrite = errors.New("persistence write failed")
)

// Update carries the fields touched by one telemetry event. Nil fields are
// left as they are.
type Update struct {
	AccessPoint    *types.AccessPoint
	BatteryPercent *int
	SeenAt         time.Time
}

// CategoryResolver supplies the category of a device at snapshot time.
type CategoryResolver interface {
	Get(deviceID string) types.Category
}

// Presence holds one record per device in first-seen order. Mutations are
// expected from a single writer (the gateway consumer); Snapshot may be
// called from anywhere and never waits on storage I/O.
type Presence struct {
	store      store.PresenceStore
	categories CategoryResolver
	logger     *slog.Logger

	mu      sync.RWMutex
	records map[string]*types.DeviceRecord
	order   []string

	// flushMu orders flushes so an older snapshot never overwrites a newer one.
	flushMu sync.Mutex
	pending bool
}

func NewPresence(st store.PresenceStore, categories CategoryResolver, logger *slog.Logger) *Presence {
	return &Presence{
		store:      st,
		categories: categories,
		logger:     logger,
		records:    make(map[string]*types.DeviceRecord),
	}
}

// Restore loads the persisted snapshot. Missing storage yields an empty
// store; unreadable storage also yields an empty store and an error
// wrapping ErrStoreLoad.
func (p *Presence) Restore(ctx context.Context) error {
	recs, err := p.store.LoadDevices(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.records = make(map[string]*types.DeviceRecord, len(recs))
	p.order = p.order[:0]
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreLoad, err)
	}
	for _, r := range recs {
		if _, dup := p.records[r.DeviceID]; dup || r.DeviceID == "" {
			continue
		}
		rec := r.Clone()
		p.records[rec.DeviceID] = &rec
		p.order = append(p.order, rec.DeviceID)
	}
	return nil
}

// Upsert applies u to the record for deviceID, creating it if needed, and
// then persists the full snapshot. A failed write is logged and retried by
// the next Upsert since every flush writes everything.
func (p *Presence) Upsert(ctx context.Context, deviceID string, u Update) types.DeviceRecord {
	if u.SeenAt.IsZero() {
		u.SeenAt = time.Now()
	}

	p.mu.Lock()
	rec, ok := p.records[deviceID]
	if !ok {
		rec = &types.DeviceRecord{DeviceID: deviceID}
		p.records[deviceID] = rec
		p.order = append(p.order, deviceID)
	}
	if u.AccessPoint != nil {
		ap := *u.AccessPoint
		rec.AccessPoint = &ap
	}
	if u.BatteryPercent != nil {
		b := *u.BatteryPercent
		rec.BatteryPercent = &b
	}
	seen := u.SeenAt
	rec.LastSeen = &seen
	out := rec.Clone()
	p.mu.Unlock()

	if err := p.Flush(ctx); err != nil {
		p.logger.Warn("presence flush failed, will retry on next update", "device_id", deviceID, "err", err)
	}

	out.Category = p.categories.Get(deviceID)
	return out
}

// Flush writes the current snapshot to the store.
func (p *Presence) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	if err := p.store.SaveDevices(ctx, p.raw()); err != nil {
		p.pending = true
		return fmt.Errorf("%w: %w", ErrPersistenceWrite, err)
	}
	if p.pending {
		p.logger.Info("presence flush recovered")
		p.pending = false
	}
	return nil
}

// Snapshot returns a deep copy of all records in first-seen order with
// categories resolved.
func (p *Presence) Snapshot() []types.DeviceRecord {
	out := p.raw()
	for i := range out {
		out[i].Category = p.categories.Get(out[i].DeviceID)
	}
	return out
}

// View is Snapshot with the status each record has at now.
func (p *Presence) View(now time.Time) []types.DeviceView {
	recs := p.Snapshot()
	out := make([]types.DeviceView, len(recs))
	for i, r := range recs {
		out[i] = types.DeviceView{DeviceRecord: r, Status: types.ClassifyStatus(r.LastSeen, now)}
	}
	return out
}

func (p *Presence) Get(deviceID string) (types.DeviceRecord, bool) {
	p.mu.RLock()
	rec, ok := p.records[deviceID]
	var out types.DeviceRecord
	if ok {
		out = rec.Clone()
	}
	p.mu.RUnlock()
	if !ok {
		return types.DeviceRecord{}, false
	}
	out.Category = p.categories.Get(deviceID)
	return out, true
}

func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// raw copies the records without category resolution; this is what gets
// persisted.
func (p *Presence) raw() []types.DeviceRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.DeviceRecord, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.records[id].Clone())
	}
	return out
}
