package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/network"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/service"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/store/memory"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

const (
	hwAP1 = "7A:37:16:2B:8D:5D"
	hwAP3 = "68:D4:0C:D5:2D:9F"
	hwAP5 = "58:10:8C:96:6C:76"
)

var errDiskFull = errors.New("disk full")

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func defaultRegistry(t *testing.T) *network.Registry {
	t.Helper()
	reg, err := network.NewRegistry(network.DefaultAccessPoints())
	require.NoError(t, err)
	return reg
}

func defaultRoute(t *testing.T) network.Route {
	t.Helper()
	r, err := network.NewRoute(network.DefaultStations())
	require.NoError(t, err)
	return r
}

func apByID(t *testing.T, id string) types.AccessPoint {
	t.Helper()
	for _, ap := range network.DefaultAccessPoints() {
		if ap.ID == id {
			return ap
		}
	}
	t.Fatalf("no access point %q", id)
	return types.AccessPoint{}
}

// fixture wires the services over in-memory stores.
type fixture struct {
	presenceStore *memory.PresenceStore
	categoryStore *memory.CategoryStore
	categories    *service.Categories
	presence      *service.Presence
	gateway       *service.Gateway
	incidents     *service.Incidents
	dashboard     *service.Dashboard
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		presenceStore: memory.NewPresenceStore(),
		categoryStore: memory.NewCategoryStore(),
	}
	logger := silentLogger()
	reg := defaultRegistry(t)
	route := defaultRoute(t)

	f.categories = service.NewCategories(f.categoryStore, logger)
	f.presence = service.NewPresence(f.presenceStore, f.categories, logger)
	f.gateway = service.NewGateway(reg, f.presence, service.GatewayConfig{
		Aliases: network.DefaultAliases(),
		Now:     fixedClock(now),
	}, logger)
	f.incidents = service.NewIncidents(route, memory.NewIncidentLog(), logger)
	f.dashboard = service.NewDashboard(route, reg, f.presence, f.incidents, service.DashboardConfig{
		Now: fixedClock(now),
	}, logger)
	return f
}

// seen places deviceID at the AP with hardware id hw, seen at the fixture clock.
func (f *fixture) seen(t *testing.T, deviceID, hw string) {
	t.Helper()
	require.True(t, f.gateway.Process(context.Background(), service.ChannelLocation, []byte(deviceID+"|"+hw)))
}

func (f *fixture) categorize(t *testing.T, deviceID string, cat types.Category) {
	t.Helper()
	require.NoError(t, f.categories.Set(context.Background(), deviceID, cat))
}

// flakyPresenceStore fails the next `failures` saves, then succeeds.
type flakyPresenceStore struct {
	mu       sync.Mutex
	failures int
	saved    []types.DeviceRecord
	attempts int
}

func (s *flakyPresenceStore) LoadDevices(context.Context) ([]types.DeviceRecord, error) {
	return nil, nil
}

func (s *flakyPresenceStore) SaveDevices(_ context.Context, recs []types.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return errDiskFull
	}
	s.saved = recs
	return nil
}

func (s *flakyPresenceStore) lastSaved() []types.DeviceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

type brokenPresenceStore struct{}

func (brokenPresenceStore) LoadDevices(context.Context) ([]types.DeviceRecord, error) {
	return nil, errors.New("unexpected end of JSON input")
}

func (brokenPresenceStore) SaveDevices(context.Context, []types.DeviceRecord) error {
	return nil
}

// blockingPresenceStore parks every SaveDevices until release is closed.
type blockingPresenceStore struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingPresenceStore() *blockingPresenceStore {
	return &blockingPresenceStore{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (s *blockingPresenceStore) LoadDevices(context.Context) ([]types.DeviceRecord, error) {
	return nil, nil
}

func (s *blockingPresenceStore) SaveDevices(context.Context, []types.DeviceRecord) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return nil
}

// syncBuffer is a log sink safe for use from the Run goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
