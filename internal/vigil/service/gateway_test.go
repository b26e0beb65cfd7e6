package service_test

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/service"
)

// ── Parsing ─────────────────────────────────────────────────────────────────

func TestParse_Rejects(t *testing.T) {
	f := newFixture(t, t0)

	cases := []struct {
		name    string
		channel service.Channel
		payload string
		want    error
	}{
		{"no separator", service.ChannelLocation, "Agente_1", service.ErrMalformedTelemetry},
		{"too many fields", service.ChannelLocation, "a|b|c", service.ErrMalformedTelemetry},
		{"empty id", service.ChannelLocation, " |" + hwAP1, service.ErrMalformedTelemetry},
		{"empty payload", service.ChannelBattery, "", service.ErrMalformedTelemetry},
		{"unknown channel", service.Channel("gps"), "a|b", service.ErrMalformedTelemetry},
		{"unknown bssid", service.ChannelLocation, "a|00:00:00:00:00:00", service.ErrUnknownAccessPoint},
		{"battery not a number", service.ChannelBattery, "a|full", service.ErrInvalidBatteryValue},
		{"battery fractional", service.ChannelBattery, "a|50.5", service.ErrInvalidBatteryValue},
		{"battery too high", service.ChannelBattery, "a|101", service.ErrInvalidBatteryValue},
		{"battery negative", service.ChannelBattery, "a|-1", service.ErrInvalidBatteryValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.gateway.Parse(tc.channel, []byte(tc.payload))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParse_TrimsAndResolvesAlias(t *testing.T) {
	f := newFixture(t, t0)

	r, err := f.gateway.Parse(service.ChannelLocation, []byte(" ESP32C6_3 | 68:d4:0c:d5:2d:9f \n"))
	require.NoError(t, err)
	assert.Equal(t, "Agente_3", r.DeviceID)
	require.NotNil(t, r.AccessPoint)
	assert.Equal(t, "AP-3", r.AccessPoint.ID)

	r, err = f.gateway.Parse(service.ChannelBattery, []byte("sensor-9|0"))
	require.NoError(t, err)
	assert.Equal(t, "sensor-9", r.DeviceID, "unlisted ids pass through")
	require.NotNil(t, r.Battery)
	assert.Equal(t, 0, *r.Battery)
}

// ── Process ─────────────────────────────────────────────────────────────────

func TestProcess_LocationUpdatesPresence(t *testing.T) {
	f := newFixture(t, t0)

	ok := f.gateway.Process(context.Background(), service.ChannelLocation, []byte("ESP32C6_1|"+hwAP5))
	require.True(t, ok)

	rec, found := f.presence.Get("Agente_1")
	require.True(t, found)
	assert.Equal(t, "AP-5", rec.AccessPoint.ID)
	assert.True(t, rec.LastSeen.Equal(t0))
	assert.Equal(t, 1, f.presenceStore.Saves())
}

func TestProcess_SecondLocationUpdatesInPlace(t *testing.T) {
	f := newFixture(t, t0)
	f.seen(t, "Agente_1", hwAP1)
	f.seen(t, "Agente_1", hwAP3)

	assert.Equal(t, 1, f.presence.Len())
	rec, _ := f.presence.Get("Agente_1")
	assert.Equal(t, "AP-3", rec.AccessPoint.ID)
}

func TestProcess_BatteryOnlyCreatesRecordWithoutAccessPoint(t *testing.T) {
	f := newFixture(t, t0)

	require.True(t, f.gateway.Process(context.Background(), service.ChannelBattery, []byte("Agente_4|77")))

	rec, found := f.presence.Get("Agente_4")
	require.True(t, found)
	assert.Nil(t, rec.AccessPoint)
	require.NotNil(t, rec.BatteryPercent)
	assert.Equal(t, 77, *rec.BatteryPercent)
}

func TestProcess_InvalidTelemetryLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t, t0)
	f.seen(t, "Agente_1", hwAP1)
	before := f.presence.Snapshot()
	saves := f.presenceStore.Saves()

	assert.False(t, f.gateway.Process(context.Background(), service.ChannelLocation, []byte("Agente_1|FF:FF:FF:FF:FF:FF")))
	assert.False(t, f.gateway.Process(context.Background(), service.ChannelBattery, []byte("Agente_1|200")))
	assert.False(t, f.gateway.Process(context.Background(), service.ChannelLocation, []byte("garbage")))

	assert.Equal(t, before, f.presence.Snapshot())
	assert.Equal(t, saves, f.presenceStore.Saves())
}

// ── Queue ───────────────────────────────────────────────────────────────────

func TestRun_AppliesEventsInArrivalOrder(t *testing.T) {
	f := newFixture(t, t0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- f.gateway.Run(ctx) }()

	events := []service.Event{
		{Channel: service.ChannelLocation, Payload: []byte("Agente_2|" + hwAP1)},
		{Channel: service.ChannelLocation, Payload: []byte("Agente_1|" + hwAP1)},
		{Channel: service.ChannelLocation, Payload: []byte("Agente_2|" + hwAP3)},
	}
	for _, ev := range events {
		require.NoError(t, f.gateway.Enqueue(ctx, ev))
	}

	require.Eventually(t, func() bool {
		rec, ok := f.presence.Get("Agente_2")
		return ok && rec.AccessPoint.ID == "AP-3" && f.presence.Len() == 2
	}, time.Second, 5*time.Millisecond)

	snap := f.presence.Snapshot()
	assert.Equal(t, "Agente_2", snap[0].DeviceID)
	assert.Equal(t, "Agente_1", snap[1].DeviceID)

	cancel()
	require.NoError(t, <-runErr)
	assert.ErrorIs(t, f.gateway.Enqueue(context.Background(), events[0]), service.ErrGatewayStopped)
}

func TestRun_SerializesConcurrentProducers(t *testing.T) {
	f := newFixture(t, t0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- f.gateway.Run(ctx) }()

	const producers = 8
	const rounds = 10
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		id := fmt.Sprintf("sensor-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				assert.NoError(t, f.gateway.Enqueue(ctx, service.Event{Channel: service.ChannelLocation, Payload: []byte(id + "|" + hwAP1)}))
				assert.NoError(t, f.gateway.Enqueue(ctx, service.Event{Channel: service.ChannelBattery, Payload: []byte(fmt.Sprintf("%s|%d", id, r))}))
			}
			assert.NoError(t, f.gateway.Enqueue(ctx, service.Event{Channel: service.ChannelLocation, Payload: []byte(id + "|" + hwAP3)}))
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		if f.presence.Len() != producers {
			return false
		}
		for _, rec := range f.presence.Snapshot() {
			if rec.AccessPoint == nil || rec.AccessPoint.ID != "AP-3" {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	for _, rec := range f.presence.Snapshot() {
		require.NotNil(t, rec.BatteryPercent, rec.DeviceID)
		assert.Equal(t, rounds-1, *rec.BatteryPercent, rec.DeviceID)
	}

	cancel()
	require.NoError(t, <-runErr)

	saved, err := f.presenceStore.LoadDevices(context.Background())
	require.NoError(t, err)
	assert.Len(t, saved, producers, "the last flush holds every device")
}

func TestRun_LogsQueueLatency(t *testing.T) {
	f := newFixture(t, t0)
	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	gw := service.NewGateway(defaultRegistry(t), f.presence, service.GatewayConfig{Now: fixedClock(t0)}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- gw.Run(ctx) }()

	require.NoError(t, gw.Enqueue(ctx, service.Event{
		Channel:    service.ChannelLocation,
		Payload:    []byte("Agente_1|" + hwAP1),
		ReceivedAt: t0.Add(-2 * time.Second),
	}))

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "telemetry applied")
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, logs.String(), "queued=2s")

	rec, ok := f.presence.Get("Agente_1")
	require.True(t, ok)
	assert.True(t, t0.Equal(*rec.LastSeen), "lastSeen is the processing time, not the receive time")

	cancel()
	require.NoError(t, <-runErr)
}

func TestEnqueue_FullQueueHonoursContext(t *testing.T) {
	f := newFixture(t, t0)
	gw := service.NewGateway(defaultRegistry(t), f.presence, service.GatewayConfig{QueueSize: 1}, silentLogger())

	ev := service.Event{Channel: service.ChannelBattery, Payload: []byte("a|1")}
	require.NoError(t, gw.Enqueue(context.Background(), ev))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, gw.Enqueue(ctx, ev), context.DeadlineExceeded)
}

func TestParseChannel(t *testing.T) {
	ch, ok := service.ParseChannel("Location")
	assert.True(t, ok)
	assert.Equal(t, service.ChannelLocation, ch)

	_, ok = service.ParseChannel("gps")
	assert.False(t, ok)
}
