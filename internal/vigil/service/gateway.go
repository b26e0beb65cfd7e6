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
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

var (
	ErrMalformedTelemetry  = errors.New("malformed telemetry payload")
	ErrUnknownAccessPoint  = errors.New("unknown access point hardware id")
	ErrInvalidBatteryValue = errors.New("battery level must be an integer in 0..100")
	ErrGatewayStopped      = errors.New("ingest gateway stopped")
)

type Channel string

const (
	ChannelLocation Channel = "location"
	ChannelBattery  Channel = "battery"
)

func ParseChannel(s string) (Channel, bool) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelLocation:
		return ChannelLocation, true
	case ChannelBattery:
		return ChannelBattery, true
	default:
		return "", false
	}
}

// Event is one raw telemetry message as received from a transport.
// ReceivedAt is stamped by Enqueue when left zero and only feeds the queue
// latency log; lastSeen always uses the processing time.
type Event struct {
	Channel    Channel
	Payload    []byte
	ReceivedAt time.Time
}

// Reading is a parsed, validated telemetry event ready to apply.
type Reading struct {
	DeviceID    string
	AccessPoint *types.AccessPoint
	Battery     *int
}

// GatewayConfig holds the parameters for NewGateway.
type GatewayConfig struct {
	// Aliases maps raw device ids to display names. Unlisted ids pass
	// through unchanged.
	Aliases map[string]string

	// QueueSize bounds Enqueue. Defaults to 64.
	QueueSize int

	// Now stamps lastSeen. Defaults to time.Now.
	Now func() time.Time
}

// Gateway turns raw telemetry into presence updates. Transports call Enqueue
// from any goroutine; Run is the single consumer that mutates Presence.
type Gateway struct {
	registry *network.Registry
	presence *Presence
	aliases  map[string]string
	now      func() time.Time
	logger   *slog.Logger

	queue chan Event

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

func NewGateway(reg *network.Registry, presence *Presence, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	aliases := make(map[string]string, len(cfg.Aliases))
	for k, v := range cfg.Aliases {
		aliases[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return &Gateway{
		registry: reg,
		presence: presence,
		aliases:  aliases,
		now:      now,
		logger:   logger,
		queue:    make(chan Event, size),
		done:     make(chan struct{}),
	}
}

// Parse validates a payload for ch without touching any state.
func (g *Gateway) Parse(ch Channel, payload []byte) (Reading, error) {
	fields := strings.Split(string(payload), "|")
	if len(fields) != 2 {
		return Reading{}, fmt.Errorf("%w: want 2 fields, got %d", ErrMalformedTelemetry, len(fields))
	}
	id := strings.TrimSpace(fields[0])
	value := strings.TrimSpace(fields[1])
	if id == "" {
		return Reading{}, fmt.Errorf("%w: empty device id", ErrMalformedTelemetry)
	}
	if alias, ok := g.aliases[id]; ok && alias != "" {
		id = alias
	}

	switch ch {
	case ChannelLocation:
		ap, ok := g.registry.Lookup(value)
		if !ok {
			return Reading{}, fmt.Errorf("%w: %q", ErrUnknownAccessPoint, value)
		}
		return Reading{DeviceID: id, AccessPoint: &ap}, nil
	case ChannelBattery:
		level, err := strconv.Atoi(value)
		if err != nil || level < 0 || level > 100 {
			return Reading{}, fmt.Errorf("%w: %q", ErrInvalidBatteryValue, value)
		}
		return Reading{DeviceID: id, Battery: &level}, nil
	default:
		return Reading{}, fmt.Errorf("%w: unknown channel %q", ErrMalformedTelemetry, ch)
	}
}

// Process parses and applies one event. Invalid telemetry is logged and
// dropped; the return value reports whether the presence store changed.
//
// Process mutates presence directly, so it must only be called from the
// goroutine running Run (or when Run is not running at all).
func (g *Gateway) Process(ctx context.Context, ch Channel, payload []byte) bool {
	r, err := g.Parse(ch, payload)
	if err != nil {
		g.logger.Warn("telemetry dropped", "channel", ch, "payload", string(payload), "err", err)
		return false
	}
	g.presence.Upsert(ctx, r.DeviceID, Update{
		AccessPoint:    r.AccessPoint,
		BatteryPercent: r.Battery,
		SeenAt:         g.now(),
	})
	return true
}

// Enqueue hands an event to the consumer. It blocks while the queue is full.
func (g *Gateway) Enqueue(ctx context.Context, ev Event) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.stopped {
		return ErrGatewayStopped
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = g.now()
	}
	select {
	case g.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrGatewayStopped
	}
}

// Run consumes queued events in arrival order until ctx is cancelled. Events
// still queued at that point are discarded. Run returns nil on cancellation
// and must be called at most once.
func (g *Gateway) Run(ctx context.Context) error {
	defer g.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-g.queue:
			if g.Process(ctx, ev.Channel, ev.Payload) {
				g.logger.Debug("telemetry applied", "channel", ev.Channel, "queued", g.now().Sub(ev.ReceivedAt))
			}
		}
	}
}

func (g *Gateway) stop() {
	close(g.done)
	g.mu.Lock()
	g.stopped = true
	g.mu.Unlock()
}
