package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTickInterval is the render period of the map.
const DefaultTickInterval = 10 * time.Second

// Ticker drives Dashboard.Tick on a fixed interval. It runs an immediate
// tick on start and exits when its context is cancelled or Stop is called.
type Ticker struct {
	dash     *Dashboard
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTicker creates a ticker but does not start it. A non-positive interval
// falls back to DefaultTickInterval.
func NewTicker(dash *Dashboard, interval time.Duration, logger *slog.Logger) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{
		dash:     dash,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the loop. It is a no-op once the ticker has been started
// or stopped.
func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.stopped {
		return
	}
	t.started = true
	ctx, t.cancel = context.WithCancel(ctx)
	go t.loop(ctx)
	t.logger.Info("render ticker started", "interval", t.interval)
}

// Stop signals the loop to exit and waits for it. Safe to call more than
// once, and before Start; a stopped ticker cannot be restarted.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.stopped {
		t.stopped = true
		if t.started {
			t.cancel()
		} else {
			close(t.done)
		}
	}
	t.mu.Unlock()
	<-t.done
}

// Done is closed once the loop has exited.
func (t *Ticker) Done() <-chan struct{} { return t.done }

func (t *Ticker) loop(ctx context.Context) {
	defer close(t.done)

	t.dash.Tick(t.now())

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			f := t.dash.Tick(t.now())
			t.logger.Debug("frame rendered", "tick", f.Tick, "points", len(f.Points))
		}
	}
}
