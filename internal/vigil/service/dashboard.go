package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/network"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

// Frame is one rendered map state.
type Frame struct {
	Tick     uint64             `json:"tick"`
	At       time.Time          `json:"at"`
	Points   []types.Annotation `json:"points"`
	Incident *types.Incident    `json:"incident,omitempty"`
	Match    *Result            `json:"match,omitempty"`
}

// DashboardConfig holds the parameters for NewDashboard.
type DashboardConfig struct {
	// DeclutterStep is the longitude spacing for overlapping markers.
	// Defaults to DefaultDeclutterStep.
	DeclutterStep float64

	// Now is the clock used by ReportIncident. Defaults to time.Now.
	Now func() time.Time
}

// Dashboard is the interface the presentation layer drives: it exposes the
// live snapshot, incident reporting and selection, and builds map frames on
// each render tick.
type Dashboard struct {
	route     network.Route
	registry  *network.Registry
	presence  *Presence
	incidents *Incidents
	step      float64
	now       func() time.Time
	logger    *slog.Logger

	mu        sync.Mutex
	tick      uint64 // index of the next frame
	selected  string
	showAll   bool
	latest    Frame
	hasLatest bool
}

func NewDashboard(route network.Route, reg *network.Registry, presence *Presence, incidents *Incidents, cfg DashboardConfig, logger *slog.Logger) *Dashboard {
	step := cfg.DeclutterStep
	if step <= 0 {
		step = DefaultDeclutterStep
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Dashboard{
		route:     route,
		registry:  reg,
		presence:  presence,
		incidents: incidents,
		step:      step,
		now:       now,
		logger:    logger,
	}
}

// Snapshot lists every known device with its status at now.
func (d *Dashboard) Snapshot(now time.Time) []types.DeviceView {
	return d.presence.View(now)
}

func (d *Dashboard) Route() []types.Station { return d.route.Stations() }

func (d *Dashboard) AccessPoints() []types.AccessPoint { return d.registry.All() }

func (d *Dashboard) Incidents() []types.Incident { return d.incidents.List() }

func (d *Dashboard) ReportIncident(ctx context.Context, location string, cat types.Category) (string, error) {
	inc, err := d.incidents.Report(ctx, location, cat, d.now())
	if err != nil {
		return "", err
	}
	return inc.ID, nil
}

// SelectIncident chooses the incident highlighted in subsequent frames. An
// empty id clears the selection.
func (d *Dashboard) SelectIncident(id string) error {
	id = strings.TrimSpace(id)
	if id != "" {
		if _, ok := d.incidents.Get(id); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownIncident, id)
		}
	}
	d.mu.Lock()
	d.selected = id
	d.mu.Unlock()
	return nil
}

func (d *Dashboard) SetShowAllDevices(on bool) {
	d.mu.Lock()
	d.showAll = on
	d.mu.Unlock()
}

func (d *Dashboard) ShowAllDevices() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.showAll
}

// Ticks reports how many frames have been built.
func (d *Dashboard) Ticks() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tick
}

// Latest returns the most recently built frame, or the zero Frame before
// the first tick.
func (d *Dashboard) Latest() Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest
}

// Tick builds the frame for now and advances the render counter. The first
// frame is tick 0, which places the moving asset at the first station.
func (d *Dashboard) Tick(now time.Time) Frame {
	d.mu.Lock()
	n := d.tick
	d.tick++
	selected := d.selected
	showAll := d.showAll
	d.mu.Unlock()

	var inc *types.Incident
	if selected != "" {
		if i, ok := d.incidents.Get(selected); ok {
			inc = &i
		}
	}

	f := d.build(n, now, showAll, inc)

	d.mu.Lock()
	if !d.hasLatest || f.Tick > d.latest.Tick {
		d.latest = f
		d.hasLatest = true
	}
	d.mu.Unlock()
	return f
}

func (d *Dashboard) build(n uint64, now time.Time, showAll bool, inc *types.Incident) Frame {
	views := d.presence.View(now)

	var points []types.Annotation
	for _, st := range d.route.Stations() {
		points = append(points, types.Annotation{Coord: st.Coord, Label: st.Name, Class: types.MarkerStation})
	}
	for _, ap := range d.registry.All() {
		points = append(points, types.Annotation{Coord: ap.Coord, Label: ap.ID, Class: types.MarkerAccessPoint})
	}
	for _, v := range views {
		if !v.Status.Eligible() || v.AccessPoint == nil {
			continue
		}
		if !showAll && (inc == nil || v.Category != inc.Category) {
			continue
		}
		points = append(points, types.Annotation{
			Coord: v.AccessPoint.Coord,
			Label: fmt.Sprintf("%s (%s) AP: %s", v.DeviceID, v.Category, v.AccessPoint.Name),
			Class: types.MarkerDevice,
		})
	}

	asset := network.Position(n, d.route)
	points = append(points, types.Annotation{Coord: asset, Label: "moving asset", Class: types.MarkerMovingAsset})

	f := Frame{Tick: n, At: now}
	if inc != nil {
		target := asset
		if inc.Location != types.MovingAssetLocation {
			if st, ok := d.route.Station(inc.Location); ok {
				target = st.Coord
			}
		}
		points = withoutCoord(points, target)
		points = append(points, types.Annotation{
			Coord: target,
			Label: fmt.Sprintf("incident: %s (%s)", inc.Location, inc.Category),
			Class: types.MarkerIncident,
		})

		m := Match(target, inc.Category, views)
		if m.Covered {
			at := m.Device.AccessPoint.Coord
			points = withoutCoord(points, at)
			points = append(points, types.Annotation{
				Coord: at,
				Label: fmt.Sprintf("%s (%s) distance: %d m eta: %.1f min", m.Device.DeviceID, m.Device.Category, int(m.DistanceMeters), m.ETAMinutes),
				Class: types.MarkerResponder,
			})
		} else {
			d.logger.Debug("no responder available", "incident_id", inc.ID, "category", inc.Category)
			points = append(points, types.Annotation{
				Coord: target,
				Label: fmt.Sprintf("no %s device available nearby", inc.Category),
				Class: types.MarkerNoCoverage,
			})
		}
		f.Incident = inc
		f.Match = &m
	}

	f.Points = Declutter(points, d.step)
	return f
}

func withoutCoord(points []types.Annotation, c types.Coordinate) []types.Annotation {
	out := points[:0]
	for _, p := range points {
		if p.Coord != c {
			out = append(out, p)
		}
	}
	return out
}
