package network

import (
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

var (
	ErrInvalidRoute         = errors.New("route needs at least two stations")
	ErrDuplicateStationName = errors.New("duplicate station name")
)

// SubSteps is the number of ticks the moving asset spends on each segment.
const SubSteps = 5

// Route is an ordered, immutable sequence of stations traversed forward and
// wrapped back to the first segment after the last one.
type Route struct {
	stations []types.Station
	byName   map[string]int
}

func NewRoute(stations []types.Station) (Route, error) {
	if len(stations) < 2 {
		return Route{}, fmt.Errorf("%w (got %d)", ErrInvalidRoute, len(stations))
	}
	r := Route{
		stations: make([]types.Station, len(stations)),
		byName:   make(map[string]int, len(stations)),
	}
	for i, st := range stations {
		if _, dup := r.byName[st.Name]; dup {
			return Route{}, fmt.Errorf("%w: %q", ErrDuplicateStationName, st.Name)
		}
		r.byName[st.Name] = i
		r.stations[i] = st
	}
	return r, nil
}

func (r Route) Len() int { return len(r.stations) }

// Stations returns a copy of the route in traversal order.
func (r Route) Stations() []types.Station {
	out := make([]types.Station, len(r.stations))
	copy(out, r.stations)
	return out
}

func (r Route) Station(name string) (types.Station, bool) {
	i, ok := r.byName[name]
	if !ok {
		return types.Station{}, false
	}
	return r.stations[i], true
}

// Period is a number of ticks after which Position repeats.
func (r Route) Period() uint64 {
	return uint64(SubSteps * (len(r.stations) - 1))
}

// Position maps tick n to the moving asset's coordinate: the segment is
// n mod (stations-1), progress along it is (n mod 5)/5.
//
// It panics on a Route that was not built by NewRoute.
func Position(n uint64, r Route) types.Coordinate {
	if len(r.stations) < 2 {
		panic(ErrInvalidRoute)
	}
	segments := uint64(len(r.stations) - 1)
	seg := n % segments
	progress := float64(n%SubSteps) / float64(SubSteps)

	from := r.stations[seg].Coord
	to := r.stations[seg+1].Coord
	return types.Coordinate{
		Lat: from.Lat + (to.Lat-from.Lat)*progress,
		Lon: from.Lon + (to.Lon-from.Lon)*progress,
	}
}
