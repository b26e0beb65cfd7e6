package service

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

// WalkingSpeed is the responder speed used for ETA estimates, in m/s.
const WalkingSpeed = 1.2

// Result is the outcome of a responder search. Covered is false when no
// eligible device of the category exists.
type Result struct {
	Covered        bool               `json:"covered"`
	Device         types.DeviceRecord `json:"device"`
	DistanceMeters float64            `json:"distance_m"`
	ETAMinutes     float64            `json:"eta_min"`
}

// Match picks the nearest device of category cat that is eligible at
// the time the views were derived and has a known access point. Equal
// distances are broken by the lowest device id.
func Match(target types.Coordinate, cat types.Category, devices []types.DeviceView) Result {
	var best Result
	for _, d := range devices {
		if d.Category != cat || !d.Status.Eligible() || d.AccessPoint == nil {
			continue
		}
		dist := Distance(target, d.AccessPoint.Coord)
		if best.Covered {
			if dist > best.DistanceMeters {
				continue
			}
			if dist == best.DistanceMeters && d.DeviceID >= best.Device.DeviceID {
				continue
			}
		}
		best = Result{Covered: true, Device: d.DeviceRecord.Clone(), DistanceMeters: dist}
	}
	if best.Covered {
		best.ETAMinutes = ETAMinutes(best.DistanceMeters)
	}
	return best
}

// Distance is the great-circle distance between a and b in meters.
func Distance(a, b types.Coordinate) float64 {
	return geo.DistanceHaversine(orb.Point{a.Lon, a.Lat}, orb.Point{b.Lon, b.Lat})
}

// ETAMinutes converts a walking distance to minutes rounded to one decimal.
func ETAMinutes(meters float64) float64 {
	return math.Round(meters/WalkingSpeed/60*10) / 10
}
