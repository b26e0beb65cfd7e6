package service

import "github.com/BrandonDHaskell/Vigil/internal/vigil/types"

// DefaultDeclutterStep is the longitude offset, in degrees, between markers
// that share a coordinate.
const DefaultDeclutterStep = 0.001

// Declutter spreads markers that share an exact coordinate along longitude,
// centred on the original point. Latitude, labels and order are unchanged.
func Declutter(points []types.Annotation, step float64) []types.Annotation {
	out := make([]types.Annotation, len(points))
	copy(out, points)

	groups := make(map[types.Coordinate][]int)
	for i, p := range points {
		groups[p.Coord] = append(groups[p.Coord], i)
	}
	for _, idx := range groups {
		k := len(idx)
		if k < 2 {
			continue
		}
		center := float64(k-1) / 2
		for i, j := range idx {
			out[j].Coord.Lon += (float64(i) - center) * step
		}
	}
	return out
}
