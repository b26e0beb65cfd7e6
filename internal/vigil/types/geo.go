package types

// Coordinate is a WGS-84 position in decimal degrees. Two coordinates are
// the same point only when both components are exactly equal.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type AccessPoint struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Coord      Coordinate `json:"coord"`
	HardwareID string     `json:"hardware_id"` // BSSID, upper-case
}

type Station struct {
	Name  string     `json:"name"`
	Coord Coordinate `json:"coord"`
}
