package types

import "time"

// MovingAssetLocation is the incident location that follows the simulated
// vehicle instead of a fixed station.
const MovingAssetLocation = "moving-asset"

type Incident struct {
	ID         string    `json:"id"`
	Location   string    `json:"location"`
	Category   Category  `json:"category"`
	ReportedAt time.Time `json:"reported_at"`
}
