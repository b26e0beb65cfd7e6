package types

type MarkerClass string

const (
	MarkerStation     MarkerClass = "station"
	MarkerAccessPoint MarkerClass = "access_point"
	MarkerDevice      MarkerClass = "device"
	MarkerMovingAsset MarkerClass = "moving_asset"
	MarkerIncident    MarkerClass = "incident"
	MarkerResponder   MarkerClass = "responder"
	MarkerNoCoverage  MarkerClass = "no_coverage"
)

// Annotation is one labelled map marker handed to the presentation layer.
type Annotation struct {
	Coord Coordinate  `json:"coord"`
	Label string      `json:"label"`
	Class MarkerClass `json:"class"`
}
