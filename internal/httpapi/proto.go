package httpapi

import (
	"mime"
	"net/http"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/service"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

// maxRequestBody caps request bodies. Telemetry payloads are a device id and
// a MAC or battery level, JSON bodies are a couple of short fields.
const maxRequestBody = 4096

const protobufMediaType = "application/x-protobuf"

// wantsProtobuf reports whether the client lists a protobuf media type in
// Accept.
func wantsProtobuf(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if mt == protobufMediaType || mt == "application/protobuf" {
			return true
		}
	}
	return false
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protobufMediaType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// frameToStruct encodes a frame as a google.protobuf.Struct with the same
// field names as its JSON form.
func frameToStruct(f service.Frame) (*structpb.Struct, error) {
	points := make([]any, len(f.Points))
	for i, p := range f.Points {
		points[i] = map[string]any{
			"coord": coordValue(p.Coord),
			"label": p.Label,
			"class": string(p.Class),
		}
	}

	m := map[string]any{
		"tick":   float64(f.Tick),
		"at":     f.At.UTC().Format(time.RFC3339Nano),
		"points": points,
	}
	if f.Incident != nil {
		m["incident"] = map[string]any{
			"id":          f.Incident.ID,
			"location":    f.Incident.Location,
			"category":    string(f.Incident.Category),
			"reported_at": f.Incident.ReportedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	if f.Match != nil {
		match := map[string]any{"covered": f.Match.Covered}
		if f.Match.Covered {
			match["device_id"] = f.Match.Device.DeviceID
			match["distance_m"] = f.Match.DistanceMeters
			match["eta_min"] = f.Match.ETAMinutes
			if ap := f.Match.Device.AccessPoint; ap != nil {
				match["access_point"] = ap.ID
			}
		}
		m["match"] = match
	}
	return structpb.NewStruct(m)
}

func coordValue(c types.Coordinate) map[string]any {
	return map[string]any{"lat": c.Lat, "lon": c.Lon}
}
