package types

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryMaintenance Category = "maintenance"
	CategorySecurity    Category = "security"
	CategoryUndefined   Category = "undefined"
)

// ParseCategory accepts the canonical names plus the legacy values written
// by older override files ("manutencao", "seguranca").
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maintenance", "manutencao":
		return CategoryMaintenance, true
	case "security", "seguranca":
		return CategorySecurity, true
	case "undefined", "":
		return CategoryUndefined, true
	default:
		return "", false
	}
}

// Assignable reports whether c can be the response category of an incident.
func (c Category) Assignable() bool {
	return c == CategoryMaintenance || c == CategorySecurity
}

type DeviceRecord struct {
	DeviceID       string       `json:"device_id"`
	AccessPoint    *AccessPoint `json:"access_point,omitempty"`
	LastSeen       *time.Time   `json:"last_seen,omitempty"`
	BatteryPercent *int         `json:"battery_percent,omitempty"`
	Category       Category     `json:"category"`
}

// Clone returns a deep copy so callers can hold it across mutations.
func (r DeviceRecord) Clone() DeviceRecord {
	out := r
	if r.AccessPoint != nil {
		ap := *r.AccessPoint
		out.AccessPoint = &ap
	}
	if r.LastSeen != nil {
		t := *r.LastSeen
		out.LastSeen = &t
	}
	if r.BatteryPercent != nil {
		b := *r.BatteryPercent
		out.BatteryPercent = &b
	}
	return out
}

type Status string

const (
	StatusConnected Status = "connected"
	StatusActive    Status = "active"
	StatusStale     Status = "stale"
)

const (
	ConnectedWindow = 60 * time.Second
	ActiveWindow    = 300 * time.Second
)

// ClassifyStatus derives a device's status from its last-seen time. A device
// that has never been seen is stale.
func ClassifyStatus(lastSeen *time.Time, now time.Time) Status {
	if lastSeen == nil {
		return StatusStale
	}
	age := now.Sub(*lastSeen)
	switch {
	case age < ConnectedWindow:
		return StatusConnected
	case age < ActiveWindow:
		return StatusActive
	default:
		return StatusStale
	}
}

// Eligible is true for devices seen inside the active window, connected ones
// included.
func (s Status) Eligible() bool {
	return s == StatusConnected || s == StatusActive
}

// DeviceView pairs a record with the status derived at query time.
type DeviceView struct {
	DeviceRecord
	Status Status `json:"status"`
}
