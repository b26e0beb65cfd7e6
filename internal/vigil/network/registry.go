package network

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

var (
	ErrDuplicateHardwareID = errors.New("duplicate access point hardware id")
	ErrEmptyHardwareID     = errors.New("access point hardware id is required")
)

// Registry is the immutable table of known access points, indexed by
// hardware id. Build it once at startup with NewRegistry.
type Registry struct {
	aps    []types.AccessPoint
	byHWID map[string]int
}

func NewRegistry(aps []types.AccessPoint) (*Registry, error) {
	r := &Registry{
		aps:    make([]types.AccessPoint, 0, len(aps)),
		byHWID: make(map[string]int, len(aps)),
	}
	for _, ap := range aps {
		hw := NormalizeHardwareID(ap.HardwareID)
		if hw == "" {
			return nil, fmt.Errorf("%w (ap %q)", ErrEmptyHardwareID, ap.ID)
		}
		if _, dup := r.byHWID[hw]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHardwareID, hw)
		}
		ap.HardwareID = hw
		r.byHWID[hw] = len(r.aps)
		r.aps = append(r.aps, ap)
	}
	return r, nil
}

// Lookup resolves a hardware id (any case) to its access point.
func (r *Registry) Lookup(hardwareID string) (types.AccessPoint, bool) {
	i, ok := r.byHWID[NormalizeHardwareID(hardwareID)]
	if !ok {
		return types.AccessPoint{}, false
	}
	return r.aps[i], true
}

// All returns a copy of the table in registration order.
func (r *Registry) All() []types.AccessPoint {
	out := make([]types.AccessPoint, len(r.aps))
	copy(out, r.aps)
	return out
}

func NormalizeHardwareID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
