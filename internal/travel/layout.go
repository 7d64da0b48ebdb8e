// Package travel moves agents between rectangular zones of a 2D map.
//
// Every zone connects to one shared vertical corridor through a gateway on
// its boundary. Agents either wander inside their zone or follow a route
// that exits through the departure gateway, slides along the corridor and
// enters the destination gateway.
package travel

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var (
	ErrInvalidZone        = errors.New("invalid zone")
	ErrDuplicateZone      = errors.New("duplicate zone id")
	ErrGatewayOffBoundary = errors.New("gateway not on zone boundary")
	ErrStraddlesCorridor  = errors.New("zone straddles corridor")
	ErrZoneTooNarrow      = errors.New("zone narrower than settle offset")
)

// boundaryEpsilon is the tolerance for a gateway sitting on a zone edge.
const boundaryEpsilon = 1e-6

// Zone is a rectangular region agents can occupy.
type Zone struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Bounds  orb.Bound `json:"bounds"`
	Gateway orb.Point `json:"gateway"`
}

// Side of the corridor a zone sits on.
type Side int

const (
	Left  Side = -1
	Right Side = 1
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Layout is an immutable zone registry sharing one corridor.
type Layout struct {
	corridorX    float64
	settleOffset float64
	zones        map[string]Zone
	order        []string
}

// NewLayout validates zones against the corridor and returns the registry.
func NewLayout(corridorX, settleOffset float64, zones ...Zone) (*Layout, error) {
	if settleOffset < 0 || math.IsNaN(settleOffset) || math.IsNaN(corridorX) {
		return nil, fmt.Errorf("corridor %v settle %v: %w", corridorX, settleOffset, ErrInvalidZone)
	}
	l := &Layout{
		corridorX:    corridorX,
		settleOffset: settleOffset,
		zones:        make(map[string]Zone, len(zones)),
		order:        make([]string, 0, len(zones)),
	}
	for _, z := range zones {
		if err := l.validate(z); err != nil {
			return nil, fmt.Errorf("zone %q: %w", z.ID, err)
		}
		if _, ok := l.zones[z.ID]; ok {
			return nil, fmt.Errorf("zone %q: %w", z.ID, ErrDuplicateZone)
		}
		l.zones[z.ID] = z
		l.order = append(l.order, z.ID)
	}
	return l, nil
}

func (l *Layout) validate(z Zone) error {
	b := z.Bounds
	if z.ID == "" || b.Max[0] <= b.Min[0] || b.Max[1] <= b.Min[1] {
		return ErrInvalidZone
	}
	if b.Min[0] < l.corridorX && b.Max[0] > l.corridorX {
		return ErrStraddlesCorridor
	}
	// the gateway must sit on the edge facing the corridor
	edge := b.Min[0]
	if l.Side(z) == Left {
		edge = b.Max[0]
	}
	gx, gy := z.Gateway[0], z.Gateway[1]
	if math.Abs(gx-edge) >= boundaryEpsilon || gy <= b.Min[1] || gy >= b.Max[1] {
		return ErrGatewayOffBoundary
	}
	if b.Max[0]-b.Min[0] <= l.settleOffset {
		return ErrZoneTooNarrow
	}
	return nil
}

// CorridorX is the x coordinate of the shared corridor line.
func (l *Layout) CorridorX() float64 { return l.corridorX }

// SettleOffset is the inward distance of a route's final point from the gateway.
func (l *Layout) SettleOffset() float64 { return l.settleOffset }

// Zone looks up a zone by id.
func (l *Layout) Zone(id string) (Zone, bool) {
	if l == nil {
		return Zone{}, false
	}
	z, ok := l.zones[id]
	return z, ok
}

// Zones returns the zones in registration order.
func (l *Layout) Zones() []Zone {
	out := make([]Zone, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.zones[id])
	}
	return out
}

// Side reports which side of the corridor z lies on.
func (l *Layout) Side(z Zone) Side {
	if z.Bounds.Center()[0] < l.corridorX {
		return Left
	}
	return Right
}

// WithZone returns a copy of the layout with z added or replaced.
func (l *Layout) WithZone(z Zone) (*Layout, error) {
	zones := l.Zones()
	replaced := false
	for i := range zones {
		if zones[i].ID == z.ID {
			zones[i] = z
			replaced = true
		}
	}
	if !replaced {
		zones = append(zones, z)
	}
	return NewLayout(l.corridorX, l.settleOffset, zones...)
}

// WithoutZone returns a copy of the layout with the zone removed.
func (l *Layout) WithoutZone(id string) *Layout {
	zones := l.Zones()
	kept := zones[:0]
	for _, z := range zones {
		if z.ID != id {
			kept = append(kept, z)
		}
	}
	out, _ := NewLayout(l.corridorX, l.settleOffset, kept...)
	return out
}
