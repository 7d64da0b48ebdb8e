package travel

import (
	"math"
	"math/rand"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// arriveEpsilon absorbs rounding when the last step of a frame lands on a waypoint.
const arriveEpsilon = 1e-9

// Kind only changes how big and how fast an agent is.
type Kind string

const (
	Ordinary Kind = "ordinary"
	Notable  Kind = "notable"
)

// Profile holds the per-kind motion parameters.
type Profile struct {
	Radius      float64 `json:"radius" yaml:"radius"`
	TravelSpeed float64 `json:"travelSpeed" yaml:"travel_speed"`
	WanderSpeed float64 `json:"wanderSpeed" yaml:"wander_speed"`
}

// DefaultProfiles matches the dot sizes and speeds of the district map.
func DefaultProfiles() map[Kind]Profile {
	return map[Kind]Profile{
		Ordinary: {Radius: 4, TravelSpeed: 80, WanderSpeed: 20},
		Notable:  {Radius: 8, TravelSpeed: 60, WanderSpeed: 12},
	}
}

// Agent is the motion state of one map marker. Step never mutates an Agent
// in place; Waypoints of a Route are shared and read-only.
type Agent struct {
	ID             string    `json:"id"`
	Kind           Kind      `json:"kind"`
	CurrentZoneID  string    `json:"currentZoneId"`
	TargetZoneID   string    `json:"targetZoneId"`
	Position       orb.Point `json:"position"`
	WanderVelocity orb.Point `json:"wanderVelocity"`
	Route          *Route    `json:"route,omitempty"`
}

// Traveling reports whether the agent has an active route.
func (a Agent) Traveling() bool { return a.Route != nil }

// Arrival is emitted once per finished or cancelled route.
type Arrival struct {
	AgentID   string    `json:"agentId"`
	ZoneID    string    `json:"zoneId"`
	Position  orb.Point `json:"position"`
	Cancelled bool      `json:"cancelled,omitempty"`
}

// Step advances a by dt seconds and returns the new state plus the arrival
// event, if the frame finished or cancelled a route. A non-positive dt is a
// no-op frame.
func Step(l *Layout, a Agent, p Profile, dt float64) (Agent, *Arrival) {
	if !(dt > 0) {
		return a, nil
	}
	if a.Route != nil {
		switch {
		case a.TargetZoneID == a.CurrentZoneID:
			return cancel(a)
		case a.Route.TargetZoneID != a.TargetZoneID:
			waypoints := l.BuildRoute(a.CurrentZoneID, a.TargetZoneID)
			if len(waypoints) == 0 {
				a.TargetZoneID = a.CurrentZoneID
				return cancel(a)
			}
			a.Route = &Route{Waypoints: waypoints, TargetZoneID: a.TargetZoneID}
		default:
			if _, ok := l.Zone(a.Route.TargetZoneID); !ok {
				a.TargetZoneID = a.CurrentZoneID
				return cancel(a)
			}
		}
	} else if a.TargetZoneID != a.CurrentZoneID {
		waypoints := l.BuildRoute(a.CurrentZoneID, a.TargetZoneID)
		if len(waypoints) == 0 {
			a.TargetZoneID = a.CurrentZoneID
		} else {
			a.Route = &Route{Waypoints: waypoints, TargetZoneID: a.TargetZoneID}
		}
	}
	if a.Route == nil {
		return wander(l, a, p, dt), nil
	}
	return follow(a, p.TravelSpeed*dt)
}

// cancel drops the route and settles the agent where it stands.
func cancel(a Agent) (Agent, *Arrival) {
	a.Route = nil
	return a, &Arrival{AgentID: a.ID, ZoneID: a.CurrentZoneID, Position: a.Position, Cancelled: true}
}

// follow moves the agent step units along its route. Distance left over
// after reaching a waypoint carries into the next segment.
func follow(a Agent, step float64) (Agent, *Arrival) {
	r := *a.Route
	a.Route = &r
	for step > 0 {
		next := r.Next()
		dist := planar.Distance(a.Position, next)
		if dist <= step+arriveEpsilon {
			a.Position = next
			step -= dist
			if r.Last() {
				a.Route = nil
				a.CurrentZoneID = r.TargetZoneID
				a.TargetZoneID = r.TargetZoneID
				return a, &Arrival{AgentID: a.ID, ZoneID: r.TargetZoneID, Position: next}
			}
			r.Index++
			continue
		}
		a.Position = toward(a.Position, next, dist, step)
		step = 0
	}
	return a, nil
}

func wander(l *Layout, a Agent, p Profile, dt float64) Agent {
	z, ok := l.Zone(a.CurrentZoneID)
	if !ok {
		return a
	}
	inner := padded(z.Bounds, p.Radius)
	if !inner.Contains(a.Position) {
		// stranded outside after a cancel: walk back in first
		target := clamp(a.Position, inner)
		dist := planar.Distance(a.Position, target)
		if step := p.TravelSpeed * dt; dist > step {
			a.Position = toward(a.Position, target, dist, step)
		} else {
			a.Position = target
		}
		return a
	}
	for axis := 0; axis < 2; axis++ {
		next := a.Position[axis] + a.WanderVelocity[axis]*dt
		switch {
		case next < inner.Min[axis]:
			next = inner.Min[axis]
			a.WanderVelocity[axis] = -a.WanderVelocity[axis]
		case next > inner.Max[axis]:
			next = inner.Max[axis]
			a.WanderVelocity[axis] = -a.WanderVelocity[axis]
		}
		a.Position[axis] = next
	}
	return a
}

// Relocate drops a at a random point of z's padded bounds.
func Relocate(a Agent, z Zone, p Profile, rng *rand.Rand) Agent {
	inner := padded(z.Bounds, p.Radius)
	a.Position = orb.Point{
		inner.Min[0] + rng.Float64()*(inner.Max[0]-inner.Min[0]),
		inner.Min[1] + rng.Float64()*(inner.Max[1]-inner.Min[1]),
	}
	return a
}

// RandomVelocity returns a vector of the given magnitude in a random direction.
func RandomVelocity(speed float64, rng *rand.Rand) orb.Point {
	angle := rng.Float64() * 2 * math.Pi
	return orb.Point{math.Cos(angle) * speed, math.Sin(angle) * speed}
}

// padded shrinks b by r on every side, collapsing to the center on an axis
// too small to hold the agent.
func padded(b orb.Bound, r float64) orb.Bound {
	out := b
	for axis := 0; axis < 2; axis++ {
		if b.Max[axis]-b.Min[axis] <= 2*r {
			mid := (b.Min[axis] + b.Max[axis]) / 2
			out.Min[axis], out.Max[axis] = mid, mid
			continue
		}
		out.Min[axis] = b.Min[axis] + r
		out.Max[axis] = b.Max[axis] - r
	}
	return out
}

func clamp(p orb.Point, b orb.Bound) orb.Point {
	return orb.Point{
		math.Min(math.Max(p[0], b.Min[0]), b.Max[0]),
		math.Min(math.Max(p[1], b.Min[1]), b.Max[1]),
	}
}

func toward(from, to orb.Point, dist, step float64) orb.Point {
	return orb.Point{
		from[0] + (to[0]-from[0])/dist*step,
		from[1] + (to[1]-from[1])/dist*step,
	}
}
