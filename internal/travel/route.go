package travel

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Route is the waypoint sequence an agent is following.
type Route struct {
	Waypoints    []orb.Point `json:"waypoints"`
	Index        int         `json:"index"`
	TargetZoneID string      `json:"targetZoneId"`
}

// Next is the first unreached waypoint.
func (r *Route) Next() orb.Point { return r.Waypoints[r.Index] }

// Last reports whether the next waypoint ends the route.
func (r *Route) Last() bool { return r.Index == len(r.Waypoints)-1 }

// BuildRoute returns the waypoints from the gateway of zone from, along the
// corridor, to a settle point just inside zone to. Equal or unknown ids
// yield no waypoints.
func (l *Layout) BuildRoute(from, to string) []orb.Point {
	if from == to {
		return nil
	}
	src, ok := l.Zone(from)
	if !ok {
		return nil
	}
	dst, ok := l.Zone(to)
	if !ok {
		return nil
	}
	cx := l.corridorX
	points := make([]orb.Point, 0, 5)
	points = append(points, src.Gateway, orb.Point{cx, src.Gateway[1]})
	if dst.Gateway[1] != src.Gateway[1] {
		points = append(points, orb.Point{cx, dst.Gateway[1]})
	}
	settle := orb.Point{dst.Gateway[0] + float64(l.Side(dst))*l.settleOffset, dst.Gateway[1]}
	return append(points, dst.Gateway, settle)
}

// RouteLength is the polyline length through the points.
func RouteLength(points []orb.Point) float64 {
	if len(points) < 2 {
		return 0
	}
	return planar.Length(orb.LineString(points))
}
