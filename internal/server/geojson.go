package server

import (
	"encoding/json"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"electionsim/mapsim/internal/travel"
)

// LayoutFeatures describes the zones, their gateways and the corridor as
// GeoJSON in map coordinates.
func LayoutFeatures(l *travel.Layout) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	zones := l.Zones()
	if len(zones) == 0 {
		return fc
	}
	top, bottom := zones[0].Bounds.Min[1], zones[0].Bounds.Max[1]
	for _, z := range zones {
		area := geojson.NewFeature(z.Bounds.ToPolygon())
		area.ID = z.ID
		area.Properties["kind"] = "zone"
		area.Properties["name"] = z.Name
		area.Properties["side"] = l.Side(z).String()
		fc.Append(area)

		gw := geojson.NewFeature(z.Gateway)
		gw.Properties["kind"] = "gateway"
		gw.Properties["zone"] = z.ID
		fc.Append(gw)

		if z.Bounds.Min[1] < top {
			top = z.Bounds.Min[1]
		}
		if z.Bounds.Max[1] > bottom {
			bottom = z.Bounds.Max[1]
		}
	}
	corridor := geojson.NewFeature(orb.LineString{{l.CorridorX(), top}, {l.CorridorX(), bottom}})
	corridor.Properties["kind"] = "corridor"
	fc.Append(corridor)
	return fc
}

// RouteFeature is the route between two zones as a GeoJSON line, or nil when
// there is nothing to travel.
func RouteFeature(l *travel.Layout, from, to string) *geojson.Feature {
	points := l.BuildRoute(from, to)
	if len(points) == 0 {
		return nil
	}
	f := geojson.NewFeature(orb.LineString(points))
	f.Properties["from"] = from
	f.Properties["to"] = to
	f.Properties["length"] = travel.RouteLength(points)
	return f
}

func (s *Server) layoutHandler(w http.ResponseWriter, r *http.Request) {
	s.writeGeoJSON(w, LayoutFeatures(s.traveler.Layout()))
}

func (s *Server) routeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := RouteFeature(s.traveler.Layout(), q.Get("from"), q.Get("to"))
	if f == nil {
		http.Error(w, "no route", http.StatusNotFound)
		return
	}
	s.writeGeoJSON(w, f)
}

func (s *Server) writeGeoJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("geojson write failed", zap.Error(err))
	}
}
