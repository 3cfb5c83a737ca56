package domain

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrDegenerateRegion is returned for polygons with fewer than three distinct vertices.
var ErrDegenerateRegion = errors.New("region needs at least 3 vertices")

// Region is a simple polygon restricting where a rule applies.
type Region struct {
	polygon orb.Polygon
}

// NewPoint builds a planar point with latitude on the first axis. Rule
// vertices and observation coordinates must both go through it.
func NewPoint(lat, lon float64) orb.Point {
	return orb.Point{lat, lon}
}

// NewRegion builds a region from vertices in input order. The closing edge
// from the last vertex back to the first is implicit, so an explicitly closed
// ring is accepted too.
func NewRegion(vertices []orb.Point) (*Region, error) {
	distinct := make(map[orb.Point]struct{}, len(vertices))
	for _, v := range vertices {
		distinct[v] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, ErrDegenerateRegion
	}
	ring := make(orb.Ring, len(vertices))
	copy(ring, vertices)
	return &Region{polygon: orb.Polygon{ring}}, nil
}

// Contains reports whether the coordinate lies inside or on the boundary of
// the region. A nil region contains every point.
func (r *Region) Contains(lat, lon float64) bool {
	if r == nil {
		return true
	}
	return planar.PolygonContains(r.polygon, NewPoint(lat, lon))
}

// Vertices returns a copy of the region's vertices.
func (r *Region) Vertices() []orb.Point {
	if r == nil {
		return nil
	}
	out := make([]orb.Point, len(r.polygon[0]))
	copy(out, r.polygon[0])
	return out
}

// Bound returns the region's bounding box.
func (r *Region) Bound() orb.Bound {
	return r.polygon.Bound()
}
