// Package geometry converts between coordinate sequences, Google encoded
// polylines and the well-known-text representation PostGIS consumes.
// WKT orders axes longitude first; callers must not swap this.
package geometry

import (
	"fmt"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	polyline "github.com/twpayne/go-polyline"

	"github.com/aceriverson/titlesv2/pkg/errs"
)

// Point is a single coordinate sample in latitude/longitude order, as
// delivered by the front-end and by Strava's polyline encoding.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EncodeRing produces a closed POLYGON in WKT from an ordered vertex list.
// The first point is appended to close the ring.
func EncodeRing(points []Point) (string, error) {
	if len(points) == 0 {
		return "", errs.ErrEmptyGeometry
	}
	if len(points) < 3 {
		return "", fmt.Errorf("ring requires at least 3 vertices, got %d: %w", len(points), errs.ErrEmptyGeometry)
	}

	ring := make([]geom.Coord, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, geom.Coord{p.Lng, p.Lat})
	}
	ring = append(ring, geom.Coord{points[0].Lng, points[0].Lat})

	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
	if err != nil {
		return "", fmt.Errorf("build polygon: %w", err)
	}
	return wkt.Marshal(poly)
}

// EncodePath produces an open LINESTRING in WKT from an activity path.
func EncodePath(points []Point) (string, error) {
	if len(points) == 0 {
		return "", errs.ErrEmptyGeometry
	}

	coords := make([]geom.Coord, 0, len(points))
	for _, p := range points {
		coords = append(coords, geom.Coord{p.Lng, p.Lat})
	}

	line, err := geom.NewLineString(geom.XY).SetCoords(coords)
	if err != nil {
		return "", fmt.Errorf("build linestring: %w", err)
	}
	return wkt.Marshal(line)
}

// DecodeRing parses a POLYGON from WKT (as returned by ST_AsText) back into
// the exterior ring's vertices. The duplicated closing point is dropped.
func DecodeRing(text string) ([]Point, error) {
	g, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecode, err)
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return nil, fmt.Errorf("%w: expected POLYGON, got %T", errs.ErrDecode, g)
	}
	if poly.NumLinearRings() == 0 {
		return nil, errs.ErrEmptyGeometry
	}

	coords := poly.LinearRing(0).Coords()
	if n := len(coords); n > 1 && coords[0].Equal(geom.XY, coords[n-1]) {
		coords = coords[:n-1]
	}

	points := make([]Point, 0, len(coords))
	for _, c := range coords {
		points = append(points, Point{Lat: c.Y(), Lng: c.X()})
	}
	return points, nil
}

// DecodePolyline decodes Strava's delta-compressed path encoding. Malformed
// input (unbalanced escape sequences, coordinate overflow) fails with
// ErrDecode; a partial result is never returned.
func DecodePolyline(blob string) ([]Point, error) {
	if blob == "" {
		return nil, errs.ErrEmptyGeometry
	}

	coords, rest, err := polyline.DecodeCoords([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecode, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", errs.ErrDecode, len(rest))
	}
	if len(coords) == 0 {
		return nil, errs.ErrEmptyGeometry
	}

	points := make([]Point, 0, len(coords))
	for _, c := range coords {
		points = append(points, Point{Lat: c[0], Lng: c[1]})
	}
	return points, nil
}
