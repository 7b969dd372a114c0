// Package staticmap renders a fixed-size PNG of an activity path with
// highlighted start and end markers, for submission to the captioner.
package staticmap

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/aceriverson/titlesv2/pkg/geometry"
)

const (
	canvasSize = 400
	margin     = 30.0
	markerSize = 5
)

var (
	background = color.RGBA{R: 0xf5, G: 0xf5, B: 0xf0, A: 0xff}
	routeColor = color.RGBA{R: 0x1a, G: 0x6b, B: 0xc4, A: 0xff}
	startColor = color.RGBA{R: 0x2e, G: 0xa0, B: 0x44, A: 0xff}
	endColor   = color.RGBA{R: 0xd0, G: 0x3a, B: 0x2e, A: 0xff}
)

// Renderer projects activity paths onto a fixed-size canvas.
type Renderer struct{}

// New constructs a path renderer.
func New() *Renderer { return &Renderer{} }

// Render draws the path as a PNG. At least two points are required.
// Routes with many samples are simplified before drawing.
func (r *Renderer) Render(points []geometry.Point) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("path requires at least 2 points, got %d", len(points))
	}

	if len(points) > 200 {
		points = simplify(points, 0.0001)
	}

	img := image.NewRGBA(image.Rect(0, 0, canvasSize, canvasSize))
	fill(img, background)

	projected := project(points)
	for i := 1; i < len(projected); i++ {
		drawLine(img, projected[i-1], projected[i], routeColor)
	}

	drawMarker(img, projected[0], startColor)
	drawMarker(img, projected[len(projected)-1], endColor)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

type pixel struct{ X, Y float64 }

// project maps lat/lng samples into canvas coordinates, centred and scaled
// to preserve aspect ratio. Latitude inverts because image Y grows down.
func project(points []geometry.Point) []pixel {
	minLat, maxLat := points[0].Lat, points[0].Lat
	minLng, maxLng := points[0].Lng, points[0].Lng
	for _, p := range points {
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLng = math.Min(minLng, p.Lng)
		maxLng = math.Max(maxLng, p.Lng)
	}

	drawSpan := float64(canvasSize) - 2*margin
	latRange := maxLat - minLat
	lngRange := maxLng - minLng

	scale := math.Inf(1)
	if lngRange > 0 {
		scale = drawSpan / lngRange
	}
	if latRange > 0 {
		scale = math.Min(scale, drawSpan/latRange)
	}
	if math.IsInf(scale, 1) {
		// Degenerate path: all samples identical.
		scale = 0
	}

	offsetX := margin + (drawSpan-lngRange*scale)/2
	offsetY := margin + (drawSpan-latRange*scale)/2

	out := make([]pixel, 0, len(points))
	for _, p := range points {
		out = append(out, pixel{
			X: offsetX + (p.Lng-minLng)*scale,
			Y: offsetY + (maxLat-p.Lat)*scale,
		})
	}
	return out
}

func fill(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// drawLine rasterises a segment by sampling along its length.
func drawLine(img *image.RGBA, a, b pixel, c color.RGBA) {
	dx, dy := b.X-a.X, b.Y-a.Y
	steps := int(math.Max(math.Abs(dx), math.Abs(dy))) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(a.X + t*dx))
		y := int(math.Round(a.Y + t*dy))
		img.SetRGBA(x, y, c)
		img.SetRGBA(x+1, y, c)
		img.SetRGBA(x, y+1, c)
	}
}

func drawMarker(img *image.RGBA, p pixel, c color.RGBA) {
	cx, cy := int(math.Round(p.X)), int(math.Round(p.Y))
	for y := cy - markerSize; y <= cy+markerSize; y++ {
		for x := cx - markerSize; x <= cx+markerSize; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// simplify reduces points with the Douglas-Peucker algorithm.
func simplify(points []geometry.Point, tolerance float64) []geometry.Point {
	if len(points) < 3 {
		return points
	}

	maxDist := 0.0
	maxIdx := 0
	first := points[0]
	last := points[len(points)-1]

	for i := 1; i < len(points)-1; i++ {
		if d := perpendicularDistance(points[i], first, last); d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}

	if maxDist > tolerance {
		left := simplify(points[:maxIdx+1], tolerance)
		right := simplify(points[maxIdx:], tolerance)
		// Merge into a fresh slice; appending onto left would write through
		// the backing array shared with the caller's path.
		out := make([]geometry.Point, 0, len(left)+len(right)-1)
		out = append(out, left[:len(left)-1]...)
		out = append(out, right...)
		return out
	}

	return []geometry.Point{first, last}
}

func perpendicularDistance(point, lineStart, lineEnd geometry.Point) float64 {
	dx := lineEnd.Lng - lineStart.Lng
	dy := lineEnd.Lat - lineStart.Lat

	if dx == 0 && dy == 0 {
		return math.Hypot(point.Lng-lineStart.Lng, point.Lat-lineStart.Lat)
	}

	t := ((point.Lng-lineStart.Lng)*dx + (point.Lat-lineStart.Lat)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))

	return math.Hypot(point.Lng-(lineStart.Lng+t*dx), point.Lat-(lineStart.Lat+t*dy))
}
