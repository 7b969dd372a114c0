package geometry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aceriverson/titlesv2/pkg/errs"
)

func TestEncodeRing(t *testing.T) {
	ring := []Point{
		{Lat: 41.0, Lng: -71.0},
		{Lat: 41.5, Lng: -71.0},
		{Lat: 41.5, Lng: -70.5},
	}

	text, err := EncodeRing(ring)
	require.NoError(t, err)

	// Axis order is lng lat and the ring is closed back to the first vertex.
	assert.True(t, strings.HasPrefix(text, "POLYGON"))
	assert.Contains(t, text, "-71 41")
	assert.True(t, strings.HasSuffix(text, "-71 41))"), "first vertex should also close the ring: %s", text)
}

func TestEncodeRingRoundTrip(t *testing.T) {
	ring := []Point{
		{Lat: 41.0, Lng: -71.0},
		{Lat: 41.5, Lng: -71.0},
		{Lat: 41.5, Lng: -70.5},
		{Lat: 41.0, Lng: -70.5},
	}

	text, err := EncodeRing(ring)
	require.NoError(t, err)

	decoded, err := DecodeRing(text)
	require.NoError(t, err)
	assert.Equal(t, ring, decoded, "round trip should drop only the closing duplicate")
}

func TestEncodeRingEmpty(t *testing.T) {
	_, err := EncodeRing(nil)
	assert.ErrorIs(t, err, errs.ErrEmptyGeometry)

	_, err = EncodeRing([]Point{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}})
	assert.ErrorIs(t, err, errs.ErrEmptyGeometry, "two vertices cannot form a ring")
}

func TestEncodePath(t *testing.T) {
	path := []Point{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
	}

	text, err := EncodePath(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "LINESTRING"))
	assert.Contains(t, text, "-120.2 38.5")

	_, err = EncodePath(nil)
	assert.ErrorIs(t, err, errs.ErrEmptyGeometry)
}

func TestDecodePolyline(t *testing.T) {
	// Reference vector from Google's polyline algorithm documentation.
	points, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 38.5, points[0].Lat, 1e-9)
	assert.InDelta(t, -120.2, points[0].Lng, 1e-9)
	assert.InDelta(t, 43.252, points[2].Lat, 1e-9)
	assert.InDelta(t, -126.453, points[2].Lng, 1e-9)
}

func TestDecodePolylineMalformed(t *testing.T) {
	tests := []struct {
		name string
		blob string
		want error
	}{
		{"empty", "", errs.ErrEmptyGeometry},
		{"unterminated sequence", "_p~iF~ps|U_", errs.ErrDecode},
		{"invalid byte", "_p~iF~ps|U\x01", errs.ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := DecodePolyline(tt.blob)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, points, "no partial result on failure")
		})
	}
}

func TestDecodeRingRejectsNonPolygon(t *testing.T) {
	_, err := DecodeRing("LINESTRING (0 0, 1 1)")
	assert.ErrorIs(t, err, errs.ErrDecode)

	_, err = DecodeRing("POLYGON ((")
	assert.ErrorIs(t, err, errs.ErrDecode)
}
