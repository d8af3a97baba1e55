package location

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestStatic(t *testing.T) {
	p := Point{Latitude: 12.97, Longitude: 77.59}
	s := NewStatic(p, "")

	perm, err := s.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, perm)

	got, err := s.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestStatic_Denied(t *testing.T) {
	s := NewStatic(Point{}, PermissionDenied)

	perm, _ := s.RequestPermission(context.Background())
	assert.Equal(t, PermissionDenied, perm)

	_, err := s.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStatic_CancelledContext(t *testing.T) {
	s := NewStatic(Point{Latitude: 1, Longitude: 2}, PermissionGranted)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CurrentPosition(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRoute(t *testing.T) {
	a := Point{Latitude: 1, Longitude: 1}
	b := Point{Latitude: 2, Longitude: 2}
	r, err := NewRoute(a, b)
	require.NoError(t, err)

	ctx := context.Background()
	first, _ := r.CurrentPosition(ctx)
	second, _ := r.CurrentPosition(ctx)
	third, _ := r.CurrentPosition(ctx)

	assert.Equal(t, a, first)
	assert.Equal(t, b, second)
	assert.Equal(t, b, third, "route should stay on its last point")
}

func TestNewRoute_Empty(t *testing.T) {
	_, err := NewRoute()
	assert.Error(t, err)
}

func TestUnavailable(t *testing.T) {
	var u Unavailable
	perm, err := u.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, perm)

	_, err = u.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMapURL(t *testing.T) {
	url := MapURL(Point{Latitude: 12.97, Longitude: 77.59})
	assert.Equal(t, "https://www.google.com/maps/search/?api=1&query=12.970000,77.590000", url)
}

type fakeMaps struct {
	results []maps.GeocodingResult
	err     error
	got     *maps.GeocodingRequest
}

func (f *fakeMaps) ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	f.got = r
	return f.results, f.err
}

func TestGoogleGeocoder_ReverseGeocode(t *testing.T) {
	fake := &fakeMaps{results: []maps.GeocodingResult{
		{FormattedAddress: "MG Road, Bengaluru"},
		{FormattedAddress: "Bengaluru"},
	}}
	g := &GoogleGeocoder{client: fake}

	addr, err := g.ReverseGeocode(context.Background(), Point{Latitude: 12.97, Longitude: 77.59})
	require.NoError(t, err)
	assert.Equal(t, "MG Road, Bengaluru", addr)
	require.NotNil(t, fake.got.LatLng)
	assert.Equal(t, 12.97, fake.got.LatLng.Lat)
	assert.Equal(t, 77.59, fake.got.LatLng.Lng)
}

func TestGoogleGeocoder_Errors(t *testing.T) {
	g := &GoogleGeocoder{client: &fakeMaps{err: errors.New("quota")}}
	_, err := g.ReverseGeocode(context.Background(), Point{})
	assert.ErrorContains(t, err, "quota")

	g = &GoogleGeocoder{client: &fakeMaps{}}
	_, err = g.ReverseGeocode(context.Background(), Point{})
	assert.ErrorContains(t, err, "no address")
}
