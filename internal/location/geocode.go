package location

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

// Geocoder resolves a coordinate into a human readable address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p Point) (string, error)
}

// reverseGeocoder is the subset of *maps.Client used here.
type reverseGeocoder interface {
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// GoogleGeocoder resolves addresses with the Google Maps Geocoding API.
type GoogleGeocoder struct {
	client reverseGeocoder
}

// NewGoogleGeocoder creates a geocoder authenticated with apiKey.
func NewGoogleGeocoder(apiKey string) (*GoogleGeocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}
	return &GoogleGeocoder{client: client}, nil
}

// ReverseGeocode returns the first formatted address for p.
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, p Point) (string, error) {
	req := &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Latitude, Lng: p.Longitude},
	}

	results, err := g.client.ReverseGeocode(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reverse geocoding failed: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no address found for %s", p)
	}
	return results[0].FormattedAddress, nil
}
