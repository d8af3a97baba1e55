// Package location provides the position capability consumed by the accident
// monitor: permission requests, current-position fixes, and reverse geocoding.
package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// String formats the point as "lat,lng".
func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
}

// MapURL returns a link that renders a marker at p.
func MapURL(p Point) string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%s", p.String())
}

// Permission is the result of a foreground location permission request.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ErrUnavailable is returned when no position can be obtained.
var ErrUnavailable = errors.New("location unavailable")

// Provider supplies the device position.
type Provider interface {
	RequestPermission(ctx context.Context) (Permission, error)
	CurrentPosition(ctx context.Context) (Point, error)
}

// Static always reports the same position.
type Static struct {
	point      Point
	permission Permission
}

// NewStatic creates a provider pinned to point. An empty permission means granted.
func NewStatic(point Point, permission Permission) *Static {
	if permission == "" {
		permission = PermissionGranted
	}
	return &Static{point: point, permission: permission}
}

func (s *Static) RequestPermission(ctx context.Context) (Permission, error) {
	return s.permission, nil
}

func (s *Static) CurrentPosition(ctx context.Context) (Point, error) {
	if err := ctx.Err(); err != nil {
		return Point{}, err
	}
	if s.permission != PermissionGranted {
		return Point{}, ErrUnavailable
	}
	return s.point, nil
}

// Route walks through a fixed list of points, one per fix, and stays on the
// last point once the route is exhausted.
type Route struct {
	points []Point
	next   int
	mu     sync.Mutex
}

// NewRoute creates a route provider. At least one point is required.
func NewRoute(points ...Point) (*Route, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("route requires at least one point")
	}
	return &Route{points: points}, nil
}

func (r *Route) RequestPermission(ctx context.Context) (Permission, error) {
	return PermissionGranted, nil
}

func (r *Route) CurrentPosition(ctx context.Context) (Point, error) {
	if err := ctx.Err(); err != nil {
		return Point{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.points[r.next]
	if r.next < len(r.points)-1 {
		r.next++
	}
	return p, nil
}

// Unavailable models a host without location services.
type Unavailable struct{}

func (Unavailable) RequestPermission(ctx context.Context) (Permission, error) {
	return PermissionDenied, nil
}

func (Unavailable) CurrentPosition(ctx context.Context) (Point, error) {
	return Point{}, ErrUnavailable
}
