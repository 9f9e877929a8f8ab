// Package device abstracts the handset's location services.
package device

import (
	"context"
	"math"
	"strings"
	"time"

	"LiveGuard/pkg/i18n"
)

type Permission int

const (
	PermissionUndetermined Permission = iota
	PermissionGranted
	PermissionDenied
)

type Accuracy int

const (
	AccuracyBalanced Accuracy = iota
	AccuracyHigh
)

// Fix is one position reading.
type Fix struct {
	Latitude  float64
	Longitude float64
	// metres, nil when the provider does not report it
	Accuracy  *float64
	Timestamp time.Time
}

type Address struct {
	Street   string
	District string
	City     string
	Region   string
	Country  string
}

// String joins the non-empty parts, or returns the localized
// "Address unavailable".
func (a Address) String() string {
	var parts []string
	for _, p := range []string{a.Street, a.District, a.City, a.Region, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return i18n.M("address.unavailable")
	}
	return strings.Join(parts, ", ")
}

type WatchOptions struct {
	Accuracy    Accuracy
	MinInterval time.Duration
	// metres
	MinDistance float64
}

// Locator is the platform location service.
type Locator interface {
	RequestPermission(ctx context.Context) (Permission, error)
	Current(ctx context.Context, acc Accuracy) (Fix, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error)
	// Watch calls fn for every new fix until stop is called.
	Watch(ctx context.Context, opts WatchOptions, fn func(Fix)) (stop func(), err error)
}

const earthRadius = 6371000.0

// Distance is the great-circle distance between two fixes in metres.
func Distance(a, b Fix) float64 {
	lat1, lat2 := rad(a.Latitude), rad(b.Latitude)
	dLat := lat2 - lat1
	dLon := rad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// Round7 rounds a coordinate to 7 decimal places (about 1 cm).
func Round7(v float64) float64 {
	return math.Round(v*1e7) / 1e7
}
