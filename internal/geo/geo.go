package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/walkmapper/walkmapper_core/internal/models"
)

// EarthRadiusKm is the sphere radius used for great-circle distances
const EarthRadiusKm = 6371.0

// System identifies the coordinate space points are expressed in
type System string

const (
	Pixel      System = "pixel"
	Geographic System = "geographic"
)

// ParseSystem maps a config value onto a System
func ParseSystem(value string) (System, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pixel", "pixels", "image":
		return Pixel, nil
	case "geographic", "geo", "latlng":
		return Geographic, nil
	default:
		return "", fmt.Errorf("unknown coordinate system %q", value)
	}
}

// Precision is the number of decimals distances are rounded to in this system
func (s System) Precision() int {
	if s == Geographic {
		return 4
	}
	return 2
}

// Unit is the label used in ledger headers
func (s System) Unit() string {
	if s == Geographic {
		return "Km"
	}
	return "Pixels"
}

// Distance returns the distance between a and b in the given system:
// pixels for Pixel, kilometres for Geographic
func Distance(a, b models.Point, sys System) float64 {
	if sys == Geographic {
		return HaversineKm(a.Lat(), a.Lng(), b.Lat(), b.Lng())
	}
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// HaversineKm calculates the great-circle distance in kilometres
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	// rounding can push a slightly outside [0,1] near antipodes
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Round rounds v to the given number of decimal places
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
