package geo

import "github.com/walkmapper/walkmapper_core/internal/models"

// Georef pins a reference image onto the globe by its edges.
// Pixel (0,0) is the north-west corner; Height/Width are the image size in pixels.
type Georef struct {
	North  float64 `toml:"north"`
	South  float64 `toml:"south"`
	East   float64 `toml:"east"`
	West   float64 `toml:"west"`
	Height float64 `toml:"height"`
	Width  float64 `toml:"width"`
}

// Configured reports whether the georef can project pixels
func (g *Georef) Configured() bool {
	return g != nil && g.Height > 0 && g.Width > 0 && g.North != g.South && g.East != g.West
}

// ToLatLng linearly projects a pixel point onto latitude/longitude
func (g *Georef) ToLatLng(p models.Point) models.Point {
	lat := g.North - (p.Y/g.Height)*(g.North-g.South)
	lng := g.West + (p.X/g.Width)*(g.East-g.West)
	return models.NewLatLng(lat, lng)
}

// DistanceKm returns the geographic distance between a and b whatever the
// native system. Pixel points go through the georef when one is configured
// and are otherwise read as (lat, lng).
func DistanceKm(a, b models.Point, sys System, georef *Georef) float64 {
	if sys == Pixel && georef.Configured() {
		a, b = georef.ToLatLng(a), georef.ToLatLng(b)
	}
	return HaversineKm(a.Lat(), a.Lng(), b.Lat(), b.Lng())
}
