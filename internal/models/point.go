package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Point is an immutable coordinate pair. In pixel space it is (y, x);
// in the geographic system Y holds latitude and X longitude.
type Point struct {
	Y float64 `json:"y"`
	X float64 `json:"x"`
}

// NewLatLng builds a geographic point
func NewLatLng(lat, lng float64) Point {
	return Point{Y: lat, X: lng}
}

// Lat returns the latitude of a geographic point
func (p Point) Lat() float64 { return p.Y }

// Lng returns the longitude of a geographic point
func (p Point) Lng() float64 { return p.X }

// String formats the point as "y,x"
func (p Point) String() string {
	return fmt.Sprintf("%g,%g", p.Y, p.X)
}

// UnmarshalJSON accepts {"y","x"}, {"lat","lng"} and the [y, x] array form
func (p *Point) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("point array: %w", err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("point array: expected 2 values, got %d", len(pair))
		}
		p.Y, p.X = pair[0], pair[1]
		return nil
	}

	var raw struct {
		Y   *float64 `json:"y"`
		X   *float64 `json:"x"`
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("point object: %w", err)
	}
	switch {
	case raw.Y != nil && raw.X != nil:
		p.Y, p.X = *raw.Y, *raw.X
	case raw.Lat != nil && raw.Lng != nil:
		p.Y, p.X = *raw.Lat, *raw.Lng
	default:
		return fmt.Errorf("point object: expected y/x or lat/lng")
	}
	return nil
}
