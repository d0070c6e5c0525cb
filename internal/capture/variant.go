package capture

import "github.com/walkmapper/walkmapper_core/internal/geo"

// Policy holds the validation rules a capture variant enforces
type Policy struct {
	RequireRating      bool
	RejectZeroDuration bool
	RequireFullName    bool
}

// Variant is a named deployment flavour of the mapper.
// Each variant fixes its coordinate system and validation policy.
type Variant struct {
	Name   string
	System geo.System
	Policy Policy
}

// DefaultVariant is used when no variant or an unknown one is configured
const DefaultVariant = "campus_walk_rated"

// CampusWalk is the original image mapper: no rating, every leg must take time
var CampusWalk = Variant{
	Name:   "campus_walk",
	System: geo.Pixel,
	Policy: Policy{RejectZeroDuration: true},
}

// CampusWalkRated asks for a rating per leg and treats zero duration as
// passing through
var CampusWalkRated = Variant{
	Name:   "campus_walk_rated",
	System: geo.Pixel,
	Policy: Policy{RequireRating: true, RequireFullName: true},
}

// GeoSurvey traces on a real map in latitude/longitude
var GeoSurvey = Variant{
	Name:   "geo_survey",
	System: geo.Geographic,
	Policy: Policy{RequireRating: true, RequireFullName: true},
}

// GetVariant returns a variant by name
func GetVariant(name string) Variant {
	switch name {
	case "campus_walk":
		return CampusWalk
	case "campus_walk_rated":
		return CampusWalkRated
	case "geo_survey":
		return GeoSurvey
	default:
		return CampusWalkRated
	}
}

// AllVariants returns all available variants
func AllVariants() []Variant {
	return []Variant{CampusWalk, CampusWalkRated, GeoSurvey}
}
