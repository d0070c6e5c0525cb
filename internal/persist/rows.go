package persist

import (
	"time"

	"github.com/walkmapper/walkmapper_core/internal/geo"
	"github.com/walkmapper/walkmapper_core/internal/models"
)

// BuildRows derives one SegmentRow per segment of route. Distances are
// rounded to the precision of sys; DistanceKm always carries kilometres.
func BuildRows(route models.Route, sys geo.System, georef *geo.Georef, now time.Time) []models.SegmentRow {
	ts := route.FinishedAt
	if ts.IsZero() {
		ts = now
	}
	ts = ts.UTC()

	rows := make([]models.SegmentRow, 0, len(route.Segments))
	for i, seg := range route.Segments {
		rows = append(rows, models.SegmentRow{
			Timestamp:       ts,
			FullName:        route.Profile.FullName,
			RouteID:         route.ID,
			SegmentIndex:    i + 1,
			Start:           seg.Start,
			End:             seg.End,
			TransportMode:   seg.TransportMode,
			Distance:        geo.Round(geo.Distance(seg.Start, seg.End, sys), sys.Precision()),
			DistanceKm:      geo.Round(geo.DistanceKm(seg.Start, seg.End, sys, georef), 4),
			DurationSeconds: seg.DurationSeconds,
			DurationMinutes: geo.Round(float64(seg.DurationSeconds)/60, 2),
			Rating:          seg.ExperienceRating,
			SegmentType:     seg.Type(),
			UserType:        route.Profile.UserType,
			GradeLevel:      route.Profile.GradeLevel,
			Department:      route.Profile.Department,
		})
	}
	return rows
}
