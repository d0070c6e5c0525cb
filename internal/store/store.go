package store

import (
	"context"
	"strconv"
	"time"

	"github.com/walkmapper/walkmapper_core/internal/models"
)

// TableName is the relational mirror of the ledger
const TableName = "route_segments"

// Columns lists the table columns in export order
var Columns = []string{
	"id",
	"created_at",
	"recorded_at",
	"full_name",
	"route_id",
	"segment_id",
	"start_y",
	"start_x",
	"end_y",
	"end_x",
	"transport_mode",
	"distance_km",
	"duration_seconds",
	"duration_minutes",
	"experience_rating",
	"segment_type",
	"user_type",
	"grade_level",
	"department",
}

// StoredSegment is a SegmentRow as read back from the table.
// Distance is left zero; only DistanceKm is persisted.
type StoredSegment struct {
	ID        int64
	CreatedAt time.Time
	models.SegmentRow
}

// Record renders the stored segment in Columns order
func (s StoredSegment) Record() []string {
	rating := ""
	if s.Rating > 0 {
		rating = strconv.Itoa(s.Rating)
	}
	return []string{
		strconv.FormatInt(s.ID, 10),
		s.CreatedAt.UTC().Format(time.RFC3339),
		s.Timestamp.UTC().Format(time.RFC3339),
		s.FullName,
		strconv.FormatInt(s.RouteID, 10),
		strconv.Itoa(s.SegmentIndex),
		formatFloat(s.Start.Y),
		formatFloat(s.Start.X),
		formatFloat(s.End.Y),
		formatFloat(s.End.X),
		string(s.TransportMode),
		formatFloat(s.DistanceKm),
		strconv.Itoa(s.DurationSeconds),
		formatFloat(s.DurationMinutes),
		rating,
		string(s.SegmentType),
		string(s.UserType),
		s.GradeLevel,
		s.Department,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SegmentStore is the relational sink for persisted segments
type SegmentStore interface {
	// EnsureSchema creates the table if it does not exist
	EnsureSchema(ctx context.Context) error
	// InsertSegments writes all rows of one route in a single transaction
	InsertSegments(ctx context.Context, rows []models.SegmentRow) error
	ListSegments(ctx context.Context) ([]StoredSegment, error)
	Count(ctx context.Context) (int64, error)
	// MaxRouteID returns the highest persisted route id, or 0
	MaxRouteID(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
	Close() error
}

func nullableRating(r int) any {
	if r <= 0 {
		return nil
	}
	return r
}
