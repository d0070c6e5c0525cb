package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walkmapper/walkmapper_core/internal/db"
	"github.com/walkmapper/walkmapper_core/internal/models"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	conn, err := db.OpenSQLite(":memory:", nil)
	require.NoError(t, err)

	s := NewSQLite(conn)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func testRows(routeID int64, n int) []models.SegmentRow {
	rows := make([]models.SegmentRow, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, models.SegmentRow{
			Timestamp:       time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
			FullName:        "Ana Ruiz",
			RouteID:         routeID,
			SegmentIndex:    i,
			Start:           models.Point{Y: float64(i - 1), X: 0},
			End:             models.Point{Y: float64(i), X: 0},
			TransportMode:   models.ModeWalking,
			Distance:        1,
			DistanceKm:      0.1112,
			DurationSeconds: 60,
			DurationMinutes: 1,
			Rating:          i % 2 * 3,
			SegmentType:     models.SegmentStopping,
			UserType:        models.UserStudent,
			GradeLevel:      "senior",
			Department:      "Physics",
		})
	}
	return rows
}

func TestSQLiteInsertAndList(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.InsertSegments(ctx, testRows(1, 3)))
	require.NoError(t, s.InsertSegments(ctx, testRows(2, 1)))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	segs, err := s.ListSegments(ctx)
	require.NoError(t, err)
	require.Len(t, segs, 4)

	first := segs[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(1), first.RouteID)
	assert.Equal(t, 1, first.SegmentIndex)
	assert.Equal(t, 3, first.Rating)
	assert.Equal(t, 0, segs[1].Rating)
	assert.Equal(t, models.ModeWalking, first.TransportMode)
	assert.Equal(t, models.SegmentStopping, first.SegmentType)
	assert.Equal(t, 0.1112, first.DistanceKm)
	assert.True(t, first.Timestamp.Equal(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)))
	assert.False(t, first.CreatedAt.IsZero())

	record := first.Record()
	assert.Len(t, record, len(Columns))
	assert.Equal(t, "3", record[14])
	assert.Equal(t, "", segs[1].Record()[14])
}

func TestSQLiteEnsureSchemaIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	assert.NoError(t, s.EnsureSchema(context.Background()))
}

func TestSQLiteMaxRouteID(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	max, err := s.MaxRouteID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), max)

	require.NoError(t, s.InsertSegments(ctx, testRows(7, 2)))
	require.NoError(t, s.InsertSegments(ctx, testRows(3, 1)))

	max, err = s.MaxRouteID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), max)
}

func TestSQLiteClear(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.InsertSegments(ctx, testRows(1, 2)))

	require.NoError(t, s.Clear(ctx))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, s.InsertSegments(ctx, testRows(2, 1)))
	segs, err := s.ListSegments(ctx)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, int64(1), segs[0].ID)
}

func TestSQLiteInsertEmptyIsNoop(t *testing.T) {
	s := newSQLiteStore(t)
	assert.NoError(t, s.InsertSegments(context.Background(), nil))
}
