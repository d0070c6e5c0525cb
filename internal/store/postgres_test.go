package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresEnsureSchema(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS route_segments`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_route_segments_route_id`).
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))

	require.NoError(t, NewPostgres(mock).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertSegmentsInOneTransaction(t *testing.T) {
	mock := newMock(t)
	rows := testRows(5, 2)

	mock.ExpectBegin()
	for _, row := range rows {
		mock.ExpectExec(`INSERT INTO route_segments`).
			WithArgs(
				row.Timestamp.UTC(), row.FullName, row.RouteID, row.SegmentIndex,
				row.Start.Y, row.Start.X, row.End.Y, row.End.X,
				string(row.TransportMode), row.DistanceKm, row.DurationSeconds, row.DurationMinutes,
				pgxmock.AnyArg(), string(row.SegmentType), string(row.UserType), row.GradeLevel, row.Department,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, NewPostgres(mock).InsertSegments(context.Background(), rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertRollsBackOnFailure(t *testing.T) {
	mock := newMock(t)
	rows := testRows(5, 2)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO route_segments`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO route_segments`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := NewPostgres(mock).InsertSegments(context.Background(), rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListSegments(t *testing.T) {
	mock := newMock(t)
	created := time.Date(2026, 10, 15, 12, 0, 1, 0, time.UTC)
	recorded := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	rating := int32(4)

	mock.ExpectQuery(`SELECT id, created_at, recorded_at`).
		WillReturnRows(pgxmock.NewRows(Columns).
			AddRow(int64(1), created, recorded, "Ana Ruiz", int64(9), 1,
				0.0, 0.0, 3.0, 4.0,
				"biking", 0.0005, 30, 0.5,
				&rating, "stopping", "faculty", "", "History"))

	segs, err := NewPostgres(mock).ListSegments(context.Background())
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, int64(9), segs[0].RouteID)
	assert.Equal(t, 4, segs[0].Rating)
	assert.Equal(t, "History", segs[0].Department)
	assert.Equal(t, 4.0, segs[0].End.X)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountAndMaxRouteID(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM route_segments`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(route_id\), 0\) FROM route_segments`).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(int64(41)))

	s := NewPostgres(mock)
	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)

	max, err := s.MaxRouteID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(41), max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClear(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`TRUNCATE TABLE route_segments RESTART IDENTITY`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE TABLE", 0))

	require.NoError(t, NewPostgres(mock).Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
