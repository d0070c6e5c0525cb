package store

import (
	"context"
	"fmt"

	"github.com/walkmapper/walkmapper_core/internal/db"
	"github.com/walkmapper/walkmapper_core/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS route_segments (
	id BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	recorded_at TIMESTAMPTZ NOT NULL,
	full_name TEXT NOT NULL DEFAULT '',
	route_id BIGINT NOT NULL,
	segment_id INTEGER NOT NULL,
	start_y DOUBLE PRECISION NOT NULL,
	start_x DOUBLE PRECISION NOT NULL,
	end_y DOUBLE PRECISION NOT NULL,
	end_x DOUBLE PRECISION NOT NULL,
	transport_mode TEXT NOT NULL,
	distance_km DOUBLE PRECISION NOT NULL,
	duration_seconds INTEGER NOT NULL,
	duration_minutes DOUBLE PRECISION NOT NULL,
	experience_rating INTEGER,
	segment_type TEXT NOT NULL,
	user_type TEXT NOT NULL DEFAULT '',
	grade_level TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT ''
)`

const postgresIndex = `CREATE INDEX IF NOT EXISTS idx_route_segments_route_id ON route_segments(route_id)`

const insertSegmentPostgres = `
INSERT INTO route_segments (
	recorded_at, full_name, route_id, segment_id,
	start_y, start_x, end_y, end_x,
	transport_mode, distance_km, duration_seconds, duration_minutes,
	experience_rating, segment_type, user_type, grade_level, department
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
`

// PostgresStore keeps segments in Postgres through a pgx pool
type PostgresStore struct {
	db db.Beginner
}

// NewPostgres wraps a pool; both *pgxpool.Pool and pgxmock pools fit
func NewPostgres(pool db.Beginner) *PostgresStore {
	return &PostgresStore{db: pool}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create %s: %w", TableName, err)
	}
	if _, err := s.db.Exec(ctx, postgresIndex); err != nil {
		return fmt.Errorf("create %s index: %w", TableName, err)
	}
	return nil
}

func (s *PostgresStore) InsertSegments(ctx context.Context, rows []models.SegmentRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		if _, err := tx.Exec(ctx, insertSegmentPostgres,
			row.Timestamp.UTC(),
			row.FullName,
			row.RouteID,
			row.SegmentIndex,
			row.Start.Y,
			row.Start.X,
			row.End.Y,
			row.End.X,
			string(row.TransportMode),
			row.DistanceKm,
			row.DurationSeconds,
			row.DurationMinutes,
			nullableRating(row.Rating),
			string(row.SegmentType),
			string(row.UserType),
			row.GradeLevel,
			row.Department,
		); err != nil {
			return fmt.Errorf("insert segment %d of route %d: %w", row.SegmentIndex, row.RouteID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit segments: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSegments(ctx context.Context) ([]StoredSegment, error) {
	rows, err := s.db.Query(ctx, selectSegments)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var result []StoredSegment
	for rows.Next() {
		var (
			seg                  StoredSegment
			mode, segType, uType string
			rating               *int32
		)
		if err := rows.Scan(
			&seg.ID, &seg.CreatedAt, &seg.Timestamp, &seg.FullName, &seg.RouteID, &seg.SegmentIndex,
			&seg.Start.Y, &seg.Start.X, &seg.End.Y, &seg.End.X,
			&mode, &seg.DistanceKm, &seg.DurationSeconds, &seg.DurationMinutes,
			&rating, &segType, &uType, &seg.GradeLevel, &seg.Department,
		); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.TransportMode = models.TransportMode(mode)
		seg.SegmentType = models.SegmentType(segType)
		seg.UserType = models.UserType(uType)
		if rating != nil {
			seg.Rating = int(*rating)
		}
		result = append(result, seg)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM route_segments").Scan(&n); err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) MaxRouteID(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, "SELECT COALESCE(MAX(route_id), 0) FROM route_segments").Scan(&n); err != nil {
		return 0, fmt.Errorf("max route id: %w", err)
	}
	return n, nil
}

// Clear truncates the table and restarts the id sequence
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "TRUNCATE TABLE route_segments RESTART IDENTITY"); err != nil {
		return fmt.Errorf("clear %s: %w", TableName, err)
	}
	return nil
}

// Close releases the pool when the store owns one
func (s *PostgresStore) Close() error {
	if closer, ok := s.db.(interface{ Close() }); ok {
		closer.Close()
	}
	return nil
}
