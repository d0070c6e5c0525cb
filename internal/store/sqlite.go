package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/walkmapper/walkmapper_core/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS route_segments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
	recorded_at TEXT NOT NULL,
	full_name TEXT NOT NULL DEFAULT '',
	route_id INTEGER NOT NULL,
	segment_id INTEGER NOT NULL,
	start_y REAL NOT NULL,
	start_x REAL NOT NULL,
	end_y REAL NOT NULL,
	end_x REAL NOT NULL,
	transport_mode TEXT NOT NULL,
	distance_km REAL NOT NULL,
	duration_seconds INTEGER NOT NULL,
	duration_minutes REAL NOT NULL,
	experience_rating INTEGER,
	segment_type TEXT NOT NULL,
	user_type TEXT NOT NULL DEFAULT '',
	grade_level TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_route_segments_route_id ON route_segments(route_id);
`

const insertSegmentSQLite = `
INSERT INTO route_segments (
	recorded_at, full_name, route_id, segment_id,
	start_y, start_x, end_y, end_x,
	transport_mode, distance_km, duration_seconds, duration_minutes,
	experience_rating, segment_type, user_type, grade_level, department
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectSegments = `
SELECT id, created_at, recorded_at, full_name, route_id, segment_id,
	start_y, start_x, end_y, end_x,
	transport_mode, distance_km, duration_seconds, duration_minutes,
	experience_rating, segment_type, user_type, grade_level, department
FROM route_segments
ORDER BY id
`

// SQLiteStore keeps segments in a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite wraps an open database handle; see db.OpenSQLite
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create %s: %w", TableName, err)
	}
	return nil
}

func (s *SQLiteStore) InsertSegments(ctx context.Context, rows []models.SegmentRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSegmentSQLite)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.Timestamp.UTC().Format(time.RFC3339),
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

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit segments: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSegments(ctx context.Context) ([]StoredSegment, error) {
	rows, err := s.db.QueryContext(ctx, selectSegments)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var result []StoredSegment
	for rows.Next() {
		var (
			seg                   StoredSegment
			createdAt, recordedAt string
			mode, segType, uType  string
			rating                sql.NullInt64
		)
		if err := rows.Scan(
			&seg.ID, &createdAt, &recordedAt, &seg.FullName, &seg.RouteID, &seg.SegmentIndex,
			&seg.Start.Y, &seg.Start.X, &seg.End.Y, &seg.End.X,
			&mode, &seg.DistanceKm, &seg.DurationSeconds, &seg.DurationMinutes,
			&rating, &segType, &uType, &seg.GradeLevel, &seg.Department,
		); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		seg.Timestamp, _ = time.Parse(time.RFC3339, recordedAt)
		seg.TransportMode = models.TransportMode(mode)
		seg.SegmentType = models.SegmentType(segType)
		seg.UserType = models.UserType(uType)
		if rating.Valid {
			seg.Rating = int(rating.Int64)
		}
		result = append(result, seg)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM route_segments").Scan(&n); err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) MaxRouteID(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(route_id), 0) FROM route_segments").Scan(&n); err != nil {
		return 0, fmt.Errorf("max route id: %w", err)
	}
	return n, nil
}

// Clear removes every row and resets the autoincrement sequence
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM route_segments"); err != nil {
		return fmt.Errorf("clear %s: %w", TableName, err)
	}
	// sqlite_sequence only exists once an AUTOINCREMENT row was written
	_, _ = s.db.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", TableName)
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
