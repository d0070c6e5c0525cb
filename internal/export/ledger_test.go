package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walkmapper/walkmapper_core/internal/db"
	"github.com/walkmapper/walkmapper_core/internal/geo"
	"github.com/walkmapper/walkmapper_core/internal/ledger"
	"github.com/walkmapper/walkmapper_core/internal/models"
	"github.com/walkmapper/walkmapper_core/internal/store"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func readXLSX(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	return rows
}

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	conn, err := db.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	s := store.NewSQLite(conn)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestLedgerExportNotFoundWhenEmpty(t *testing.T) {
	l, err := ledger.Open(filepath.Join(t.TempDir(), "vector_data.csv"), geo.Pixel, nil)
	require.NoError(t, err)

	_, err = NewLedgerExporter(newStore(t), l, nil).Export(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewLedgerExporter(nil, nil, nil).Export(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerExportFallsBackToLedger(t *testing.T) {
	l, err := ledger.Open(filepath.Join(t.TempDir(), "vector_data.csv"), geo.Pixel, nil)
	require.NoError(t, err)
	require.NoError(t, l.Append(routeRows(1, 2, "a")))

	data, err := NewLedgerExporter(newStore(t), l, nil).Export(context.Background())
	require.NoError(t, err)

	rows := readXLSX(t, data)
	require.Len(t, rows, 3)
	assert.Equal(t, ledger.Header(geo.Pixel), rows[0])
}

func TestLedgerExportPrefersStore(t *testing.T) {
	ctx := context.Background()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "vector_data.csv"), geo.Pixel, nil)
	require.NoError(t, err)
	require.NoError(t, l.Append(routeRows(1, 2, "a")))

	s := newStore(t)
	require.NoError(t, s.InsertSegments(ctx, routeRows(1, 1, "a")))

	data, err := NewLedgerExporter(s, l, nil).Export(ctx)
	require.NoError(t, err)

	rows := readXLSX(t, data)
	require.Len(t, rows, 2)
	assert.Equal(t, store.Columns, rows[0])
}

func TestLedgerExportLogsStoreFailure(t *testing.T) {
	ctx := context.Background()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "vector_data.csv"), geo.Pixel, nil)
	require.NoError(t, err)

	s := newStore(t)
	require.NoError(t, s.Close())

	core, logs := observer.New(zap.WarnLevel)
	exporter := NewLedgerExporter(s, l, zap.New(core))

	// both sources empty: the store failure is what the caller sees
	_, err = exporter.Export(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "list stored segments")

	require.NoError(t, l.Append(routeRows(1, 2, "a")))
	data, err := exporter.Export(ctx)
	require.NoError(t, err)
	assert.Len(t, readXLSX(t, data), 3)

	assert.Equal(t, 2, logs.FilterMessage("store unavailable for export, falling back to ledger").Len())
}

func TestGroupRoutes(t *testing.T) {
	ts := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	segs := []store.StoredSegment{
		{ID: 1, SegmentRow: models.SegmentRow{RouteID: 4, SegmentIndex: 2, Start: models.Point{Y: 3, X: 4}, End: models.Point{Y: 3, X: 5}, Timestamp: ts}},
		{ID: 2, SegmentRow: models.SegmentRow{RouteID: 2, SegmentIndex: 1, Start: models.Point{}, End: models.Point{Y: 3, X: 4}, Timestamp: ts}},
		{ID: 3, SegmentRow: models.SegmentRow{RouteID: 4, SegmentIndex: 1, Start: models.Point{}, End: models.Point{Y: 3, X: 4}, Timestamp: ts}},
	}

	routes := GroupRoutes(segs, geo.Pixel)
	require.Len(t, routes, 2)
	assert.Equal(t, int64(2), routes[0][0].RouteID)
	assert.Equal(t, 5.0, routes[0][0].Distance)
	require.Len(t, routes[1], 2)
	assert.Equal(t, 1, routes[1][0].SegmentIndex)
	assert.Equal(t, 1.0, routes[1][1].Distance)
}

func TestCSV(t *testing.T) {
	data, err := CSV([]string{"a", "b"}, [][]string{{"1", "x,y"}})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x,y\"\n", string(data))
}
