package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"

	"github.com/walkmapper/walkmapper_core/internal/geo"
	"github.com/walkmapper/walkmapper_core/internal/ledger"
	"github.com/walkmapper/walkmapper_core/internal/models"
	"github.com/walkmapper/walkmapper_core/internal/store"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrNotFound is returned when there is nothing to export
var ErrNotFound = errors.New("no data to export")

const ledgerSheet = "Segments"

// LedgerExporter renders persisted segments as a spreadsheet. The relational
// store is preferred; the flat ledger is the fallback.
type LedgerExporter struct {
	store  store.SegmentStore
	ledger *ledger.Ledger
	logger *zap.Logger
}

// NewLedgerExporter accepts a nil store, ledger or logger
func NewLedgerExporter(s store.SegmentStore, l *ledger.Ledger, logger *zap.Logger) *LedgerExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerExporter{store: s, ledger: l, logger: logger}
}

// Export returns xlsx bytes or ErrNotFound when both sources are empty
func (e *LedgerExporter) Export(ctx context.Context) ([]byte, error) {
	header, rows, err := e.source(ctx)
	if err != nil {
		return nil, err
	}
	return Workbook(ledgerSheet, header, rows)
}

// source picks the rows to export. A store failure falls back to the ledger;
// it is only returned when the ledger has nothing either.
func (e *LedgerExporter) source(ctx context.Context) ([]string, [][]string, error) {
	var storeErr error
	if e.store != nil {
		segs, err := e.store.ListSegments(ctx)
		switch {
		case err != nil:
			storeErr = fmt.Errorf("list stored segments: %w", err)
			e.logger.Warn("store unavailable for export, falling back to ledger", zap.Error(err))
		case len(segs) > 0:
			rows := make([][]string, len(segs))
			for i, s := range segs {
				rows[i] = s.Record()
			}
			return store.Columns, rows, nil
		}
	}

	if e.ledger != nil {
		header, rows, err := e.ledger.Records()
		if err == nil {
			return header, rows, nil
		}
		if !errors.Is(err, ledger.ErrEmpty) {
			return nil, nil, err
		}
	}
	if storeErr != nil {
		return nil, nil, storeErr
	}
	return nil, nil, ErrNotFound
}

// Workbook builds a single-sheet xlsx document
func Workbook(sheet string, header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("open sheet writer: %w", err)
	}
	if err := sw.SetRow("A1", toCells(header)); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, toCells(row)); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

// CSV encodes header and rows
func CSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GroupRoutes turns stored segments back into per-route rows ordered by
// route id, recomputing the native distance from the stored endpoints
func GroupRoutes(segs []store.StoredSegment, sys geo.System) [][]models.SegmentRow {
	byRoute := map[int64][]models.SegmentRow{}
	var ids []int64
	for _, s := range segs {
		row := s.SegmentRow
		row.Distance = geo.Round(geo.Distance(row.Start, row.End, sys), sys.Precision())
		if _, ok := byRoute[row.RouteID]; !ok {
			ids = append(ids, row.RouteID)
		}
		byRoute[row.RouteID] = append(byRoute[row.RouteID], row)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	routes := make([][]models.SegmentRow, 0, len(ids))
	for _, id := range ids {
		rows := byRoute[id]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].SegmentIndex < rows[j].SegmentIndex })
		routes = append(routes, rows)
	}
	return routes
}
