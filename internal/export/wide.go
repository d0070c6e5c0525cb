package export

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/walkmapper/walkmapper_core/internal/geo"
	"github.com/walkmapper/walkmapper_core/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const wideSheet = "Routes"

// Prefix is the fixed identity block at the start of every wide row
var Prefix = []string{"Full_Name", "User_Type", "Department", "Grade_Level"}

// GroupFields is the repeating per-segment column group, in order
var GroupFields = []string{"Vector", "Mode", "Start", "End", "Time", "Rating"}

// numericFields are written as numbers rather than text
var numericFields = map[string]bool{"Vector": true, "Time": true, "Rating": true}

// Wide is the one-row-per-route spreadsheet. Its columns grow with the
// longest route seen so far, so every append rewrites the whole file.
type Wide struct {
	mu     sync.Mutex
	path   string
	system geo.System
	lock   *flock.Flock
	logger *zap.Logger
}

// NewWide prepares a wide export at path; the file is created on first append
func NewWide(path string, sys geo.System, logger *zap.Logger) *Wide {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wide{
		path:   path,
		system: sys,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

// Path returns the export location
func (w *Wide) Path() string {
	return w.path
}

func (w *Wide) withLock(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("ensure export directory: %w", err)
	}
	if err := w.lock.Lock(); err != nil {
		return fmt.Errorf("lock export: %w", err)
	}
	defer func() {
		if err := w.lock.Unlock(); err != nil {
			w.logger.Warn("failed to release export lock", zap.Error(err))
		}
	}()
	return fn()
}

// Append adds one route (its segment rows) and rewrites the file over the
// union of the existing and new columns
func (w *Wide) Append(rows []models.SegmentRow) error {
	if len(rows) == 0 {
		return nil
	}
	return w.withLock(func() error {
		header, data, err := readWorkbook(w.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		existing := toMaps(header, data)
		existing = append(existing, w.routeRow(rows))
		return w.write(existing, header)
	})
}

// Rebuild regenerates the file from scratch, one row per route
func (w *Wide) Rebuild(routes [][]models.SegmentRow) error {
	return w.withLock(func() error {
		records := make([]map[string]string, 0, len(routes))
		for _, rows := range routes {
			if len(rows) == 0 {
				continue
			}
			records = append(records, w.routeRow(rows))
		}
		return w.write(records, nil)
	})
}

// Read returns the current header and rows; fs.ErrNotExist when absent
func (w *Wide) Read() ([]string, [][]string, error) {
	var (
		header []string
		data   [][]string
	)
	err := w.withLock(func() error {
		var err error
		header, data, err = readWorkbook(w.path)
		return err
	})
	return header, data, err
}

// Remove deletes the export file if present
func (w *Wide) Remove() error {
	return w.withLock(func() error {
		if err := os.Remove(w.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove export: %w", err)
		}
		return nil
	})
}

func (w *Wide) routeRow(rows []models.SegmentRow) map[string]string {
	first := rows[0]
	rec := map[string]string{
		"Full_Name":   first.FullName,
		"User_Type":   string(first.UserType),
		"Department":  first.Department,
		"Grade_Level": first.GradeLevel,
	}
	for _, row := range rows {
		i := row.SegmentIndex
		rec[groupColumn("Vector", i)] = strconv.FormatFloat(row.Distance, 'f', w.system.Precision(), 64)
		rec[groupColumn("Mode", i)] = string(row.TransportMode)
		rec[groupColumn("Start", i)] = row.Start.String()
		rec[groupColumn("End", i)] = row.End.String()
		rec[groupColumn("Time", i)] = strconv.Itoa(row.DurationSeconds)
		if row.Rating > 0 {
			rec[groupColumn("Rating", i)] = strconv.Itoa(row.Rating)
		} else {
			rec[groupColumn("Rating", i)] = ""
		}
	}
	return rec
}

func (w *Wide) write(records []map[string]string, previous []string) error {
	columns := UnionColumns(previous, records)

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), wideSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	headerRow := make([]interface{}, len(columns))
	for i, c := range columns {
		headerRow[i] = c
	}
	if err := f.SetSheetRow(wideSheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}

	for r, rec := range records {
		values := make([]interface{}, len(columns))
		for i, c := range columns {
			values[i] = cellValue(c, rec[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(wideSheet, cell, &values); err != nil {
			return fmt.Errorf("write export row %d: %w", r+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return replaceFile(w.path, buf.Bytes())
}

// UnionColumns orders the union of previous and all record keys: the
// identity prefix, then segment groups by index and field, then any other
// column in the order it was first seen
func UnionColumns(previous []string, records []map[string]string) []string {
	seen := map[string]bool{}
	var names []string
	add := func(c string) {
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		names = append(names, c)
	}
	for _, c := range previous {
		add(c)
	}
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(k)
		}
	}

	prefix := map[string]bool{}
	for _, p := range Prefix {
		prefix[p] = true
	}
	fieldOrder := map[string]int{}
	for i, f := range GroupFields {
		fieldOrder[f] = i
	}

	type grouped struct {
		name  string
		index int
		field int
	}
	var groups []grouped
	var other []string
	for _, n := range names {
		if prefix[n] {
			continue
		}
		if field, idx, ok := parseGroupColumn(n); ok {
			groups = append(groups, grouped{name: n, index: idx, field: fieldOrder[field]})
			continue
		}
		other = append(other, n)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].index != groups[j].index {
			return groups[i].index < groups[j].index
		}
		return groups[i].field < groups[j].field
	})

	columns := append([]string{}, Prefix...)
	for _, g := range groups {
		columns = append(columns, g.name)
	}
	return append(columns, other...)
}

// GroupCount returns the number of segment groups present in columns
func GroupCount(columns []string) int {
	max := 0
	for _, c := range columns {
		if _, idx, ok := parseGroupColumn(c); ok && idx > max {
			max = idx
		}
	}
	return max
}

func groupColumn(field string, index int) string {
	return field + " " + strconv.Itoa(index)
}

func parseGroupColumn(name string) (string, int, bool) {
	field, num, ok := strings.Cut(name, " ")
	if !ok {
		return "", 0, false
	}
	idx, err := strconv.Atoi(num)
	if err != nil || idx < 1 {
		return "", 0, false
	}
	for _, f := range GroupFields {
		if f == field {
			return field, idx, true
		}
	}
	return "", 0, false
}

func cellValue(column, value string) interface{} {
	if value == "" {
		return nil
	}
	if field, _, ok := parseGroupColumn(column); ok && numericFields[field] {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return value
}

func toMaps(header []string, data [][]string) []map[string]string {
	out := make([]map[string]string, 0, len(data))
	for _, row := range data {
		rec := make(map[string]string, len(header))
		for i, c := range header {
			if i < len(row) {
				rec[c] = row[i]
			} else {
				rec[c] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}

// readWorkbook loads the first sheet of an xlsx file as header plus rows
func readWorkbook(path string) ([]string, [][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, fmt.Errorf("read export: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rows[0], rows[1:], nil
}

// replaceFile writes data to a temp file next to path and renames it over path
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := bytes.NewReader(data).WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
