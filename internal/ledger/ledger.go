package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/walkmapper/walkmapper_core/internal/geo"
	"github.com/walkmapper/walkmapper_core/internal/models"
	"go.uber.org/zap"
)

// ErrEmpty is returned when the ledger holds no data rows
var ErrEmpty = errors.New("ledger is empty")

// Ledger is the append-only CSV record of every persisted segment.
// Writers are serialized in-process by a mutex and across processes by a
// lock file next to the ledger.
type Ledger struct {
	mu     sync.Mutex
	path   string
	system geo.System
	lock   *flock.Flock
	logger *zap.Logger
}

// Open prepares the ledger at path, running the header migration first
func Open(path string, sys geo.System, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}

	l := &Ledger{
		path:   path,
		system: sys,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}

	if err := l.withLock(func() error {
		_, err := Migrate(path, Header(sys), logger)
		return err
	}); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the ledger file location
func (l *Ledger) Path() string {
	return l.path
}

// System returns the coordinate system the ledger columns are named for
func (l *Ledger) System() geo.System {
	return l.system
}

func (l *Ledger) withLock(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	defer func() {
		if err := l.lock.Unlock(); err != nil {
			l.logger.Warn("failed to release ledger lock", zap.Error(err))
		}
	}()
	return fn()
}

// Append writes one line per row in a single write call
func (l *Ledger) Append(rows []models.SegmentRow) error {
	if len(rows) == 0 {
		return nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(FormatRow(row, l.system)); err != nil {
			return fmt.Errorf("encode ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode ledger rows: %w", err)
	}

	return l.withLock(func() error {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		terminated, err := endsWithNewline(f)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("inspect ledger: %w", err)
		}
		data := buf.Bytes()
		if !terminated {
			data = append([]byte{'\n'}, data...)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return fmt.Errorf("append ledger: %w", err)
		}
		return f.Close()
	})
}

// endsWithNewline reports whether f is empty or its last byte is a newline
func endsWithNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return true, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] == '\n', nil
}

// Records returns the header and data rows currently in the ledger.
// ErrEmpty is returned when the file is missing or has no data rows.
func (l *Ledger) Records() ([]string, [][]string, error) {
	var records [][]string
	err := l.withLock(func() error {
		f, err := os.Open(l.path)
		if err != nil {
			return err
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		records, err = r.ReadAll()
		return err
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrEmpty
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, ErrEmpty
	}
	return records[0], records[1:], nil
}

// MaxRouteID returns the largest Route_ID in the ledger, or 0 when it holds
// none. Rows whose Route_ID does not parse are skipped.
func (l *Ledger) MaxRouteID() (int64, error) {
	header, rows, err := l.Records()
	if errors.Is(err, ErrEmpty) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	col := -1
	for i, name := range header {
		if strings.TrimSpace(name) == "Route_ID" {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, nil
	}

	var maxID int64
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(row[col]), 10, 64)
		if err != nil {
			continue
		}
		if id > maxID {
			maxID = id
		}
	}
	return maxID, nil
}

// Reset truncates the ledger back to its canonical header
func (l *Ledger) Reset() error {
	return l.withLock(func() error {
		return writeFileAtomic(l.path, encodeHeader(Header(l.system)), nil)
	})
}
