package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/walkmapper/walkmapper_core/internal/geo"
	"github.com/walkmapper/walkmapper_core/internal/models"
	"github.com/walkmapper/walkmapper_core/internal/session"
	"github.com/walkmapper/walkmapper_core/internal/store"
	"go.uber.org/zap"
)

// Sink names as they appear in a PersistReport
const (
	SinkLedger      = "ledger"
	SinkDatabase    = "database"
	SinkSession     = "session"
	SinkSpreadsheet = "spreadsheet"
)

// sinkOrder fixes the order of results in a report
var sinkOrder = []string{SinkLedger, SinkDatabase, SinkSession, SinkSpreadsheet}

// LedgerWriter is the flat-file source of truth
type LedgerWriter interface {
	Append(rows []models.SegmentRow) error
	Reset() error
}

// SpreadsheetWriter is the wide per-route export
type SpreadsheetWriter interface {
	Append(rows []models.SegmentRow) error
	Remove() error
}

// Sinks groups the persistence targets. Only Ledger is required.
type Sinks struct {
	Ledger      LedgerWriter
	Store       store.SegmentStore
	Registry    session.Registry
	Spreadsheet SpreadsheetWriter
}

// Coordinator fans a finished route out to every configured sink
type Coordinator struct {
	sinks  Sinks
	system geo.System
	georef *geo.Georef
	logger *zap.Logger
	now    func() time.Time
}

// NewCoordinator builds a coordinator; georef may be nil
func NewCoordinator(sinks Sinks, sys geo.System, georef *geo.Georef, logger *zap.Logger) (*Coordinator, error) {
	if sinks.Ledger == nil {
		return nil, errors.New("ledger sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		sinks:  sinks,
		system: sys,
		georef: georef,
		logger: logger,
		now:    time.Now,
	}, nil
}

// System returns the coordinate system rows are derived in
func (c *Coordinator) System() geo.System {
	return c.system
}

// Georef returns the configured pixel projection, or nil
func (c *Coordinator) Georef() *geo.Georef {
	return c.georef
}

type sinkOutcome struct {
	sink      string
	err       error
	skipped   bool
	sessionID string
}

// Persist writes route to all sinks concurrently. A failing sink never stops
// its siblings; Success reflects the ledger alone.
func (c *Coordinator) Persist(ctx context.Context, route models.Route) models.PersistReport {
	rows := BuildRows(route, c.system, c.georef, c.now())

	jobs := map[string]func() sinkOutcome{
		SinkLedger: func() sinkOutcome {
			return sinkOutcome{err: c.sinks.Ledger.Append(rows)}
		},
		SinkDatabase: func() sinkOutcome {
			if c.sinks.Store == nil {
				return sinkOutcome{skipped: true}
			}
			return sinkOutcome{err: c.sinks.Store.InsertSegments(ctx, rows)}
		},
		SinkSession: func() sinkOutcome {
			if c.sinks.Registry == nil {
				return sinkOutcome{skipped: true}
			}
			profile := route.Profile
			id, err := c.sinks.Registry.Create(ctx, models.SessionPayload{
				UserData: &profile,
				Vectors:  []models.Route{route},
			})
			return sinkOutcome{err: err, sessionID: id}
		},
		SinkSpreadsheet: func() sinkOutcome {
			if c.sinks.Spreadsheet == nil {
				return sinkOutcome{skipped: true}
			}
			return sinkOutcome{err: c.sinks.Spreadsheet.Append(rows)}
		},
	}

	resultChan := make(chan sinkOutcome, len(jobs))
	var wg sync.WaitGroup

	for name, job := range jobs {
		wg.Add(1)
		go func(name string, job func() sinkOutcome) {
			defer wg.Done()
			out := job()
			out.sink = name
			resultChan <- out
		}(name, job)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	outcomes := make(map[string]sinkOutcome, len(jobs))
	for out := range resultChan {
		if out.err != nil {
			c.logger.Error("sink write failed",
				zap.String("sink", out.sink),
				zap.Int64("route_id", route.ID),
				zap.Error(out.err))
		}
		outcomes[out.sink] = out
	}

	report := models.PersistReport{RouteID: route.ID}
	for _, name := range sinkOrder {
		out := outcomes[name]
		result := models.SinkResult{Sink: name, Status: models.SinkOK}
		switch {
		case out.skipped:
			result.Status = models.SinkSkipped
		case out.err != nil:
			result.Status = models.SinkFailed
			result.Error = out.err.Error()
		}
		if name == SinkLedger {
			report.Success = result.Status == models.SinkOK
		}
		if name == SinkSession && result.Status == models.SinkOK {
			report.SessionID = out.sessionID
		}
		report.Sinks = append(report.Sinks, result)
	}

	c.logger.Info("route persisted",
		zap.Int64("route_id", route.ID),
		zap.Int("segments", len(rows)),
		zap.Bool("success", report.Success))
	return report
}

// Clear resets every sink: ledger back to its header, table truncated, wide
// export removed and registry emptied. All sinks are attempted.
func (c *Coordinator) Clear(ctx context.Context) error {
	var errs []error
	if err := c.sinks.Ledger.Reset(); err != nil {
		errs = append(errs, fmt.Errorf("reset ledger: %w", err))
	}
	if c.sinks.Store != nil {
		if err := c.sinks.Store.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear database: %w", err))
		}
	}
	if c.sinks.Spreadsheet != nil {
		if err := c.sinks.Spreadsheet.Remove(); err != nil {
			errs = append(errs, fmt.Errorf("remove spreadsheet: %w", err))
		}
	}
	if c.sinks.Registry != nil {
		if err := c.sinks.Registry.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear sessions: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		c.logger.Error("clear persisted data failed", zap.Error(err))
		return err
	}
	c.logger.Info("persisted data cleared")
	return nil
}
