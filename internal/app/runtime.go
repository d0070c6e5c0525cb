package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/walkmapper/walkmapper_core/internal/capture"
	"github.com/walkmapper/walkmapper_core/internal/config"
	"github.com/walkmapper/walkmapper_core/internal/db"
	"github.com/walkmapper/walkmapper_core/internal/export"
	"github.com/walkmapper/walkmapper_core/internal/ledger"
	"github.com/walkmapper/walkmapper_core/internal/persist"
	"github.com/walkmapper/walkmapper_core/internal/session"
	"github.com/walkmapper/walkmapper_core/internal/store"
	"go.uber.org/zap"
)

// Runtime is the set of opened sinks and services one process works with
type Runtime struct {
	Config      *config.Config
	Logger      *zap.Logger
	Variant     capture.Variant
	Ledger      *ledger.Ledger
	Store       store.SegmentStore // nil when the driver is "none"
	Wide        *export.Wide       // nil when the wide export is disabled
	Registry    session.Registry
	Redis       *redis.Client // nil unless a component needs Redis
	Coordinator *persist.Coordinator
	Exporter    *export.LedgerExporter
	Checks      map[string]func(ctx context.Context) error

	closers []func() error
}

// Build opens every sink named in cfg. On error anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (rt *Runtime, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	variant := cfg.Variant()
	rt = &Runtime{
		Config:  cfg,
		Logger:  logger,
		Variant: variant,
		Checks:  make(map[string]func(ctx context.Context) error),
	}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	rt.Ledger, err = ledger.Open(cfg.Storage.LedgerPath, variant.System, logger)
	if err != nil {
		return rt, fmt.Errorf("open ledger: %w", err)
	}
	logger.Info("ledger ready", zap.String("path", rt.Ledger.Path()), zap.String("system", string(variant.System)))

	if err = rt.openStore(ctx); err != nil {
		return rt, err
	}

	if cfg.Storage.WideExportEnabled {
		rt.Wide = export.NewWide(cfg.Storage.WideExportPath, variant.System, logger)
	}

	if cfg.Session.Backend == config.BackendRedis || cfg.Throttle.Enabled {
		rt.Redis, err = session.NewClient(ctx, cfg.Session.Redis)
		if err != nil {
			return rt, err
		}
		rt.closers = append(rt.closers, rt.Redis.Close)
		rt.Checks["redis"] = session.NewRedis(rt.Redis, cfg.Session.Redis.KeyPrefix).HealthCheck
		logger.Info("redis connection established", zap.String("addr", cfg.Session.Redis.Addr))
	}

	switch cfg.Session.Backend {
	case config.BackendRedis:
		rt.Registry = session.NewRedis(rt.Redis, cfg.Session.Redis.KeyPrefix)
	default:
		rt.Registry = session.NewMemory()
	}

	sinks := persist.Sinks{Ledger: rt.Ledger, Store: rt.Store, Registry: rt.Registry}
	if rt.Wide != nil {
		sinks.Spreadsheet = rt.Wide
	}
	rt.Coordinator, err = persist.NewCoordinator(sinks, variant.System, cfg.GeorefOrNil(), logger)
	if err != nil {
		return rt, err
	}

	rt.Exporter = export.NewLedgerExporter(rt.Store, rt.Ledger, logger)
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context) error {
	cfg := rt.Config.Storage
	switch cfg.Driver {
	case config.DriverNone:
		rt.Logger.Info("relational store disabled")
		return nil
	case config.DriverPostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		rt.Store = store.NewPostgres(pool)
		rt.Checks["database"] = pool.Ping
	default:
		conn, err := db.OpenSQLite(cfg.SQLitePath, rt.Logger)
		if err != nil {
			return err
		}
		rt.Store = store.NewSQLite(conn)
		rt.Checks["database"] = conn.PingContext
	}
	rt.closers = append(rt.closers, rt.Store.Close)

	if err := rt.Store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	rt.Logger.Info("relational store ready", zap.String("driver", cfg.Driver))
	return nil
}

// NewManager builds a capture manager whose counter continues after the
// highest route id already persisted. The relational store is asked first;
// without one the ledger's Route_ID column is scanned.
func (rt *Runtime) NewManager(ctx context.Context) (*capture.Manager, error) {
	counter := &capture.Counter{}
	source := "store"
	var last int64
	var err error
	if rt.Store != nil {
		last, err = rt.Store.MaxRouteID(ctx)
	} else {
		source = "ledger"
		last, err = rt.Ledger.MaxRouteID()
	}
	if err != nil {
		return nil, fmt.Errorf("seed route counter: %w", err)
	}
	counter.Seed(last)
	rt.Logger.Info("route counter seeded", zap.Int64("last_route_id", last), zap.String("source", source))
	return capture.NewManager(rt.Variant, counter, rt.Coordinator, rt.Logger), nil
}

// Close releases everything Build opened, newest first
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
