package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/walkmapper/walkmapper_core/internal/capture"
	"github.com/walkmapper/walkmapper_core/internal/db"
	"github.com/walkmapper/walkmapper_core/internal/geo"
	"github.com/walkmapper/walkmapper_core/internal/session"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Session backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Server contains HTTP settings.
type Server struct {
	Port           string   `toml:"port"`
	BodyLimitKB    int      `toml:"body_limit_kb"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Capture selects the deployment variant.
type Capture struct {
	Variant string `toml:"variant"`
}

// Storage contains the file and database sinks.
type Storage struct {
	DataDir           string            `toml:"data_dir"`
	LedgerPath        string            `toml:"ledger_path"`
	WideExportEnabled bool              `toml:"wide_export_enabled"`
	WideExportPath    string            `toml:"wide_export_path"`
	Driver            string            `toml:"driver"`
	SQLitePath        string            `toml:"sqlite_path"`
	Postgres          db.PostgresConfig `toml:"postgres"`
}

// Session contains the session registry backend.
type Session struct {
	Backend string              `toml:"backend"`
	Redis   session.RedisConfig `toml:"redis"`
}

// Throttle limits write requests per client address.
type Throttle struct {
	Enabled       bool `toml:"enabled"`
	WritesPerMin  int  `toml:"writes_per_minute"`
	WindowSeconds int  `toml:"window_seconds"`
}

// Logging contains log output settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full service configuration.
type Config struct {
	Server   Server     `toml:"server"`
	Capture  Capture    `toml:"capture"`
	Storage  Storage    `toml:"storage"`
	Session  Session    `toml:"session"`
	Throttle Throttle   `toml:"throttle"`
	Georef   geo.Georef `toml:"georef"`
	Logging  Logging    `toml:"logging"`
}

// Default returns a configuration that runs locally with no external services.
func Default() Config {
	return Config{
		Server: Server{
			Port:           "8080",
			BodyLimitKB:    1024,
			AllowedOrigins: []string{"*"},
		},
		Capture: Capture{Variant: capture.DefaultVariant},
		Storage: Storage{
			DataDir:           "data",
			WideExportEnabled: true,
			Driver:            DriverSQLite,
			Postgres: db.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "walkmapper",
				User:     "postgres",
				SSLMode:  "disable",
				MinConns: 2,
				MaxConns: 10,
			},
		},
		Session: Session{
			Backend: BackendMemory,
			Redis: session.RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "walkmapper",
			},
		},
		Throttle: Throttle{
			Enabled:       false,
			WritesPerMin:  60,
			WindowSeconds: 60,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the optional TOML file at path, then .env, then environment
// overrides. The result is normalized and validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// .env is optional; existing environment wins
	_ = godotenv.Load()

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Capture.Variant = getEnv("WALKMAPPER_VARIANT", c.Capture.Variant)

	c.Storage.DataDir = getEnv("DATA_DIR", c.Storage.DataDir)
	c.Storage.LedgerPath = getEnv("LEDGER_PATH", c.Storage.LedgerPath)
	c.Storage.WideExportPath = getEnv("WIDE_EXPORT_PATH", c.Storage.WideExportPath)
	c.Storage.WideExportEnabled = getEnvBool("WIDE_EXPORT_ENABLED", c.Storage.WideExportEnabled)
	c.Storage.Driver = getEnv("STORE_DRIVER", c.Storage.Driver)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)

	pg := &c.Storage.Postgres
	pg.Host = getEnv("DB_HOST", pg.Host)
	pg.Port = getEnvInt("DB_PORT", pg.Port)
	pg.Database = getEnv("DB_NAME", pg.Database)
	pg.User = getEnv("DB_USER", pg.User)
	pg.Password = getEnv("DB_PASSWORD", pg.Password)
	pg.SSLMode = getEnv("DB_SSLMODE", pg.SSLMode)
	pg.MinConns = int32(getEnvInt("DB_MIN_CONNS", int(pg.MinConns)))
	pg.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(pg.MaxConns)))

	c.Session.Backend = getEnv("SESSION_BACKEND", c.Session.Backend)
	rc := &c.Session.Redis
	rc.Addr = getEnv("REDIS_ADDR", rc.Addr)
	rc.Password = getEnv("REDIS_PASSWORD", rc.Password)
	rc.DB = getEnvInt("REDIS_DB", rc.DB)
	rc.TLS = getEnvBool("REDIS_TLS_ENABLED", rc.TLS)

	c.Throttle.Enabled = getEnvBool("THROTTLE_ENABLED", c.Throttle.Enabled)
	c.Throttle.WritesPerMin = getEnvInt("THROTTLE_WRITES_PER_MINUTE", c.Throttle.WritesPerMin)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

func (c *Config) normalize() {
	c.Capture.Variant = strings.ToLower(strings.TrimSpace(c.Capture.Variant))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "."
	}
	if c.Storage.LedgerPath == "" {
		c.Storage.LedgerPath = filepath.Join(c.Storage.DataDir, "vector_data.csv")
	}
	if c.Storage.WideExportPath == "" {
		c.Storage.WideExportPath = filepath.Join(c.Storage.DataDir, "route_data.xlsx")
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(c.Storage.DataDir, "walkmapper.db")
	}
	if c.Throttle.WindowSeconds <= 0 {
		c.Throttle.WindowSeconds = 60
	}
}

// Validate checks that the configuration can start the service.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if !knownVariant(c.Capture.Variant) {
		errs = append(errs, fmt.Errorf("capture.variant %q is not a known variant", c.Capture.Variant))
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverNone:
	case DriverPostgres:
		if c.Storage.Postgres.Host == "" || c.Storage.Postgres.Database == "" {
			errs = append(errs, errors.New("storage.postgres host and database are required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be sqlite, postgres or none", c.Storage.Driver))
	}
	switch c.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Session.Redis.Addr == "" {
			errs = append(errs, errors.New("session.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.backend %q must be memory or redis", c.Session.Backend))
	}
	if c.Throttle.Enabled {
		if c.Session.Redis.Addr == "" {
			errs = append(errs, errors.New("throttle requires session.redis.addr"))
		}
		if c.Throttle.WritesPerMin <= 0 {
			errs = append(errs, errors.New("throttle.writes_per_minute must be positive"))
		}
	}
	if c.Georef != (geo.Georef{}) && !c.Georef.Configured() {
		errs = append(errs, errors.New("georef needs height, width and distinct bounds"))
	}

	return errors.Join(errs...)
}

// Variant resolves the configured capture variant
func (c *Config) Variant() capture.Variant {
	return capture.GetVariant(c.Capture.Variant)
}

// GeorefOrNil returns the georef only when one is configured
func (c *Config) GeorefOrNil() *geo.Georef {
	if !c.Georef.Configured() {
		return nil
	}
	g := c.Georef
	return &g
}

func knownVariant(name string) bool {
	for _, v := range capture.AllVariants() {
		if v.Name == name {
			return true
		}
	}
	return false
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
