package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walkmapper/walkmapper_core/internal/geo"
)

// chdir moves into dir for the duration of the test
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "campus_walk_rated", cfg.Capture.Variant)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, filepath.Join("data", "vector_data.csv"), cfg.Storage.LedgerPath)
	assert.Equal(t, filepath.Join("data", "walkmapper.db"), cfg.Storage.SQLitePath)
	assert.Nil(t, cfg.GeorefOrNil())
}

func TestLoadTOMLFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "walkmapper.toml")
	content := `
[server]
port = "9090"

[capture]
variant = "GEO_SURVEY"

[storage]
data_dir = "/srv/walkmapper"
driver = "postgres"

[storage.postgres]
host = "pg.internal"
database = "routes"

[georef]
north = 42.0
south = 41.9
east = -87.5
west = -87.7
height = 800
width = 1200
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "geo_survey", cfg.Capture.Variant)
	assert.Equal(t, geo.Geographic, cfg.Variant().System)
	assert.Equal(t, "/srv/walkmapper/vector_data.csv", cfg.Storage.LedgerPath)
	assert.Equal(t, "pg.internal", cfg.Storage.Postgres.Host)
	assert.Equal(t, 5432, cfg.Storage.Postgres.Port)
	require.NotNil(t, cfg.GeorefOrNil())
	assert.Equal(t, 1200.0, cfg.GeorefOrNil().Width)
}

func TestEnvOverridesFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "7000")
	t.Setenv("STORE_DRIVER", "none")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_TLS_ENABLED", "true")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, DriverNone, cfg.Storage.Driver)
	assert.Equal(t, BackendRedis, cfg.Session.Backend)
	assert.Equal(t, "cache:6380", cfg.Session.Redis.Addr)
	assert.True(t, cfg.Session.Redis.TLS)
	assert.Equal(t, 6543, cfg.Storage.Postgres.Port)
}

func TestDotEnvIsLoaded(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WALKMAPPER_VARIANT=campus_walk\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("WALKMAPPER_VARIANT") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "campus_walk", cfg.Capture.Variant)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default is valid", mutate: func(*Config) {}},
		{name: "unknown variant", mutate: func(c *Config) { c.Capture.Variant = "bus_tracker" }, wantErr: "capture.variant"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mysql" }, wantErr: "storage.driver"},
		{name: "unknown backend", mutate: func(c *Config) { c.Session.Backend = "etcd" }, wantErr: "session.backend"},
		{name: "empty port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server.port"},
		{name: "half georef", mutate: func(c *Config) { c.Georef.North = 1 }, wantErr: "georef"},
		{name: "throttle without limit", mutate: func(c *Config) {
			c.Throttle.Enabled = true
			c.Throttle.WritesPerMin = 0
		}, wantErr: "throttle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseErrorIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport = 1"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
