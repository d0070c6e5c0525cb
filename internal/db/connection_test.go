package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnString(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		Database: "walkmapper",
		User:     "mapper",
		Password: "secret",
		SSLMode:  "require",
	}
	assert.Equal(t, "host=db.internal port=5433 dbname=walkmapper user=mapper password=secret sslmode=require", cfg.ConnString())
}

func TestConnectPostgresPingError(t *testing.T) {
	cfg := PostgresConfig{Host: "127.0.0.1", Port: 1, Database: "db", User: "user", SSLMode: "disable"}
	pool, err := ConnectPostgres(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, pool)
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "walkmapper.db")

	conn, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	defer conn.Close()

	var one int
	require.NoError(t, conn.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
	assert.FileExists(t, path)
}

func TestOpenSQLiteMemory(t *testing.T) {
	conn, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO t (v) VALUES (7)")
	require.NoError(t, err)

	var v int
	require.NoError(t, conn.QueryRow("SELECT v FROM t").Scan(&v))
	assert.Equal(t, 7, v)
}
