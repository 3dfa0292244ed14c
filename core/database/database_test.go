package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := Config{Enabled: true}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "timebot.db", cfg.Path)
	assert.Equal(t, 1, cfg.MaxConnections)
	assert.Equal(t, "sqlite://timebot.db", cfg.MigrateURL())

	pg := Config{Enabled: true, Driver: "Postgres", Host: "db", Name: "timebot", User: "bot", Password: "pw"}
	require.NoError(t, pg.Normalize())
	assert.Equal(t, "5432", pg.Port)
	assert.Equal(t, "postgres://bot:pw@db:5432/timebot?sslmode=disable", pg.MigrateURL())
	assert.Contains(t, pg.DSN(), "dbname=timebot")
}

func TestNormalizeRejects(t *testing.T) {
	bad := Config{Enabled: true, Driver: "mysql"}
	assert.Error(t, bad.Normalize())

	pg := Config{Enabled: true, Driver: DriverPostgres}
	assert.Error(t, pg.Normalize())

	off := Config{Driver: "mysql"}
	assert.NoError(t, off.Normalize(), "disabled config is not validated")
}

func TestMigrationFileHelpers(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000002_voice.up.sql", "000001_entries.up.sql", "000001_entries.down.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	files := listMigrationFiles(dir)
	assert.Equal(t, []string{"000001_entries.up.sql", "000002_voice.up.sql"}, files)
	assert.Equal(t, uint64(2), parseVersion("000002_voice.up.sql"))
	assert.Equal(t, []string{"000002_voice.up.sql"}, selectApplied(files, 1, 2))
	assert.Empty(t, selectApplied(files, 2, 2))
}

func TestMigrationsPath(t *testing.T) {
	p, err := MigrationsPath(Config{Driver: DriverSQLite, MigrationsDir: "/srv/migrations"})
	require.NoError(t, err)
	assert.Equal(t, "/srv/migrations/sqlite", p)
}
