package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_add_index.up.sql":      {Data: []byte("CREATE INDEX i ON t (c)")},
		"m/002_add_index.down.sql":    {Data: []byte("DROP INDEX i")},
		"m/001_create_table.up.sql":   {Data: []byte("CREATE TABLE t (c INT)")},
		"m/001_create_table.down.sql": {Data: []byte("DROP TABLE t")},
		"m/README.md":                 {Data: []byte("ignored")},
		"m/abc_not_versioned.up.sql":  {Data: []byte("ignored")},
		"m/003_no_direction.sql":      {Data: []byte("ignored")},
	}

	migrations, err := ParseMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "create_table", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE t (c INT)", migrations[0].UpSQL)
	assert.Equal(t, "DROP TABLE t", migrations[0].DownSQL)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, "add_index", migrations[1].Name)
}

func TestParseMigrations_Embedded(t *testing.T) {
	migrations, err := ParseMigrations(embeddedMigrations, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "create_kv_entries", migrations[0].Name)
	assert.Contains(t, migrations[0].UpSQL, "kv_entries")
	assert.NotEmpty(t, migrations[0].DownSQL)
}

func TestMigrator_UpAndDown(t *testing.T) {
	skipIfNoPostgres(t)

	ctx := context.Background()
	pool, err := NewPool(ctx, testDBConfig())
	require.NoError(t, err)
	defer pool.Close()

	_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations")
	_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS migrator_test")

	migrator := NewMigratorWithMigrations(pool, []Migration{
		{
			Version: 1,
			Name:    "create_migrator_test",
			UpSQL:   "CREATE TABLE migrator_test (id SERIAL PRIMARY KEY)",
			DownSQL: "DROP TABLE migrator_test",
		},
		{
			Version: 2,
			Name:    "add_name",
			UpSQL:   "ALTER TABLE migrator_test ADD COLUMN name TEXT",
			DownSQL: "ALTER TABLE migrator_test DROP COLUMN name",
		},
	})

	applied, err := migrator.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = migrator.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	require.NoError(t, migrator.Down(ctx))
	version, err := migrator.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS migrator_test")
	_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations")
}
