package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hireline/internal/db"
	"hireline/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	current, err := migrate.Current(conn)
	require.NoError(t, err)
	require.Equal(t, 0, current)

	require.NoError(t, migrate.Migrate(conn))
	require.NoError(t, migrate.Migrate(conn))

	latest, err := migrate.Latest()
	require.NoError(t, err)
	require.GreaterOrEqual(t, latest, 1)
	current, err = migrate.Current(conn)
	require.NoError(t, err)
	require.Equal(t, latest, current)

	history, err := migrate.History(conn)
	require.NoError(t, err)
	require.Len(t, history, latest)
	require.Equal(t, "0001_init.sql", history[0].Name)
	require.NotEmpty(t, history[0].AppliedAt)

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='settlements'`).Scan(&n))
	require.Equal(t, 1, n)
}
