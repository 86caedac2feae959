package delta

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedTable(t *testing.T, db *sql.DB, table string, rows map[string]string) {
	t.Helper()
	_, err := db.Exec(`CREATE TABLE "` + table + `" (pk TEXT PRIMARY KEY, hash TEXT)`)
	require.NoError(t, err)
	for pk, hash := range rows {
		_, err := db.Exec(`INSERT INTO "`+table+`" (pk, hash) VALUES (?, ?)`, pk, hash)
		require.NoError(t, err)
	}
}

func TestRelationalDiffEngine_ComputeDelta(t *testing.T) {
	db := openTestDB(t)
	seedTable(t, db, "previous", map[string]string{"1": "h1", "2": "h2", "3": "h3"})
	seedTable(t, db, "current", map[string]string{"1": "h1", "2": "h2-changed", "4": "h4"})

	engine := NewRelationalDiffEngine(db, RelationalTables{Current: `"current"`, Previous: `"previous"`})
	result, err := engine.ComputeDelta(context.Background(), nil, nil, []string{"id"})
	require.NoError(t, err)

	added, updated, removed := result.Stats()
	require.Equal(t, 1, added)
	require.Equal(t, 1, updated)
	require.Equal(t, 1, removed)

	require.Equal(t, "4", result.Added[0].Fields[0].Value)
	require.Equal(t, "2", result.Updated[0].Fields[0].Value)
	require.Equal(t, "3", result.Removed[0].Fields[0].Value)
}

func TestRelationalDiffEngine_RequiresPrimaryKey(t *testing.T) {
	db := openTestDB(t)
	seedTable(t, db, "previous", map[string]string{})
	seedTable(t, db, "current", map[string]string{})

	engine := NewRelationalDiffEngine(db, RelationalTables{Current: `"current"`, Previous: `"previous"`})
	_, err := engine.ComputeDelta(context.Background(), nil, nil, nil)
	require.Error(t, err)
}
