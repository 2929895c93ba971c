package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "SELECT id FROM posts WHERE user_id = ? AND title LIKE ? LIMIT ?"
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, "SELECT id FROM posts WHERE user_id = $1 AND title LIKE $2 LIMIT $3", Postgres.Rebind(q))
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("SQLite")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	d, err = DialectFor("pg")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestSQLiteDSNAddsPragmasOnce(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("a.db"))
	assert.Equal(t, "a.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("a.db?mode=rwc"))
	assert.Equal(t, "a.db?_pragma=foreign_keys(0)", sqliteDSN("a.db?_pragma=foreign_keys(0)"))
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := Open(SQLite, filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, conn, SQLite))
	require.NoError(t, Migrate(ctx, conn, SQLite))

	var n int
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users','posts','comments','likes','refresh_tokens')`).Scan(&n))
	assert.Equal(t, 5, n)
}

func TestSQLiteFoldIsUnicodeAware(t *testing.T) {
	assert.Equal(t, "fold(title)", SQLite.Fold("title"))
	assert.Equal(t, "lower(title)", Postgres.Fold("title"))

	conn, err := Open(SQLite, filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	defer conn.Close()

	var folded, builtin string
	require.NoError(t, conn.QueryRowContext(context.Background(),
		`SELECT fold('ÉCLAIR Ñ'), lower('ÉCLAIR Ñ')`).Scan(&folded, &builtin))
	assert.Equal(t, "éclair ñ", folded)
	assert.Equal(t, "Éclair Ñ", builtin)
}
