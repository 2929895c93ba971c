package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
)

// fold lowercases text the way strings.ToLower does. SQLite's own lower()
// only folds ASCII, which would make search disagree with the file store.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("fold", 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
}

// Dialect captures what differs between the supported SQL engines.
type Dialect struct {
	Name   string
	Driver string
}

var (
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite"}
	Postgres = Dialect{Name: "postgres", Driver: "pgx"}
)

// Fold wraps a text expression in the dialect's Unicode lowercase function.
// On Postgres lower() follows the database's LC_CTYPE.
func (d Dialect) Fold(expr string) string {
	if d.Name == SQLite.Name {
		return "fold(" + expr + ")"
	}
	return "lower(" + expr + ")"
}

func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case SQLite.Name, "sqlite3":
		return SQLite, nil
	case Postgres.Name, "pg", "pgx":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unknown sql dialect %q", name)
}

// Rebind rewrites ? placeholders into the dialect's form.
func (d Dialect) Rebind(q string) string {
	if d.Name != Postgres.Name {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func Open(d Dialect, dsn string) (*sql.DB, error) {
	if d.Name == SQLite.Name {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if d.Name == SQLite.Name {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// sqliteDSN turns on foreign keys and a busy timeout for every connection.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, s := range schema(d) {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate %s: %w", d.Name, err)
		}
	}
	return nil
}

func schema(d Dialect) []string {
	id, ts, boolean, falseLit := "INTEGER PRIMARY KEY AUTOINCREMENT", "DATETIME", "INTEGER", "0"
	if d.Name == Postgres.Name {
		id, ts, boolean, falseLit = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ", "BOOLEAN", "FALSE"
	}
	ref := "INTEGER"
	if d.Name == Postgres.Name {
		ref = "BIGINT"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS users(
			id ` + id + `,
			email TEXT NOT NULL,
			nickname TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			profile_image TEXT,
			is_deleted ` + boolean + ` NOT NULL DEFAULT ` + falseLit + `,
			deleted_at ` + ts + `,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users(lower(email))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_nickname_key ON users(lower(nickname))`,
		`CREATE TABLE IF NOT EXISTS posts(
			id ` + id + `,
			user_id ` + ref + ` NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			views ` + ref + ` NOT NULL DEFAULT 0 CHECK(views >= 0),
			likes ` + ref + ` NOT NULL DEFAULT 0 CHECK(likes >= 0),
			comments_count ` + ref + ` NOT NULL DEFAULT 0 CHECK(comments_count >= 0),
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS comments(
			id ` + id + `,
			post_id ` + ref + ` NOT NULL REFERENCES posts(id),
			user_id ` + ref + ` NOT NULL REFERENCES users(id),
			content TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS comments_post_idx ON comments(post_id)`,
		`CREATE TABLE IF NOT EXISTS likes(
			id ` + id + `,
			post_id ` + ref + ` NOT NULL REFERENCES posts(id),
			user_id ` + ref + ` NOT NULL REFERENCES users(id),
			created_at ` + ts + ` NOT NULL,
			CONSTRAINT likes_post_user_key UNIQUE(post_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens(
			id TEXT PRIMARY KEY,
			user_id ` + ref + ` NOT NULL REFERENCES users(id),
			token_hash TEXT NOT NULL UNIQUE,
			expires_at ` + ts + ` NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS refresh_tokens_user_idx ON refresh_tokens(user_id)`,
	}
}
