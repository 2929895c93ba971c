// Package sqlstore implements the repository contracts on database/sql.
// Counters are single-row atomic UPDATEs and multi-step operations such as
// the post cascade run in one transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"board/internal/apperr"
	"board/internal/db"
	"board/internal/logger"
	"board/internal/repository"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Option func(*conn)

func WithClock(now func() time.Time) Option {
	return func(c *conn) { c.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *conn) { c.log = l }
}

type conn struct {
	db      *sql.DB
	dialect db.Dialect
	now     func() time.Time
	log     *zap.Logger
}

// New wraps an open, migrated database. Closing the returned store closes sqlDB.
func New(sqlDB *sql.DB, d db.Dialect, opts ...Option) *repository.Store {
	c := &conn{db: sqlDB, dialect: d, now: time.Now, log: logger.Named("sqlstore")}
	for _, o := range opts {
		o(c)
	}
	return repository.NewStore(
		&Users{c: c},
		&Posts{c: c},
		&Comments{c: c},
		&Likes{c: c},
		&RefreshTokens{c: c},
		sqlDB.Close,
	)
}

// stamp truncates to microseconds, the finest precision both engines keep.
func (c *conn) stamp() time.Time { return c.now().UTC().Truncate(time.Microsecond) }

func (c *conn) q(query string) string { return c.dialect.Rebind(query) }

func (c *conn) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (c *conn) exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, c.q(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (c *conn) count(ctx context.Context, q querier, query string, args ...any) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, c.q(query), args...).Scan(&n)
	return n, err
}

// exec runs a statement and returns the affected row count.
func (c *conn) exec(ctx context.Context, q querier, query string, args ...any) (int, error) {
	res, err := q.ExecContext(ctx, c.q(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// conflictFrom maps a unique violation onto the field its index guards.
func conflictFrom(err error) error {
	msg := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg = pgErr.ConstraintName
	}
	switch {
	case strings.Contains(msg, "email"):
		return apperr.Conflict("email")
	case strings.Contains(msg, "nickname"):
		return apperr.Conflict("nickname")
	case strings.Contains(msg, "likes"):
		return apperr.Conflict("like")
	}
	return apperr.Conflict("unique")
}

type scanner interface {
	Scan(dest ...any) error
}

// pageQuery runs the count and the page select in one transaction so the
// total and the items come from the same snapshot.
func pageQuery[T any](ctx context.Context, c *conn, p repository.Page, where string, args []any, order string, cols string, table string, scan func(scanner) (T, error)) ([]T, int, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}
	var (
		items []T
		total int
	)
	err := c.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		total, err = c.count(ctx, tx, "SELECT COUNT(*) FROM "+table+where, args...)
		if err != nil {
			return err
		}
		pageArgs := append(append([]any{}, args...), p.Limit, (p.Page-1)*p.Limit)
		rows, err := tx.QueryContext(ctx, c.q("SELECT "+cols+" FROM "+table+where+" ORDER BY "+order+" LIMIT ? OFFSET ?"), pageArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		items = []T{}
		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("page %s: %w", table, err)
	}
	return items, total, nil
}

func likePattern(term string) string {
	return "%" + repository.EscapeLike(strings.ToLower(term)) + "%"
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
