package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"board/internal/apperr"
	"board/internal/models"
	"board/internal/repository"
)

type RefreshTokens struct{ c *conn }

var _ repository.RefreshTokens = (*RefreshTokens)(nil)

func (r *RefreshTokens) Replace(ctx context.Context, rec models.RefreshToken) error {
	return r.c.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.c.exec(ctx, tx, "DELETE FROM refresh_tokens WHERE user_id = ?", rec.UserID); err != nil {
			return err
		}
		_, err := r.c.exec(ctx, tx,
			"INSERT INTO refresh_tokens(id, user_id, token_hash, expires_at, created_at) VALUES(?, ?, ?, ?, ?)",
			rec.ID, rec.UserID, rec.TokenHash, rec.ExpiresAt.UTC(), rec.CreatedAt.UTC())
		return err
	})
}

func (r *RefreshTokens) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	err := r.c.db.QueryRowContext(ctx, r.c.q(
		"SELECT id, user_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE token_hash = ?"), hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("refresh token", nil)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RefreshTokens) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	n, err := r.c.exec(ctx, r.c.db, "DELETE FROM refresh_tokens WHERE token_hash = ?", hash)
	return n > 0, err
}

func (r *RefreshTokens) DeleteByUser(ctx context.Context, userID int64) (int, error) {
	return r.c.exec(ctx, r.c.db, "DELETE FROM refresh_tokens WHERE user_id = ?", userID)
}
