package docstore

import (
	"context"

	"board/internal/apperr"
	"board/internal/models"
	"board/internal/repository"
)

type RefreshTokens struct{ c *collections }

var _ repository.RefreshTokens = (*RefreshTokens)(nil)

func (r *RefreshTokens) Replace(ctx context.Context, rec models.RefreshToken) error {
	return r.c.tokens.Mutate(ctx, func(docs []models.RefreshToken) ([]models.RefreshToken, bool, error) {
		kept := docs[:0]
		for _, t := range docs {
			if t.UserID != rec.UserID {
				kept = append(kept, t)
			}
		}
		return append(kept, rec), true, nil
	})
}

func (r *RefreshTokens) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	t, ok, err := r.c.tokens.FindOne(ctx, func(t models.RefreshToken) bool { return t.TokenHash == hash })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("refresh token", nil)
	}
	return &t, nil
}

func (r *RefreshTokens) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	n, err := r.c.tokens.Delete(ctx, func(t models.RefreshToken) bool { return t.TokenHash == hash })
	return n > 0, err
}

func (r *RefreshTokens) DeleteByUser(ctx context.Context, userID int64) (int, error) {
	return r.c.tokens.Delete(ctx, func(t models.RefreshToken) bool { return t.UserID == userID })
}
