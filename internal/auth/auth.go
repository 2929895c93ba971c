// Package auth holds password hashing, the access and refresh token service
// and the request guard built on top of them.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"board/internal/apperr"
	"board/internal/logger"
	"board/internal/models"
	"board/internal/repository"
)

const refreshTokenBytes = 32

type TokenConfig struct {
	Secret     []byte
	Algorithm  string // HS256, HS384 or HS512
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenOption func(*Tokens)

// WithClock replaces time.Now for issuing and verifying tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(t *Tokens) { t.now = now }
}

func WithLogger(l *zap.Logger) TokenOption {
	return func(t *Tokens) { t.log = l }
}

// Tokens issues stateless access tokens and server-tracked refresh tokens.
// A user holds at most one live refresh token; issuing a new one replaces it.
type Tokens struct {
	cfg     TokenConfig
	method  jwt.SigningMethod
	parser  *jwt.Parser
	refresh repository.RefreshTokens
	now     func() time.Time
	log     *zap.Logger
}

func NewTokens(cfg TokenConfig, refresh repository.RefreshTokens, opts ...TokenOption) (*Tokens, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(strings.ToUpper(cfg.Algorithm)).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("signing algorithm %q is not HMAC", cfg.Algorithm)
	}
	t := &Tokens{
		cfg:     cfg,
		method:  method,
		refresh: refresh,
		now:     time.Now,
		log:     logger.Named("tokens"),
	}
	for _, o := range opts {
		o(t)
	}
	t.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return t.now() }),
	)
	return t, nil
}

// Pair is what login and refresh hand back to the client.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// IssuePair creates an access token and a fresh refresh token for userID.
func (t *Tokens) IssuePair(ctx context.Context, userID int64) (*Pair, error) {
	access, accessExp, err := t.CreateAccessToken(strconv.FormatInt(userID, 10), nil)
	if err != nil {
		return nil, err
	}
	refresh, rec, err := t.CreateRefreshToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:      access,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// CreateRefreshToken returns a new opaque token for userID and supersedes any
// earlier one. Only the digest is persisted.
func (t *Tokens) CreateRefreshToken(ctx context.Context, userID int64) (string, *models.RefreshToken, error) {
	plain, err := generateOpaque(refreshTokenBytes)
	if err != nil {
		return "", nil, err
	}
	now := t.now().UTC()
	rec := models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: digest(plain),
		ExpiresAt: now.Add(t.cfg.RefreshTTL).Truncate(time.Microsecond),
		CreatedAt: now.Truncate(time.Microsecond),
	}
	if err := t.refresh.Replace(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("store refresh token: %w", err)
	}
	return plain, &rec, nil
}

// VerifyRefreshToken resolves a live record. An expired record is deleted
// before ErrTokenExpired is returned.
func (t *Tokens) VerifyRefreshToken(ctx context.Context, plain string) (*models.RefreshToken, error) {
	if plain == "" {
		return nil, apperr.Unauthorized(apperr.ErrTokenInvalid)
	}
	hash := digest(plain)
	rec, err := t.refresh.FindByHash(ctx, hash)
	if apperr.IsNotFound(err) {
		return nil, apperr.Unauthorized(apperr.ErrTokenInvalid)
	}
	if err != nil {
		return nil, err
	}
	if rec.Expired(t.now()) {
		if _, err := t.refresh.DeleteByHash(ctx, hash); err != nil {
			t.log.Warn("expired refresh token not removed", logger.UserID(rec.UserID), logger.Err(err))
		}
		return nil, apperr.Unauthorized(apperr.ErrTokenExpired)
	}
	return rec, nil
}

// Rotate spends a refresh token and returns a new pair. The old token is
// claimed by deleting it, so two concurrent rotations cannot both succeed.
func (t *Tokens) Rotate(ctx context.Context, plain string) (*Pair, int64, error) {
	rec, err := t.VerifyRefreshToken(ctx, plain)
	if err != nil {
		return nil, 0, err
	}
	claimed, err := t.refresh.DeleteByHash(ctx, rec.TokenHash)
	if err != nil {
		return nil, 0, err
	}
	if !claimed {
		return nil, 0, apperr.Unauthorized(apperr.ErrTokenInvalid)
	}
	pair, err := t.IssuePair(ctx, rec.UserID)
	if err != nil {
		return nil, 0, err
	}
	return pair, rec.UserID, nil
}

// Revoke deletes the record behind plain. Revoking an unknown token is not an error.
func (t *Tokens) Revoke(ctx context.Context, plain string) error {
	if plain == "" {
		return nil
	}
	_, err := t.refresh.DeleteByHash(ctx, digest(plain))
	return err
}

func (t *Tokens) RevokeAllForUser(ctx context.Context, userID int64) error {
	n, err := t.refresh.DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	t.log.Debug("refresh tokens revoked", logger.UserID(userID), logger.Count(n))
	return nil
}

func generateOpaque(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
