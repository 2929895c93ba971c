package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"board/internal/apperr"
	"board/internal/models"
	"board/internal/repository"
	"board/internal/repository/docstore"
	"board/internal/storage"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock { return &clock{t: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)} }

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	e := storage.NewEngine(storage.NewMemoryBackend(), storage.Options{Logger: zap.NewNop()})
	return docstore.New(e, docstore.WithLogger(zap.NewNop()))
}

func newTokens(t *testing.T, s *repository.Store, c *clock, accessTTL time.Duration) *Tokens {
	t.Helper()
	tok, err := NewTokens(TokenConfig{
		Secret:     []byte("test-secret-test-secret-test-sec"),
		Algorithm:  "HS256",
		AccessTTL:  accessTTL,
		RefreshTTL: 7 * 24 * time.Hour,
	}, s.RefreshTokens, WithClock(c.Now), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return tok
}

func TestPasswordRoundTrip(t *testing.T) {
	hashers := map[string]Hasher{
		"bcrypt":   BcryptHasher{Cost: 4},
		"argon2id": Argon2Hasher{Params: Argon2Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}},
	}
	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			for _, p := range []string{"abcd1234", "pässwörd9", "x1"} {
				hash, err := h.Hash(p)
				require.NoError(t, err)
				assert.NotContains(t, hash, p)
				assert.True(t, h.Verify(p, hash))
				assert.False(t, h.Verify(p+"!", hash))
			}
			a, err := h.Hash("same1234")
			require.NoError(t, err)
			b, err := h.Hash("same1234")
			require.NoError(t, err)
			assert.NotEqual(t, a, b, "salt differs per call")

			_, err = h.Hash("")
			assert.Error(t, err)
		})
	}
}

func TestVerifyPasswordAcceptsBothSchemes(t *testing.T) {
	bc, err := BcryptHasher{Cost: 4}.Hash("abcd1234")
	require.NoError(t, err)
	ar, err := Argon2Hasher{Params: Argon2Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16}}.Hash("abcd1234")
	require.NoError(t, err)

	assert.True(t, VerifyPassword("abcd1234", bc))
	assert.True(t, VerifyPassword("abcd1234", ar))
	assert.False(t, VerifyPassword("abcd1234", "plain-text"))
	assert.False(t, VerifyPassword("abcd1234", "$argon2id$v=19$m=1024,t=1,p=1$!!$!!"))

	const salt, key = "c2FsdHNhbHRzYWx0", "a2V5a2V5a2V5a2V5"
	for _, params := range []string{
		"m=1024,t=0,p=1",
		"m=1024,t=1,p=0",
		"m=4,t=1,p=1",
		"m=4294967295,t=1,p=1",
		"m=1024,t=1000000,p=1",
	} {
		hash := "$argon2id$v=19$" + params + "$" + salt + "$" + key
		assert.NotPanics(t, func() {
			assert.False(t, VerifyPassword("abcd1234", hash), params)
		}, params)
	}
	longKey := base64.RawStdEncoding.EncodeToString(make([]byte, 1<<16))
	assert.False(t, VerifyPassword("abcd1234", "$argon2id$v=19$m=1024,t=1,p=1$"+salt+"$"+longKey))
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher("", 0)
	require.NoError(t, err)
	assert.IsType(t, BcryptHasher{}, h)
	h, err = NewHasher("ARGON2ID", 0)
	require.NoError(t, err)
	assert.IsType(t, Argon2Hasher{}, h)
	_, err = NewHasher("md5", 0)
	assert.Error(t, err)
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy
	assert.NoError(t, p.Validate("abcd1234"))
	assert.Equal(t, []string{"too_short"}, p.Check("ab12"))
	assert.Equal(t, []string{"missing_digit"}, p.Check("abcdefgh"))
	assert.Equal(t, []string{"missing_letter"}, p.Check("12345678"))
	assert.Contains(t, p.Check(strings.Repeat("a1", 40)), "too_long")

	err := p.Validate("short1")
	var v *apperr.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "password", v.Field)

	relaxed := Policy{MinLength: 4}
	assert.NoError(t, relaxed.Validate("abcd"))
	assert.Error(t, relaxed.Validate(strings.Repeat("é", 40)), "80 bytes exceeds the bcrypt limit")
}

func TestAccessTokenLifecycle(t *testing.T) {
	c := newClock()
	tok := newTokens(t, newStore(t), c, time.Second)

	raw, exp, err := tok.CreateAccessToken("42", map[string]any{"role": "member", "sub": "hijack"})
	require.NoError(t, err)
	assert.Equal(t, c.Now().Add(time.Second), exp)

	claims, err := tok.VerifyAccessToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, TypeAccess, claims.Type)
	assert.Equal(t, "member", claims.Extra["role"])
	assert.NotEmpty(t, claims.ID)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	c.Advance(2 * time.Second)
	_, err = tok.VerifyAccessToken(raw)
	assert.True(t, errors.Is(err, apperr.ErrTokenExpired))
	assert.True(t, apperr.IsAuthorization(err))
}

func TestAccessTokenRejectsTampering(t *testing.T) {
	c := newClock()
	s := newStore(t)
	tok := newTokens(t, s, c, time.Minute)
	raw, _, err := tok.CreateAccessToken("1", nil)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = tok.VerifyAccessToken(forged)
	assert.True(t, errors.Is(err, apperr.ErrTokenInvalidSignature))

	other, err := NewTokens(TokenConfig{Secret: []byte("another-secret"), AccessTTL: time.Minute, RefreshTTL: time.Hour}, s.RefreshTokens, WithClock(c.Now))
	require.NoError(t, err)
	_, err = other.VerifyAccessToken(raw)
	assert.True(t, errors.Is(err, apperr.ErrTokenInvalidSignature))

	_, err = tok.VerifyAccessToken("not-a-token")
	assert.True(t, errors.Is(err, apperr.ErrTokenMalformed))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "iat": c.Now().Unix(), "exp": c.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tok.VerifyAccessToken(none)
	assert.Error(t, err, "alg none is never accepted")
}

func TestAccessTokenNeedsExpiry(t *testing.T) {
	c := newClock()
	tok := newTokens(t, newStore(t), c, time.Minute)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "iat": c.Now().Unix()}).SignedString(tok.cfg.Secret)
	require.NoError(t, err)
	_, err = tok.VerifyAccessToken(raw)
	assert.True(t, errors.Is(err, apperr.ErrTokenMalformed))
}

func TestNewTokensRejectsBadConfig(t *testing.T) {
	s := newStore(t)
	_, err := NewTokens(TokenConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour}, s.RefreshTokens)
	assert.Error(t, err)
	_, err = NewTokens(TokenConfig{Secret: []byte("k"), Algorithm: "RS256", AccessTTL: time.Minute, RefreshTTL: time.Hour}, s.RefreshTokens)
	assert.Error(t, err)
	_, err = NewTokens(TokenConfig{Secret: []byte("k"), RefreshTTL: time.Hour}, s.RefreshTokens)
	assert.Error(t, err)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	s := newStore(t)
	tok := newTokens(t, s, c, time.Minute)

	first, rec, err := tok.CreateRefreshToken(ctx, 7)
	require.NoError(t, err)
	assert.NotEqual(t, first, rec.TokenHash, "plaintext is never stored")

	got, err := tok.VerifyRefreshToken(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)

	second, _, err := tok.CreateRefreshToken(ctx, 7)
	require.NoError(t, err)
	_, err = tok.VerifyRefreshToken(ctx, first)
	assert.True(t, errors.Is(err, apperr.ErrTokenInvalid), "a new token supersedes the old one")

	c.Advance(8 * 24 * time.Hour)
	_, err = tok.VerifyRefreshToken(ctx, second)
	assert.True(t, errors.Is(err, apperr.ErrTokenExpired))

	_, err = s.RefreshTokens.FindByHash(ctx, digest(second))
	assert.True(t, apperr.IsNotFound(err), "expired record is deleted on verification")
}

func TestRotateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	tok := newTokens(t, newStore(t), c, time.Minute)

	pair, err := tok.IssuePair(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	next, uid, err := tok.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(3), uid)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, _, err = tok.Rotate(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, apperr.ErrTokenInvalid))

	require.NoError(t, tok.Revoke(ctx, next.RefreshToken))
	_, err = tok.VerifyRefreshToken(ctx, next.RefreshToken)
	assert.True(t, errors.Is(err, apperr.ErrTokenInvalid))
	assert.NoError(t, tok.Revoke(ctx, "unknown"))
}

func TestRevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	tok := newTokens(t, s, newClock(), time.Minute)

	mine, _, err := tok.CreateRefreshToken(ctx, 1)
	require.NoError(t, err)
	theirs, _, err := tok.CreateRefreshToken(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, tok.RevokeAllForUser(ctx, 1))
	_, err = tok.VerifyRefreshToken(ctx, mine)
	assert.Error(t, err)
	_, err = tok.VerifyRefreshToken(ctx, theirs)
	assert.NoError(t, err)
}

func seedUser(t *testing.T, s *repository.Store) *models.User {
	t.Helper()
	u, err := s.Users.Create(context.Background(), models.NewUser{Email: "a@x.com", Nickname: "foo", PasswordHash: "h"})
	require.NoError(t, err)
	return u
}

func TestGuardModes(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	s := newStore(t)
	tok := newTokens(t, s, c, time.Minute)
	g := NewGuard(tok, s.Users, WithGuardLogger(zap.NewNop()))
	u := seedUser(t, s)

	raw, _, err := tok.CreateAccessToken("1", nil)
	require.NoError(t, err)
	ghost, _, err := tok.CreateAccessToken("99", nil)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		reason error
	}{
		{"missing", "", apperr.ErrMissingCredential},
		{"basic scheme", "Basic dXNlcjpwYXNz", apperr.ErrBadScheme},
		{"empty bearer", "Bearer ", apperr.ErrMissingCredential},
		{"garbage", "Bearer abc.def.ghi", apperr.ErrTokenMalformed},
		{"unknown subject", "Bearer " + ghost, apperr.ErrNoLiveIdentity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Authenticate(ctx, tc.header)
			require.Error(t, err)
			assert.True(t, apperr.IsAuthorization(err))
			assert.False(t, apperr.IsForbidden(err))
			assert.True(t, errors.Is(err, tc.reason), "got %v", err)
			assert.Nil(t, g.Identify(ctx, tc.header), "optional mode degrades to anonymous")
		})
	}

	ident, err := g.Authenticate(ctx, "bearer "+raw)
	require.NoError(t, err)
	assert.Equal(t, u.ID, ident.User.ID)
	require.NotNil(t, g.Identify(ctx, "Bearer "+raw))

	_, err = s.Users.Delete(ctx, u.ID)
	require.NoError(t, err)
	_, err = g.Authenticate(ctx, "Bearer "+raw)
	assert.True(t, errors.Is(err, apperr.ErrNoLiveIdentity), "soft-deleted users are treated as missing")

	c.Advance(2 * time.Minute)
	_, err = g.Authenticate(ctx, "Bearer "+raw)
	assert.True(t, errors.Is(err, apperr.ErrTokenExpired))
}

func TestGuardMiddleware(t *testing.T) {
	c := newClock()
	s := newStore(t)
	tok := newTokens(t, s, c, time.Minute)
	g := NewGuard(tok, s.Users, WithGuardLogger(zap.NewNop()))
	seedUser(t, s)
	raw, _, err := tok.CreateAccessToken("1", nil)
	require.NoError(t, err)

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := UserFrom(r.Context()); ok {
			_, _ = w.Write([]byte(u.Nickname))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})

	serve := func(h http.Handler, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(g.Require(echo), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())

	rec = serve(g.Require(echo), "Bearer "+raw)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "foo", rec.Body.String())

	rec = serve(g.Optional(echo), "Bearer broken")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	rec = serve(g.Optional(echo), "Bearer "+raw)
	assert.Equal(t, "foo", rec.Body.String())
}
