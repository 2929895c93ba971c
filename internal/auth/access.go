package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"board/internal/apperr"
)

// TypeAccess is the typ claim stamped on access tokens.
const TypeAccess = "access"

// reserved claims cannot be overridden through extras.
var reserved = map[string]bool{"sub": true, "iat": true, "exp": true, "jti": true, "typ": true, "nbf": true}

// Claims is the verified content of an access token.
type Claims struct {
	Subject   string
	ID        string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// UserID parses the subject as a user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Unauthorized(apperr.ErrTokenMalformed)
	}
	return id, nil
}

// CreateAccessToken signs subject with the configured HMAC key. Extra claims
// are copied in unless they collide with a registered one.
func (t *Tokens) CreateAccessToken(subject string, extra map[string]any) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("access token needs a subject")
	}
	now := t.now()
	exp := now.Add(t.cfg.AccessTTL)
	claims := jwt.MapClaims{}
	for k, v := range extra {
		if !reserved[k] {
			claims[k] = v
		}
	}
	claims["sub"] = subject
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(exp)
	claims["jti"] = uuid.NewString()
	claims["typ"] = TypeAccess

	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp.Truncate(jwt.TimePrecision), nil
}

// VerifyAccessToken checks signature, algorithm and expiry. It never looks at
// the payload of a token that fails any of them. Failures are
// *apperr.AuthorizationError wrapping ErrTokenExpired,
// ErrTokenInvalidSignature or ErrTokenMalformed.
func (t *Tokens) VerifyAccessToken(raw string) (*Claims, error) {
	claims := jwt.MapClaims{}
	_, err := t.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return t.cfg.Secret, nil })
	if err != nil {
		return nil, apperr.Unauthorized(tokenReason(err))
	}

	out := &Claims{Extra: map[string]any{}}
	if out.Subject, err = claims.GetSubject(); err != nil || out.Subject == "" {
		return nil, apperr.Unauthorized(apperr.ErrTokenMalformed)
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, apperr.Unauthorized(apperr.ErrTokenMalformed)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, apperr.Unauthorized(apperr.ErrTokenMalformed)
	}
	out.IssuedAt, out.ExpiresAt = iat.Time, exp.Time
	if typ, ok := claims["typ"]; ok {
		s, ok := typ.(string)
		if !ok || s != TypeAccess {
			return nil, apperr.Unauthorized(apperr.ErrTokenMalformed)
		}
		out.Type = s
	}
	if jti, ok := claims["jti"].(string); ok {
		out.ID = jti
	}
	for k, v := range claims {
		if !reserved[k] {
			out.Extra[k] = v
		}
	}
	return out, nil
}

func tokenReason(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperr.ErrTokenInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.ErrTokenExpired
	}
	return apperr.ErrTokenMalformed
}
