package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"board/internal/apperr"
	"board/internal/logger"
	"board/internal/models"
)

// UserLookup is the part of repository.Users the guard needs.
type UserLookup interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// Identity is an authenticated caller.
type Identity struct {
	User   *models.User
	Claims *Claims
}

// DenyFunc writes the response for a request the guard refused.
type DenyFunc func(w http.ResponseWriter, r *http.Request, err error)

type GuardOption func(*Guard)

func WithDeny(fn DenyFunc) GuardOption {
	return func(g *Guard) { g.deny = fn }
}

func WithGuardLogger(l *zap.Logger) GuardOption {
	return func(g *Guard) { g.log = l }
}

// Guard resolves "Authorization: Bearer <token>" into a live user. Every
// credential failure surfaces as the same unauthorized error; which check
// failed is only logged.
type Guard struct {
	tokens *Tokens
	users  UserLookup
	deny   DenyFunc
	log    *zap.Logger
}

func NewGuard(tokens *Tokens, users UserLookup, opts ...GuardOption) *Guard {
	g := &Guard{tokens: tokens, users: users, deny: defaultDeny, log: logger.Named("guard")}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Authenticate is the mandatory mode. Storage failures while resolving the
// user are returned as they are; everything else is *apperr.AuthorizationError.
func (g *Guard) Authenticate(ctx context.Context, header string) (*Identity, error) {
	raw, err := bearer(header)
	if err != nil {
		return nil, g.reject(ctx, err)
	}
	claims, err := g.tokens.VerifyAccessToken(raw)
	if err != nil {
		return nil, g.reject(ctx, err)
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, g.reject(ctx, err)
	}
	u, err := g.users.FindByID(ctx, id)
	if apperr.IsNotFound(err) {
		return nil, g.reject(ctx, apperr.Unauthorized(apperr.ErrNoLiveIdentity))
	}
	if err != nil {
		return nil, err
	}
	if !u.Live() {
		return nil, g.reject(ctx, apperr.Unauthorized(apperr.ErrNoLiveIdentity))
	}
	return &Identity{User: u, Claims: claims}, nil
}

// Identify is the optional mode: any failure means an anonymous caller.
func (g *Guard) Identify(ctx context.Context, header string) *Identity {
	if header == "" {
		return nil
	}
	ident, err := g.Authenticate(ctx, header)
	if err != nil {
		return nil
	}
	return ident
}

func (g *Guard) reject(ctx context.Context, err error) error {
	g.log.Debug("credential rejected", logger.Reason(err.Error()))
	if apperr.IsAuthorization(err) {
		return err
	}
	return apperr.Unauthorized(err)
}

// Require rejects the request unless it carries a valid credential.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := g.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			g.deny(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}

// Optional attaches the identity when there is one and never rejects.
func (g *Guard) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ident := g.Identify(r.Context(), r.Header.Get("Authorization")); ident != nil {
			r = r.WithContext(WithIdentity(r.Context(), ident))
		}
		next.ServeHTTP(w, r)
	})
}

type identityKey struct{}

func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}

func IdentityFrom(ctx context.Context) (*Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(*Identity)
	return ident, ok && ident != nil
}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (*models.User, bool) {
	ident, ok := IdentityFrom(ctx)
	if !ok {
		return nil, false
	}
	return ident.User, true
}

func bearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", apperr.Unauthorized(apperr.ErrMissingCredential)
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", apperr.Unauthorized(apperr.ErrBadScheme)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperr.Unauthorized(apperr.ErrMissingCredential)
	}
	return token, nil
}

func defaultDeny(w http.ResponseWriter, _ *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case apperr.IsAuthorization(err):
		status, code = http.StatusUnauthorized, "unauthorized"
		w.Header().Set("WWW-Authenticate", `Bearer realm="board"`)
	case apperr.IsLockTimeout(err):
		status, code = http.StatusServiceUnavailable, "busy"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
