// Package handlers exposes the board over a JSON HTTP API.
package handlers

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"board/internal/apperr"
	"board/internal/auth"
	"board/internal/board"
	"board/internal/logger"
	"board/internal/models"
	"board/internal/ratelimit"
)

type Config struct {
	Service *board.Service
	Tokens  *auth.Tokens
	Users   auth.UserLookup
	// Limiter throttles logins. Nil disables throttling.
	Limiter ratelimit.Limiter
	// Registry receives the HTTP collectors and backs /metrics. Nil uses the
	// default registry.
	Registry *prometheus.Registry
	Logger   *zap.Logger
}

type Handler struct {
	svc     *board.Service
	guard   *auth.Guard
	limiter ratelimit.Limiter
	log     *zap.Logger
	metrics *httpMetrics
	scrape  http.Handler
}

func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("http")
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.Nop{}
	}
	h := &Handler{
		svc:     cfg.Service,
		limiter: cfg.Limiter,
		log:     cfg.Logger,
	}
	h.guard = auth.NewGuard(cfg.Tokens, cfg.Users, auth.WithDeny(deny), auth.WithGuardLogger(cfg.Logger))

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	h.scrape = promhttp.Handler()
	if cfg.Registry != nil {
		reg = cfg.Registry
		h.scrape = promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})
	}
	h.metrics = newHTTPMetrics(reg)
	return h
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID, h.withLogging, withRecover, h.metrics.instrument)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorBody(w, http.StatusNotFound, apiError{Error: "not_found", Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorBody(w, http.StatusMethodNotAllowed, apiError{Error: "method_not_allowed", Message: "method not allowed"})
	})

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", h.scrape)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.signup)
			r.Post("/login", h.login)
			r.Post("/refresh", h.refresh)
			r.With(h.guard.Optional).Post("/logout", h.logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.guard.Require)
			r.Get("/users/me", h.me)
			r.Patch("/users/me", h.updateMe)
			r.Delete("/users/me", h.deleteMe)
			r.Get("/users/me/likes", h.myLikes)

			r.Post("/posts", h.createPost)
			r.Patch("/posts/{id}", h.updatePost)
			r.Delete("/posts/{id}", h.deletePost)
			r.Post("/posts/{id}/comments", h.addComment)
			r.Post("/posts/{id}/like", h.like)
			r.Delete("/posts/{id}/like", h.unlike)

			r.Patch("/comments/{id}", h.editComment)
			r.Delete("/comments/{id}", h.deleteComment)
		})

		r.With(h.guard.Optional).Get("/posts", h.listPosts)
		r.Get("/posts/{id}", h.getPost)
		r.Get("/posts/{id}/comments", h.listComments)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// caller returns the authenticated user. Only valid behind guard.Require.
func caller(ctx context.Context) *models.User {
	u, _ := auth.UserFrom(ctx)
	return u
}

// Accounts

type signupRequest struct {
	Email        string  `json:"email"`
	Nickname     string  `json:"nickname"`
	Password     string  `json:"password"`
	ProfileImage *string `json:"profile_image"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.Signup(r.Context(), board.SignupInput{
		Email:        req.Email,
		Nickname:     req.Nickname,
		Password:     req.Password,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User   *models.User `json:"user"`
	Tokens *auth.Pair   `json:"tokens"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	key := ratelimit.LoginKey(clientIP(r), req.Email)
	res, err := h.limiter.Allow(r.Context(), key)
	switch {
	case err != nil:
		// An unreachable limiter does not lock everyone out.
		logger.From(r.Context()).Warn("login limiter unavailable", logger.Err(err))
	case !res.Allowed:
		writeTooMany(w, res.RetryAfter)
		return
	}

	pair, u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.limiter.Reset(r.Context(), key); err != nil {
		logger.From(r.Context()).Warn("login limiter reset failed", logger.Err(err))
	}
	writeJSON(w, http.StatusOK, loginResponse{User: u, Tokens: pair})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	// All signs the caller out of every session; needs a valid access token.
	All bool `json:"all,omitempty"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var err error
	if req.All {
		ident, ok := auth.IdentityFrom(r.Context())
		if !ok {
			writeError(w, r, apperr.Unauthorized(apperr.ErrMissingCredential))
			return
		}
		err = h.svc.LogoutAll(r.Context(), ident.User.ID)
	} else {
		err = h.svc.Logout(r.Context(), req.RefreshToken)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Profile(r.Context(), caller(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type profileRequest struct {
	Nickname     *string `json:"nickname"`
	Password     *string `json:"password"`
	ProfileImage *string `json:"profile_image"`
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), caller(r.Context()).ID, board.ProfileInput{
		Nickname:     req.Nickname,
		Password:     req.Password,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) deleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAccount(r.Context(), caller(r.Context()).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) myLikes(w http.ResponseWriter, r *http.Request) {
	p, err := pageFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.svc.LikedPosts(r.Context(), caller(r.Context()).ID, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
