package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"board/internal/apperr"
	"board/internal/logger"
	"board/internal/repository"
)

const maxBodyBytes = 1 << 20

type apiError struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, body apiError) {
	body.RequestID = w.Header().Get(requestIDHeader)
	writeJSON(w, status, body)
}

// writeError maps the error taxonomy to a status. Messages are fixed per
// class; details only reach the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *apperr.ValidationError
		ce *apperr.ConflictError
		ne *apperr.NotFoundError
		lt *apperr.LockTimeoutError
	)
	switch {
	case errors.As(err, &ve):
		writeErrorBody(w, http.StatusBadRequest, apiError{Error: "validation", Message: "invalid " + fieldOr(ve.Field, "request"), Field: ve.Field})
	case errors.As(err, &ce):
		writeErrorBody(w, http.StatusConflict, apiError{Error: "conflict", Message: ce.Field + " already in use", Field: ce.Field})
	case errors.As(err, &ne):
		writeErrorBody(w, http.StatusNotFound, apiError{Error: "not_found", Message: ne.Kind + " not found"})
	case apperr.IsForbidden(err):
		writeErrorBody(w, http.StatusForbidden, apiError{Error: "forbidden", Message: "not allowed"})
	case apperr.IsAuthorization(err):
		w.Header().Set("WWW-Authenticate", `Bearer realm="board"`)
		writeErrorBody(w, http.StatusUnauthorized, apiError{Error: "unauthorized", Message: "authentication required"})
	case errors.As(err, &lt):
		logger.From(r.Context()).Warn("lock timeout", logger.Collection(lt.Collection), logger.Err(err))
		w.Header().Set("Retry-After", "1")
		writeErrorBody(w, http.StatusServiceUnavailable, apiError{Error: "busy", Message: "try again shortly"})
	default:
		logger.From(r.Context()).Error("request failed", logger.Err(err))
		writeErrorBody(w, http.StatusInternalServerError, apiError{Error: "internal", Message: "internal error"})
	}
}

// deny is the guard's rejection writer so 401s look like every other error.
func deny(w http.ResponseWriter, r *http.Request, err error) { writeError(w, r, err) }

func fieldOr(field, fallback string) string {
	if field == "" {
		return fallback
	}
	return field
}

func writeTooMany(w http.ResponseWriter, retry time.Duration) {
	secs := int(math.Ceil(retry.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeErrorBody(w, http.StatusTooManyRequests, apiError{Error: "rate_limited", Message: "too many attempts"})
}

// readJSON decodes a JSON body. Unknown fields are rejected; an empty body is
// treated as {}.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "application/json") {
		return apperr.Validation("body", "must be application/json")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("body", "is not valid JSON")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation(name, "must be a positive integer")
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, apperr.Validation(name, "must be a positive integer")
	}
	return n, nil
}

func pageFrom(r *http.Request) (repository.Page, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return repository.Page{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return repository.Page{}, err
	}
	return repository.Page{Page: page, Limit: limit}, nil
}
