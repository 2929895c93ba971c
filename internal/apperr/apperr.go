// Package apperr holds the error taxonomy shared by the storage, repository and
// auth layers. Transport code maps these to status codes; nothing here is meant
// to be shown verbatim to a client.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports a field that failed a check before persistence.
type ValidationError struct {
	Field string
	Issue string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Issue
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Issue)
}

// ConflictError reports a uniqueness violation.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Field + " already in use" }

// NotFoundError reports an identifier that does not resolve.
type NotFoundError struct {
	Kind string
	ID   any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s %v not found", e.Kind, e.ID)
}

// AuthorizationError covers missing, invalid and expired credentials as well as
// acting on a resource owned by someone else (Forbidden).
type AuthorizationError struct {
	Reason    error
	Forbidden bool
}

func (e *AuthorizationError) Error() string {
	if e.Forbidden {
		return "forbidden"
	}
	if e.Reason != nil {
		return "unauthorized: " + e.Reason.Error()
	}
	return "unauthorized"
}

func (e *AuthorizationError) Unwrap() error { return e.Reason }

// LockTimeoutError is returned when a collection lock could not be acquired in time.
// Callers should treat it as retryable.
type LockTimeoutError struct {
	Collection string
	Waited     time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("lock timeout on %s after %s", e.Collection, e.Waited)
}

// CorruptDataError is returned when a persisted unit exists but cannot be decoded.
type CorruptDataError struct {
	Collection string
	Err        error
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("corrupt collection %s: %v", e.Collection, e.Err)
}

func (e *CorruptDataError) Unwrap() error { return e.Err }

// Token failure reasons carried inside an AuthorizationError.
var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	ErrTokenMalformed        = errors.New("token claims malformed")
	ErrTokenInvalid          = errors.New("token invalid")
	ErrMissingCredential     = errors.New("missing credential")
	ErrBadScheme             = errors.New("authorization scheme is not bearer")
	ErrNoLiveIdentity        = errors.New("subject has no live identity")
)

func Validation(field, issue string) error { return &ValidationError{Field: field, Issue: issue} }

func Conflict(field string) error { return &ConflictError{Field: field} }

func NotFound(kind string, id any) error { return &NotFoundError{Kind: kind, ID: id} }

func Unauthorized(reason error) error { return &AuthorizationError{Reason: reason} }

func Forbidden() error { return &AuthorizationError{Forbidden: true} }

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsAuthorization(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

// IsForbidden reports an authenticated caller acting on a resource it does not own.
func IsForbidden(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e) && e.Forbidden
}

func IsLockTimeout(err error) bool {
	var e *LockTimeoutError
	return errors.As(err, &e)
}

func IsCorrupt(err error) bool {
	var e *CorruptDataError
	return errors.As(err, &e)
}
