package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError carries every rule violation found for one request.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidation flattens one or more violation sources into a single error.
// Accepted values are strings, errors (including *multierror.Error) and
// nested *ValidationError values.
func NewValidation(violations ...any) error {
	var merr *multierror.Error
	for _, v := range violations {
		switch t := v.(type) {
		case string:
			merr = multierror.Append(merr, errors.New(t))
		case *ValidationError:
			for _, m := range t.Messages {
				merr = multierror.Append(merr, errors.New(m))
			}
		case *multierror.Error:
			if t != nil {
				merr = multierror.Append(merr, t.Errors...)
			}
		case error:
			merr = multierror.Append(merr, t)
		}
	}
	if merr == nil || len(merr.Errors) == 0 {
		return nil
	}
	messages := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		messages = append(messages, e.Error())
	}
	return &ValidationError{Messages: messages}
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(format string, args ...any) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError is returned by access policies. Unauthenticated marks a
// missing session (401) as opposed to an insufficient access level (403).
type AuthorizationError struct {
	Message         string
	Unauthenticated bool
}

func (e *AuthorizationError) Error() string { return e.Message }

func (e *AuthorizationError) Is(target error) bool {
	if e.Unauthenticated {
		return target == ErrUnauthorized
	}
	return target == ErrForbidden
}

func Unauthorized(message string) error {
	return &AuthorizationError{Message: message, Unauthenticated: true}
}

func Forbidden(message string) error {
	return &AuthorizationError{Message: message}
}

// StoreError wraps a failure reported by the document store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store wraps err as a StoreError. A nil err stays nil.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// HTTPStatus maps an error onto the response status the HTTP layer sends.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case IsDuplicateKey(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Messages returns the client-facing messages for err.
func Messages(err error) []string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Messages
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return []string{"Unknown error"}
	}
	if IsDuplicateKey(err) {
		return []string{"Document with the same unique fields already exists"}
	}
	return []string{err.Error()}
}
