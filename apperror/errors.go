// Package apperror holds the error taxonomy shared by the session lifecycle,
// the middleware and the controllers, and its mapping onto HTTP statuses.
package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("Forbidden: unable to perform operation on resource not owned by you")
	ErrNotFound           = errors.New("Resource not found")
	ErrConflict           = errors.New("conflict")
	ErrUnavailable        = errors.New("service unavailable")
)

// Status returns the HTTP status code for err. Errors outside the taxonomy
// are store errors and map to 500, as does ErrConflict: a rejected unique
// write is reported like any other store failure.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Validation is a shorthand for a 400 carrying a client facing message.
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Msg: msg}
}

// Error attaches a client facing message to a sentinel kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// Message returns the text safe to show a client for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	switch Status(err) {
	case http.StatusInternalServerError:
		return "Server error"
	case http.StatusUnauthorized:
		if errors.Is(err, ErrInvalidCredentials) {
			return ErrInvalidCredentials.Error()
		}
		if errors.Is(err, ErrUnauthenticated) {
			return "Authorization header missing"
		}
		return "Invalid token"
	case http.StatusForbidden:
		return ErrForbidden.Error()
	case http.StatusNotFound:
		return ErrNotFound.Error()
	case http.StatusServiceUnavailable:
		return "Service unavailable"
	}
	return "Bad request"
}
