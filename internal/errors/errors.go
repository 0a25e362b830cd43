package errors

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the API client
var (
	ErrNetwork    = errors.New("network error")
	ErrAuth       = errors.New("authentication error")
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrServer     = errors.New("server error")
	ErrUnknown    = errors.New("unknown error")
)

// Session errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrStaleSession     = errors.New("session changed while request was in flight")
	ErrNoRefreshToken   = errors.New("no refresh token")
	ErrSessionClosed    = errors.New("session manager closed")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
