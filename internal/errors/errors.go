package errors

import (
	"errors"
	"fmt"
)

// Common error types shared by the session stores and the HTTP layer
var (
	// Session store errors
	ErrSessionNotFound   = errors.New("session not found")
	ErrIncompleteSession = errors.New("incomplete session")
	ErrInvalidSessionID  = errors.New("invalid session id")

	// OAuth2 flow state errors
	ErrStateNotFound = errors.New("oauth2 state not found")
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
