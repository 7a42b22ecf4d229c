package wellness

import (
	"errors"
	"fmt"
)

var (
	// ErrOffline rejects a write attempted while the backend is known
	// unreachable, instead of attempting and waiting for a timeout.
	// Reported to the user as "offline", never as a generic failure.
	ErrOffline = errors.New("no connection to the backend")

	// ErrSessionExpired marks a failure the session guard already
	// handled. Callers must not surface their own error for it.
	ErrSessionExpired = errors.New("session expired")

	// ErrValidation marks input rejected locally before any network
	// call. Validation failures never consume retry budget.
	ErrValidation = errors.New("validation failed")

	// ErrNotSignedIn rejects operations that need an authenticated
	// user while signed out.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrClosed rejects operations on a closed service.
	ErrClosed = errors.New("service is closed")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
