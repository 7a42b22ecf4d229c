package backend

import (
	"errors"
	"fmt"
)

// APIError is a failure reported by the backend itself (as opposed to a
// transport failure reaching it). Status, code and message are carried
// through unchanged from the wire.
type APIError struct {
	// Status is the HTTP status code of the response.
	Status int `json:"status"`

	// Code is the backend's machine-readable error code, if any.
	Code string `json:"code,omitempty"`

	// Message is the backend's human-readable error message.
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend: %s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("backend: %s (status %d)", e.Message, e.Status)
}

// AsAPIError unwraps err into an *APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ErrNoSession indicates an operation requiring authentication ran
// without a signed-in session.
var ErrNoSession = errors.New("no active session")
