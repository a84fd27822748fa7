package repdig

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionInit means the landing page did not carry a view state, nothing
	// can be requested without one.
	ErrSessionInit = errors.New("repdig: could not extract initial javax.faces.ViewState")
	// ErrRateLimitExceeded means the server kept answering 429 past the retry budget.
	ErrRateLimitExceeded = errors.New("repdig: rate limit exceeded")
	// ErrTransport is any other network or protocol failure.
	ErrTransport = errors.New("repdig: transport failure")
	// ErrDownload wraps any failure while downloading a single record.
	ErrDownload = errors.New("repdig: download failed")
)

// StatusError is returned (wrapped in ErrTransport) for non-2xx responses
// other than 429.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.Status)
}
