package drive

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested item does not exist upstream.
	// It maps to a 404 at the API boundary, not an error path.
	ErrNotFound = errors.New("item not found")

	// ErrAuthRedirect indicates a content fetch was redirected to the
	// identity provider's login page instead of the download location.
	// The usual cause is a stale or rejected bearer token.
	ErrAuthRedirect = errors.New("redirected to identity provider login")

	// ErrTooManyRedirects indicates the redirect bound was exceeded while
	// following a content download chain.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// TransportError represents a failed call to the remote store: a non-2xx
// status or a transport-level failure. Listing callers treat it as "skip
// this partial source"; single-resource callers surface it.
type TransportError struct {
	StatusCode int
	URL        string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote store call failed (status %d): %s: %v", e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("remote store call failed (status %d): %s", e.StatusCode, e.URL)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}
