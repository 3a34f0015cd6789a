package translator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

var (
	// ErrMalformedResponse means the body was not the expected envelope.
	ErrMalformedResponse = errors.New("malformed response envelope")
	// ErrMissingText means the envelope had no text in its first part.
	ErrMissingText = errors.New("response has no text field")
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API returned status %d", e.Code)
	}
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Body)
}

// IsRetriable reports whether a failed call may succeed when repeated:
// rate limiting, request timeouts, server errors and transport failures.
// Auth failures, other client errors and envelope problems are terminal.
func IsRetriable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests ||
			se.Code == http.StatusRequestTimeout ||
			se.Code >= 500
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrMissingText) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
