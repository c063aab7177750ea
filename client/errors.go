package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/courtside/matchpoint"
)

// maxErrorBodySize bounds how much of a rejected response is kept in StatusError.Body.
const maxErrorBodySize = 64 << 10 // 64KiB

// StatusError is returned when a response fails status validation.
// It unwraps to matchpoint.ErrTransport.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string

	// Body is a bounded copy of the response body.
	Body []byte

	// Response is the rejected response with Body replaced by the buffered copy.
	Response *http.Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

func (e *StatusError) Unwrap() error {
	return matchpoint.ErrTransport
}

// AsStatusError extracts a *StatusError from err.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsStatus reports whether err is a StatusError for the given status code.
func IsStatus(err error, code int) bool {
	se, ok := AsStatusError(err)
	return ok && se.StatusCode == code
}

// classify tags a failed send with ErrRequestTimeout or ErrTransport.
// The original error stays in the chain.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, matchpoint.ErrRequestTimeout) || errors.Is(err, matchpoint.ErrTransport) {
		return err
	}

	if isTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", err, matchpoint.ErrRequestTimeout)
	}

	return fmt.Errorf("%w: %w", err, matchpoint.ErrTransport)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
