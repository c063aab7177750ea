// Package matchpoint provides the shared types, errors and helpers used by the
// match-prediction backend client and its consumers.
package matchpoint

import (
	"errors"
	"io"
)

const (
	// DefaultBaseURL is the address of the prediction backend when nothing else is configured.
	DefaultBaseURL = "http://localhost:7771"

	// DefaultTimeoutMillis bounds a single request when nothing else is configured.
	DefaultTimeoutMillis int64 = 100000
)

const maxResponseBodySize = 10 * 1024 * 1024 // 10MB

// limitedReadCloser wraps an io.LimitedReader with the original closer.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}

// LimitReadCloser wraps rc so that at most maxResponseBodySize bytes are read.
// The underlying body is still closed normally.
func LimitReadCloser(rc io.ReadCloser) io.ReadCloser {
	return &limitedReadCloser{
		Reader: io.LimitReader(rc, maxResponseBodySize),
		Closer: rc,
	}
}

var (
	// ErrConfiguration is returned when a client is constructed from an
	// invalid base URL or a negative timeout.
	ErrConfiguration = errors.New("invalid client configuration")

	// ErrRequestTimeout indicates that a request outlived its timeout.
	// The transport error that surfaced the timeout stays in the chain.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrTransport covers network failures and non-success responses.
	ErrTransport = errors.New("transport error")

	// ErrFatal indicates a problem that retrying will not fix,
	// such as an undecodable response or an invalid argument.
	ErrFatal = errors.New("fatal error")
)
