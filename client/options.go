package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courtside/matchpoint/internal/httpclient"
)

// Option customises a Client at construction.
type Option func(*Client)

// WithTransport replaces the shared pooled transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http = httpclient.WithTransport(rt)
	}
}

// WithInterceptors registers interceptors before the client is handed out.
// Interceptors can also be attached later with Use.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(c *Client) {
		c.Use(interceptors...)
	}
}

// WithValidateStatus replaces the status check applied by Request and its
// shorthands. The default accepts 2xx.
func WithValidateStatus(valid func(status int) bool) Option {
	return func(c *Client) {
		if valid != nil {
			c.validStatus = valid
		}
	}
}

// WithLogger replaces the logger derived from Config.Verbosity.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

// RequestOption customises a single request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	header http.Header
	query  url.Values

	timeout    time.Duration
	hasTimeout bool

	body        io.Reader
	contentType string

	err error
}

// Timeout overrides the client timeout for one request. Zero disables it.
func Timeout(d time.Duration) RequestOption {
	return func(rc *requestConfig) {
		rc.timeout = d
		rc.hasTimeout = true
	}
}

// Header sets a request header, replacing any client default with the same name.
func Header(key, value string) RequestOption {
	return func(rc *requestConfig) {
		if rc.header == nil {
			rc.header = make(http.Header)
		}
		rc.header.Set(key, value)
	}
}

// Query adds a query parameter.
func Query(key, value string) RequestOption {
	return func(rc *requestConfig) {
		if rc.query == nil {
			rc.query = make(url.Values)
		}
		rc.query.Add(key, value)
	}
}

// JSON encodes v as the request body.
func JSON(v any) RequestOption {
	return func(rc *requestConfig) {
		b, err := json.Marshal(v)
		if err != nil {
			rc.err = fmt.Errorf("encode json body: %w", err)
			return
		}

		rc.body = bytes.NewReader(b)
		rc.contentType = "application/json"
	}
}

// Body sets a raw request body. An empty contentType leaves Content-Type unset.
func Body(r io.Reader, contentType string) RequestOption {
	return func(rc *requestConfig) {
		rc.body = r
		rc.contentType = contentType
	}
}

// bodyOption picks an encoding for the data argument of Post, Put and Patch:
// readers, byte slices and strings are sent as-is, anything else as JSON.
func bodyOption(data any) RequestOption {
	switch v := data.(type) {
	case nil:
		return func(*requestConfig) {}
	case io.Reader:
		return Body(v, "")
	case []byte:
		return Body(bytes.NewReader(v), "application/octet-stream")
	case string:
		return Body(strings.NewReader(v), "text/plain; charset=utf-8")
	default:
		return JSON(v)
	}
}

type timeoutKey struct{}

// ContextWithTimeout attaches a per-request timeout override to ctx.
// Do honours it the same way Request honours the Timeout option.
func ContextWithTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutKey{}, d)
}

func timeoutFromContext(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(timeoutKey{}).(time.Duration)
	return d, ok
}
