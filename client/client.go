// Package client provides the preconfigured HTTP client for the prediction backend.
//
// A Client resolves relative paths against one base URL, applies one default
// timeout that callers may override per request, and runs every request
// through an ordered list of interceptors. It is safe for concurrent use and
// is meant to be built once at startup and shared; see Init and Shared.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/courtside/matchpoint"
	"github.com/courtside/matchpoint/internal/httpclient"
)

// defaultAccept matches what browser-side HTTP clients send when the caller sets nothing.
const defaultAccept = "application/json, text/plain, */*"

// Client issues requests to one backend.
type Client struct {
	base      *url.URL
	baseURL   string
	timeout   time.Duration
	headers   http.Header
	userAgent string

	validStatus func(int) bool

	http *http.Client
	log  zerolog.Logger

	mu           sync.RWMutex
	interceptors []Interceptor
}

// New builds a Client from cfg. It performs no I/O.
// Invalid configuration is reported up front with an error wrapping
// matchpoint.ErrConfiguration.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	headers := make(http.Header, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	c := &Client{
		base:        base,
		baseURL:     base.String(),
		timeout:     cfg.Timeout(),
		headers:     headers,
		userAgent:   userAgent,
		validStatus: defaultValidStatus,
		http:        httpclient.New(),
		log: matchpoint.GetLogger(cfg.Verbosity).With().
			Str("component", "client").
			Str("base_url", base.String()).
			Logger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// MustNew is like New but panics on invalid configuration.
func MustNew(cfg Config, opts ...Option) *Client {
	c, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func defaultValidStatus(status int) bool {
	return status >= 200 && status < 300
}

// BaseURL returns the base URL relative paths are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the default per-request timeout. Zero means none.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// ResolveURL returns the URL a request for ref would be sent to.
// Absolute and protocol-relative references bypass the base URL.
func (c *Client) ResolveURL(ref string) (*url.URL, error) {
	target := ref
	if !matchpoint.IsAbsoluteURL(ref) {
		target = matchpoint.JoinURL(c.baseURL, ref)
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse request url %q: %w: %w", ref, err, matchpoint.ErrFatal)
	}

	// protocol-relative
	if u.Scheme == "" {
		u.Scheme = c.base.Scheme
	}

	return u, nil
}

// Do sends req through the interceptors and the transport.
//
// A relative req.URL is resolved against the base URL. Like http.Client.Do,
// a non-2xx response is not an error; Request and its shorthands apply status
// validation instead. The caller must close the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request: %w", matchpoint.ErrFatal)
	}

	return c.do(req, false)
}

// Request builds and sends a request for path with status validation.
// When validation fails the error is a *StatusError and the response is
// returned alongside it with a buffered body.
func (c *Client) Request(ctx context.Context, method, path string, opts ...RequestOption) (*http.Response, error) {
	var rc requestConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&rc)
		}
	}

	if rc.err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, rc.err, matchpoint.ErrFatal)
	}

	u, err := c.ResolveURL(path)
	if err != nil {
		return nil, err
	}

	if len(rc.query) > 0 {
		q := u.Query()
		for k, vs := range rc.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	if rc.hasTimeout {
		ctx = ContextWithTimeout(ctx, rc.timeout)
	}

	body := rc.body
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed creating request: %w: %w", err, matchpoint.ErrFatal)
	}

	for k, vs := range rc.header {
		req.Header[k] = append([]string(nil), vs...)
	}

	if rc.contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", rc.contentType)
	}

	return c.do(req, true)
}

// Get issues a GET request for path.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*http.Response, error) {
	return c.Request(ctx, http.MethodGet, path, opts...)
}

// Head issues a HEAD request for path.
func (c *Client) Head(ctx context.Context, path string, opts ...RequestOption) (*http.Response, error) {
	return c.Request(ctx, http.MethodHead, path, opts...)
}

// Delete issues a DELETE request for path.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*http.Response, error) {
	return c.Request(ctx, http.MethodDelete, path, opts...)
}

// Post issues a POST request for path with data as the body.
// Readers, byte slices and strings are sent as-is; other values are encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, data any, opts ...RequestOption) (*http.Response, error) {
	return c.Request(ctx, http.MethodPost, path, append([]RequestOption{bodyOption(data)}, opts...)...)
}

// Put issues a PUT request for path with data as the body.
func (c *Client) Put(ctx context.Context, path string, data any, opts ...RequestOption) (*http.Response, error) {
	return c.Request(ctx, http.MethodPut, path, append([]RequestOption{bodyOption(data)}, opts...)...)
}

// Patch issues a PATCH request for path with data as the body.
func (c *Client) Patch(ctx context.Context, path string, data any, opts ...RequestOption) (*http.Response, error) {
	return c.Request(ctx, http.MethodPatch, path, append([]RequestOption{bodyOption(data)}, opts...)...)
}

func (c *Client) do(req *http.Request, validate bool) (*http.Response, error) {
	ctx := req.Context()

	timeout := c.timeout
	if d, ok := timeoutFromContext(ctx); ok {
		timeout = d
	}

	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	req = req.Clone(ctx)
	if req.URL.Scheme == "" || req.URL.Host == "" {
		u, err := c.ResolveURL(req.URL.String())
		if err != nil {
			cancel()
			return nil, err
		}
		req.URL = u
		req.Host = ""
	}

	c.applyDefaults(req)

	send := func(r *http.Request) (*http.Response, error) {
		return c.send(r, validate)
	}

	resp, err := intercept(c.chain(), req, send)
	if err != nil {
		cancel()

		if se, ok := AsStatusError(err); ok {
			return se.Response, err
		}
		return nil, err
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		cancel()
		return resp, nil
	}

	// the deadline covers reading the body
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, ctx: ctx, cancel: cancel}
	return resp, nil
}

func (c *Client) applyDefaults(req *http.Request) {
	for k, vs := range c.headers {
		if _, ok := req.Header[k]; !ok {
			req.Header[k] = append([]string(nil), vs...)
		}
	}

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", defaultAccept)
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func (c *Client) send(req *http.Request, validate bool) (*http.Response, error) {
	res, err := c.http.Do(req) //nolint:gosec // the backend address is operator configuration
	if err != nil {
		return nil, classify(req.Context(), err)
	}

	if res.Request == nil {
		res.Request = req
	}

	if !validate || c.validStatus(res.StatusCode) {
		return res, nil
	}

	c.log.Trace().
		Str("request_method", req.Method).
		Stringer("request_url", req.URL).
		Int("response_status", res.StatusCode).
		Msg("Request Rejected")

	return nil, rejectStatus(req, res)
}

func rejectStatus(req *http.Request, res *http.Response) *StatusError {
	var raw []byte
	if res.Body != nil {
		// a partial body is still worth keeping
		raw, _ = io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
		_ = res.Body.Close()
	}

	res.Body = io.NopCloser(bytes.NewReader(raw))

	return &StatusError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Body:       raw,
		Response:   res,
	}
}

type cancelOnClose struct {
	io.ReadCloser
	ctx    context.Context
	cancel context.CancelFunc
}

// Read tags failures the way a failed send is tagged, so a deadline hit
// while reading the body surfaces as matchpoint.ErrRequestTimeout.
func (b *cancelOnClose) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = classify(b.ctx, err)
	}
	return n, err
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
