// Package httpclient builds the net/http clients used to reach the backend.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

const (
	dialTimeout         = 10 * time.Second
	dialKeepAlive       = 30 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
	idleConnTimeout     = 90 * time.Second

	maxIdleConns        = 100
	maxIdleConnsPerHost = 10
)

// sharedTransport pools connections for every client built by New.
var sharedTransport http.RoundTripper = newTransport()

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: dialKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// New returns an HTTP client on the shared transport.
//
// The client carries no Timeout of its own: request deadlines are set per
// request through the request context, so a per-call override can be longer
// than the default as well as shorter.
func New() *http.Client {
	return WithTransport(sharedTransport)
}

// WithTransport returns an HTTP client on rt, or on the shared transport when rt is nil.
func WithTransport(rt http.RoundTripper) *http.Client {
	if rt == nil {
		rt = sharedTransport
	}

	return &http.Client{Transport: rt}
}
