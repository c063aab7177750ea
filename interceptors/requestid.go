package interceptors

import (
	"net/http"

	"github.com/rs/xid"

	"github.com/courtside/matchpoint/client"
)

// RequestIDHeader carries the correlation id of a request.
const RequestIDHeader = "X-Request-ID"

// RequestID tags requests that have no X-Request-ID with a fresh xid.
func RequestID() client.Interceptor {
	return client.InterceptorFuncs{
		Request: func(req *http.Request) (*http.Request, error) {
			if req.Header.Get(RequestIDHeader) == "" {
				req.Header.Set(RequestIDHeader, xid.New().String())
			}
			return req, nil
		},
	}
}
