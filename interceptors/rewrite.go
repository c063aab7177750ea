package interceptors

import (
	"net/http"

	"github.com/courtside/matchpoint"
	"github.com/courtside/matchpoint/client"
)

// Rewrite passes the path of every outgoing request through rw.
// Paths are matched after base URL resolution, so rules see the full path.
func Rewrite(rw matchpoint.Rewriter) client.Interceptor {
	return client.InterceptorFuncs{
		Request: func(req *http.Request) (*http.Request, error) {
			rewritten := rw(req.URL.Path)
			if rewritten != req.URL.Path {
				req.URL.Path = rewritten
				req.URL.RawPath = ""
			}
			return req, nil
		},
	}
}
