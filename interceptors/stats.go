package interceptors

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/courtside/matchpoint"
	"github.com/courtside/matchpoint/client"
	"github.com/courtside/matchpoint/stats"
)

type countedKey struct{}

type counter struct {
	st *stats.Stats
}

// Stats counts requests and their outcomes into st.
func Stats(st *stats.Stats) client.Interceptor {
	return counter{st: st}
}

func (c counter) BeforeRequest(req *http.Request) (*http.Request, error) {
	c.st.Sent.Add(1)
	c.st.InFlight.Add(1)

	return req.WithContext(context.WithValue(req.Context(), countedKey{}, new(atomic.Bool))), nil
}

func (c counter) OnResponse(resp *http.Response) (*http.Response, error) {
	if c.settle(resp.Request) {
		c.st.Succeeded.Add(1)
	}
	return resp, nil
}

func (c counter) OnError(req *http.Request, err error) (*http.Response, error) {
	if c.settle(req) {
		c.st.Failed.Add(1)
		if errors.Is(err, matchpoint.ErrRequestTimeout) {
			c.st.TimedOut.Add(1)
		}
	}
	return nil, err
}

// settle reports whether req was counted by BeforeRequest and not yet settled.
func (c counter) settle(req *http.Request) bool {
	if req == nil {
		return false
	}

	counted, ok := req.Context().Value(countedKey{}).(*atomic.Bool)
	if !ok || !counted.CompareAndSwap(false, true) {
		return false
	}

	c.st.InFlight.Add(-1)
	return true
}
