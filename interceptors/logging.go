// Package interceptors provides the stock interceptors attached to the backend client.
package interceptors

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/courtside/matchpoint"
	"github.com/courtside/matchpoint/client"
)

type startKey struct{}

type logging struct {
	log      zerolog.Logger
	selected matchpoint.Filterer
}

// Logging logs every request whose path passes filter, with its outcome and duration.
// A nil filter selects every request.
func Logging(logger zerolog.Logger, filter matchpoint.Filterer) client.Interceptor {
	if filter == nil {
		filter = func(string) bool { return true }
	}

	return logging{log: logger, selected: filter}
}

func (l logging) BeforeRequest(req *http.Request) (*http.Request, error) {
	if !l.selected(req.URL.Path) {
		return req, nil
	}

	l.log.Debug().
		Str("method", req.Method).
		Stringer("url", req.URL).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Msg("Request Sent")

	return req.WithContext(context.WithValue(req.Context(), startKey{}, time.Now())), nil
}

func (l logging) OnResponse(resp *http.Response) (*http.Response, error) {
	start, ok := startedAt(resp.Request)
	if !ok {
		return resp, nil
	}

	l.log.Debug().
		Str("method", resp.Request.Method).
		Stringer("url", resp.Request.URL).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Response Received")

	return resp, nil
}

func (l logging) OnError(req *http.Request, err error) (*http.Response, error) {
	start, ok := startedAt(req)
	if !ok {
		return nil, err
	}

	event := l.log.Warn()
	if errors.Is(err, context.Canceled) {
		event = l.log.Debug()
	}

	event.
		Err(err).
		Str("method", req.Method).
		Stringer("url", req.URL).
		Bool("timeout", errors.Is(err, matchpoint.ErrRequestTimeout)).
		Dur("duration", time.Since(start)).
		Msg("Request Failed")

	return nil, err
}

func startedAt(req *http.Request) (time.Time, bool) {
	if req == nil {
		return time.Time{}, false
	}

	start, ok := req.Context().Value(startKey{}).(time.Time)
	return start, ok
}
