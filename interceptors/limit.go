package interceptors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/courtside/matchpoint"
	"github.com/courtside/matchpoint/client"
)

// RateLimit holds requests so that at most perSecond start each second.
// Waiting counts against the request timeout. Zero or less disables the limit.
func RateLimit(perSecond int) client.Interceptor {
	if perSecond <= 0 {
		return client.InterceptorFuncs{}
	}

	rl := rate.NewLimiter(rate.Every(time.Second/time.Duration(perSecond)), perSecond)

	return client.InterceptorFuncs{
		Request: func(req *http.Request) (*http.Request, error) {
			if err := rl.Wait(req.Context()); err != nil {
				return nil, waitError(req.Context(), "rate limit", err)
			}
			return req, nil
		},
	}
}

type slotKey struct{}

// slot is released exactly once, whichever hook sees the request last.
type slot struct {
	once    sync.Once
	release func()
}

func (s *slot) done() {
	s.once.Do(s.release)
}

type maxInFlight struct {
	sem *semaphore.Weighted
}

// MaxInFlight caps the number of concurrent requests. A slot is held until
// the response body is closed or the request fails. Zero or less disables the cap.
func MaxInFlight(n int64) client.Interceptor {
	if n <= 0 {
		return client.InterceptorFuncs{}
	}

	return maxInFlight{sem: semaphore.NewWeighted(n)}
}

func (m maxInFlight) BeforeRequest(req *http.Request) (*http.Request, error) {
	ctx := req.Context()
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, waitError(ctx, "max in-flight", err)
	}

	s := &slot{release: func() { m.sem.Release(1) }}
	return req.WithContext(context.WithValue(ctx, slotKey{}, s)), nil
}

func (m maxInFlight) OnResponse(resp *http.Response) (*http.Response, error) {
	s := slotOf(resp.Request)
	if s == nil {
		return resp, nil
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		s.done()
		return resp, nil
	}

	resp.Body = &releaseOnClose{ReadCloser: resp.Body, slot: s}
	return resp, nil
}

func (m maxInFlight) OnError(req *http.Request, err error) (*http.Response, error) {
	if s := slotOf(req); s != nil {
		s.done()
	}
	return nil, err
}

func slotOf(req *http.Request) *slot {
	if req == nil {
		return nil
	}

	s, _ := req.Context().Value(slotKey{}).(*slot)
	return s
}

type releaseOnClose struct {
	io.ReadCloser
	slot *slot
}

func (b *releaseOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.slot.done()
	return err
}

// waitError tags a failed wait the way the client tags a failed send.
func waitError(ctx context.Context, what string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w: %w", what, err, matchpoint.ErrTransport)
	}

	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%s: %w: %w", what, err, matchpoint.ErrRequestTimeout)
	}

	return fmt.Errorf("%s: %w: %w", what, err, matchpoint.ErrTransport)
}
