package client

import (
	"fmt"
	"net/http"

	"github.com/courtside/matchpoint"
)

// An Interceptor observes or transforms requests on their way to the backend
// and responses or errors on their way back to the caller.
//
// Interceptors run in registration order. BeforeRequest may return a modified
// request, or an error to abort the request before it reaches the wire. On the
// way back each interceptor sees the current outcome: OnResponse while it is a
// response, OnError while it is an error. OnError may recover by returning a
// response, in which case later interceptors see that response.
type Interceptor interface {
	BeforeRequest(req *http.Request) (*http.Request, error)
	OnResponse(resp *http.Response) (*http.Response, error)
	OnError(req *http.Request, err error) (*http.Response, error)
}

// InterceptorFuncs adapts plain functions to an Interceptor.
// Nil functions pass the value through unchanged.
type InterceptorFuncs struct {
	Request  func(*http.Request) (*http.Request, error)
	Response func(*http.Response) (*http.Response, error)
	Error    func(*http.Request, error) (*http.Response, error)
}

func (f InterceptorFuncs) BeforeRequest(req *http.Request) (*http.Request, error) {
	if f.Request == nil {
		return req, nil
	}
	return f.Request(req)
}

func (f InterceptorFuncs) OnResponse(resp *http.Response) (*http.Response, error) {
	if f.Response == nil {
		return resp, nil
	}
	return f.Response(resp)
}

func (f InterceptorFuncs) OnError(req *http.Request, err error) (*http.Response, error) {
	if f.Error == nil {
		return nil, err
	}
	return f.Error(req, err)
}

// Use appends interceptors to the client. Requests issued after Use returns
// run through them; requests already in flight keep the list they started with.
func (c *Client) Use(interceptors ...Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Interceptor, 0, len(c.interceptors)+len(interceptors))
	next = append(next, c.interceptors...)
	for _, ic := range interceptors {
		if ic != nil {
			next = append(next, ic)
		}
	}

	c.interceptors = next
}

func (c *Client) chain() []Interceptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.interceptors
}

// intercept runs the request stage, send, then the response stage.
// send is skipped when a BeforeRequest fails.
func intercept(
	chain []Interceptor,
	req *http.Request,
	send func(*http.Request) (*http.Response, error),
) (*http.Response, error) {
	var (
		resp *http.Response
		err  error
	)

	for _, ic := range chain {
		next, icErr := ic.BeforeRequest(req)
		if icErr != nil {
			err = icErr
			break
		}

		if next != nil {
			req = next
		}
	}

	if err == nil {
		resp, err = send(req)
	}

	for _, ic := range chain {
		if err != nil {
			recovered, icErr := ic.OnError(req, err)
			switch {
			case icErr != nil:
				err = icErr
			case recovered != nil:
				resp, err = recovered, nil
				if resp.Request == nil {
					resp.Request = req
				}
			}
			continue
		}

		next, icErr := ic.OnResponse(resp)
		switch {
		case icErr != nil:
			closeBody(resp)
			resp, err = nil, icErr
		case next == nil:
			closeBody(resp)
			resp, err = nil, fmt.Errorf("interceptor %T returned no response: %w", ic, matchpoint.ErrFatal)
		default:
			resp = next
			if resp.Request == nil {
				resp.Request = req
			}
		}
	}

	if resp != nil && resp.Request == nil {
		resp.Request = req
	}

	return resp, err
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}
