package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/courtside/matchpoint"
)

const jsonAccept = "application/json"

// GetJSON issues a GET request for path and decodes the response into dst.
func (c *Client) GetJSON(ctx context.Context, path string, dst any, opts ...RequestOption) error {
	res, err := c.Get(ctx, path, append([]RequestOption{Header("Accept", jsonAccept)}, opts...)...)
	if err != nil {
		closeBody(res)
		return err
	}

	return decodeJSON(res, dst)
}

// PostJSON issues a POST request for path with body encoded as JSON and
// decodes the response into dst. A nil dst discards the response body.
func (c *Client) PostJSON(ctx context.Context, path string, body, dst any, opts ...RequestOption) error {
	opts = append([]RequestOption{JSON(body), Header("Accept", jsonAccept)}, opts...)

	res, err := c.Request(ctx, http.MethodPost, path, opts...)
	if err != nil {
		closeBody(res)
		return err
	}

	return decodeJSON(res, dst)
}

func decodeJSON(res *http.Response, dst any) error {
	body := matchpoint.LimitReadCloser(res.Body)
	defer func() { _ = body.Close() }()

	if dst == nil {
		return nil
	}

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, matchpoint.ErrRequestTimeout) || errors.Is(err, matchpoint.ErrTransport) {
			return fmt.Errorf("failed reading %s response: %w", res.Request.URL.Path, err)
		}
		return fmt.Errorf("failed decoding %s response: %w: %w", res.Request.URL.Path, err, matchpoint.ErrFatal)
	}

	return nil
}
