package client

import (
	"fmt"
	"sync"

	"github.com/courtside/matchpoint"
)

var (
	sharedMu sync.Mutex
	shared   *Client
)

// Init builds the process-wide client. It may be called once, during startup,
// before anything calls Shared; a second call is a wiring bug and fails with
// matchpoint.ErrConfiguration.
func Init(cfg Config, opts ...Option) (*Client, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared != nil {
		return nil, fmt.Errorf("shared client already initialised for %s: %w", shared.BaseURL(), matchpoint.ErrConfiguration)
	}

	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	shared = c
	return c, nil
}

// Shared returns the process-wide client. Every call returns the same instance.
// Without a prior Init it is built from DefaultConfig.
func Shared() *Client {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		shared = MustNew(DefaultConfig())
	}

	return shared
}
