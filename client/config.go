package client

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/courtside/matchpoint"
)

// Config binds a Client to one backend.
type Config struct {
	// BaseURL is prepended to every relative request path.
	BaseURL string `yaml:"base-url" toml:"base-url"`

	// TimeoutMillis bounds every request that has no per-call override.
	// Zero disables the timeout.
	TimeoutMillis int64 `yaml:"timeout-ms" toml:"timeout-ms"`

	// UserAgent is sent when a request carries no User-Agent of its own.
	UserAgent string `yaml:"user-agent" toml:"user-agent"`

	// Headers are added to every request that does not already set them.
	Headers map[string]string `yaml:"headers" toml:"headers"`

	Verbosity string `yaml:"verbosity" toml:"verbosity"`
}

const defaultUserAgent = "matchpoint"

// DefaultConfig returns the configuration the application ships with.
func DefaultConfig() Config {
	return Config{
		BaseURL:       matchpoint.DefaultBaseURL,
		TimeoutMillis: matchpoint.DefaultTimeoutMillis,
		UserAgent:     defaultUserAgent,
	}
}

// Timeout returns TimeoutMillis as a time.Duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

// Validate reports whether the configuration can produce a working client.
// Errors wrap matchpoint.ErrConfiguration.
func (c Config) Validate() error {
	_, err := parseBaseURL(c.BaseURL)
	if err != nil {
		return err
	}

	if c.TimeoutMillis < 0 {
		return fmt.Errorf("timeout %dms is negative: %w", c.TimeoutMillis, matchpoint.ErrConfiguration)
	}

	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("base url is empty: %w", matchpoint.ErrConfiguration)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("base url %q: %w: %w", raw, err, matchpoint.ErrConfiguration)
	}

	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return nil, fmt.Errorf("base url %q: scheme must be http or https: %w", raw, matchpoint.ErrConfiguration)
	case u.Host == "":
		return nil, fmt.Errorf("base url %q: missing host: %w", raw, matchpoint.ErrConfiguration)
	case u.RawQuery != "" || u.Fragment != "":
		return nil, fmt.Errorf("base url %q: query and fragment are not allowed: %w", raw, matchpoint.ErrConfiguration)
	}

	return u, nil
}
