package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/courtside/matchpoint"
	"github.com/courtside/matchpoint/client"
	"github.com/courtside/matchpoint/interceptors"
	"github.com/courtside/matchpoint/stats"
)

const defaultWatchSchedule = "@every 30s"

type logConfig struct {
	Include []string `yaml:"include" toml:"include"`
	Exclude []string `yaml:"exclude" toml:"exclude"`
}

type watchConfig struct {
	Schedule string `yaml:"schedule" toml:"schedule"`
}

type config struct {
	// Backend client
	client.Config `yaml:",inline"`

	// Interceptors
	RateLimit   int                  `yaml:"rate-limit" toml:"rate-limit"`
	MaxInFlight int64                `yaml:"max-in-flight" toml:"max-in-flight"`
	Rewrite     []matchpoint.Rewrite `yaml:"rewrite" toml:"rewrite"`
	Log         logConfig            `yaml:"log" toml:"log"`

	Watch watchConfig `yaml:"watch" toml:"watch"`
}

func defaultConfig() config {
	return config{
		Config: client.DefaultConfig(),
		Watch:  watchConfig{Schedule: defaultWatchSchedule},
	}
}

// loadConfig decodes the config file at path over the defaults.
// A missing file leaves the defaults in place. Files ending in .toml are
// decoded as TOML, anything else as YAML. Unknown keys are rejected.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	file, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug().
			Str("path", path).
			Msg("Config Not Found, Using Defaults")
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("open config: %w: %w", err, matchpoint.ErrConfiguration)
	}

	defer func() { _ = file.Close() }()

	if err := decodeConfig(file, path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w: %w", filepath.Base(path), err, matchpoint.ErrConfiguration)
	}

	return cfg, nil
}

func decodeConfig(r io.Reader, path string, cfg *config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		decoder := toml.NewDecoder(r)
		decoder.DisallowUnknownFields()
		return decoder.Decode(cfg)
	}

	decoder := yaml.NewDecoder(r)
	decoder.SetStrict(true)
	err := decoder.Decode(cfg)
	if errors.Is(err, io.EOF) {
		// empty file
		return nil
	}
	return err
}

// applyOverrides applies command-line and environment values over cfg.
func applyOverrides(cfg *config, baseURL string, timeoutMs *int64) {
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	if timeoutMs != nil {
		cfg.TimeoutMillis = *timeoutMs
	}

	if cfg.Watch.Schedule == "" {
		cfg.Watch.Schedule = defaultWatchSchedule
	}
}

// interceptorChain builds the stock interceptors in the order they run.
func interceptorChain(cfg config, st *stats.Stats) ([]client.Interceptor, error) {
	rewriter, err := matchpoint.NewRewriter(cfg.Rewrite)
	if err != nil {
		return nil, err
	}

	filterer, err := matchpoint.NewFilterer(cfg.Log.Include, cfg.Log.Exclude)
	if err != nil {
		return nil, err
	}

	logger := matchpoint.GetLogger(cfg.Verbosity).With().
		Str("component", "http").
		Logger()

	return []client.Interceptor{
		interceptors.RequestID(),
		interceptors.Rewrite(rewriter),
		interceptors.RateLimit(cfg.RateLimit),
		interceptors.MaxInFlight(cfg.MaxInFlight),
		interceptors.Stats(st),
		interceptors.Logging(logger, filterer),
	}, nil
}

// initClient builds the process-wide client from cfg.
func initClient(cfg config, st *stats.Stats) (*client.Client, error) {
	chain, err := interceptorChain(cfg, st)
	if err != nil {
		return nil, err
	}

	return client.Init(cfg.Config, client.WithInterceptors(chain...))
}
