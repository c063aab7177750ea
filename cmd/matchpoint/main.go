package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/courtside/matchpoint/backend"
	"github.com/courtside/matchpoint/stats"
)

const (
	logMaxSizeMB  = 5
	logMaxAgeDays = 14
	logMaxBackups = 5
)

var (
	// release variables
	Version   string
	Timestamp string
	GitCommit string

	// CLI
	cli struct {
		globals

		// flags
		Config    string `type:"path" default:"${config_file}" env:"MATCHPOINT_CONFIG" help:"Config file path (.yml or .toml)"`
		Log       string `type:"path" default:"${log_file}" env:"MATCHPOINT_LOG" help:"Log file path"`
		Verbosity int    `type:"counter" default:"0" short:"v" env:"MATCHPOINT_VERBOSITY" help:"Log level verbosity"`
		LogLevel  string `default:"" env:"MATCHPOINT_LOG_LEVEL" help:"Log level (trace,debug,info,warn,error,fatal)"`

		BaseURL   string `name:"base-url" env:"MATCHPOINT_BASE_URL" help:"Backend base URL, overrides the config file"`
		TimeoutMs *int64 `name:"timeout-ms" env:"MATCHPOINT_TIMEOUT_MS" help:"Request timeout in milliseconds (0 disables), overrides the config file"`

		// commands
		Players  playersCmd  `cmd:"" help:"List players known to the backend"`
		Predict  predictCmd  `cmd:"" help:"Predict the winner of a match"`
		Evaluate evaluateCmd `cmd:"" help:"Show evaluation metrics of the prediction models"`
		Get      getCmd      `cmd:"" help:"Send a GET request to the backend and print the body"`
		Watch    watchCmd    `cmd:"" help:"Probe the backend on a schedule"`
	}
)

type globals struct {
	Version versionFlag `name:"version" help:"Print version information and quit"`
}

type versionFlag string

func (versionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (versionFlag) IsBool() bool                       { return true }
func (versionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error { //nolint:unparam // satisfies kong.Hook interface
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

func main() {
	// parse cli
	ctx := kong.Parse(&cli,
		kong.Name("matchpoint"),
		kong.Description("Query the tennis match prediction backend"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Summary: true,
			Compact: true,
		}),
		kong.Vars{
			"version":     fmt.Sprintf("%s (%s@%s)", Version, GitCommit, Timestamp),
			"config_file": filepath.Join(defaultConfigDirectory("matchpoint", "config.yml"), "config.yml"),
			"log_file":    filepath.Join(defaultConfigDirectory("matchpoint", "config.yml"), "activity.log"),
		},
	)

	if err := ctx.Validate(); err != nil {
		fmt.Println("Failed parsing cli:", err)
		os.Exit(1)
	}

	// logger
	setupLogger()

	// config
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("path", cli.Config).
			Msg("Config Load Failed")
	}

	applyOverrides(&cfg, cli.BaseURL, cli.TimeoutMs)

	// client
	st := stats.New()
	c, err := initClient(cfg, st)
	if err != nil {
		log.Fatal().
			Err(err).
			Msg("Client Init Failed")
	}

	log.Debug().
		Str("base_url", c.BaseURL()).
		Stringer("timeout", c.Timeout()).
		Msg("Client Initialised")

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &appContext{
		ctx:        runCtx,
		client:     c,
		api:        backend.New(c),
		stats:      st,
		cfg:        cfg,
		configPath: cli.Config,
		out:        os.Stdout,
	}

	if err := ctx.Run(app); err != nil {
		log.Error().
			Err(err).
			Str("command", ctx.Command()).
			Msg("Command Failed")
		stop()
		os.Exit(1) //nolint:gocritic // stop is called explicitly above
	}
}

// setupLogger configures the global zerolog logger using the CLI flags.
// Log level is set from --log-level if provided, otherwise from verbosity count.
func setupLogger() {
	logger := log.Output(io.MultiWriter(zerolog.ConsoleWriter{
		TimeFormat: time.Stamp,
		Out:        os.Stderr,
	}, &lumberjack.Logger{
		Filename:   cli.Log,
		MaxSize:    logMaxSizeMB,
		MaxAge:     logMaxAgeDays,
		MaxBackups: logMaxBackups,
	}))

	if cli.LogLevel != "" {
		level, err := zerolog.ParseLevel(cli.LogLevel)
		if err != nil {
			log.Logger = logger.Level(zerolog.InfoLevel)
			log.Fatal().Str("level", cli.LogLevel).Msg("Invalid Log Level")
		}

		log.Logger = logger.Level(level)

		return
	}

	switch {
	case cli.Verbosity == 1:
		log.Logger = logger.Level(zerolog.DebugLevel)
	case cli.Verbosity > 1:
		log.Logger = logger.Level(zerolog.TraceLevel)
	default:
		log.Logger = logger.Level(zerolog.InfoLevel)
	}
}

// defaultConfigDirectory returns the directory holding filename next to the
// executable when present there, otherwise the per-user config directory for app.
func defaultConfigDirectory(app, filename string) string {
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		if _, err := os.Stat(filepath.Join(dir, filename)); err == nil {
			return dir
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, app)
	}

	return "."
}
