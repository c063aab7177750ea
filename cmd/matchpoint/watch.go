package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/courtside/matchpoint/stats"
)

type watchCmd struct {
	Schedule string `help:"Cron schedule of the availability probe, overrides the config file"`
}

func (cmd *watchCmd) Run(app *appContext) error {
	schedule := app.cfg.Watch.Schedule
	if cmd.Schedule != "" {
		schedule = cmd.Schedule
	}

	logger := log.With().
		Str("component", "watch").
		Str("base_url", app.client.BaseURL()).
		Logger()

	p := &prober{
		log:   logger,
		check: app.api.Available,
		stats: app.stats,
		ctx:   app.ctx,
	}

	job := probeJob(p)

	c := cron.New()
	if _, err := c.AddJob(schedule, job); err != nil {
		return fmt.Errorf("watch schedule %q: %w", schedule, err)
	}

	stopWatcher, err := watchConfigFile(app.configPath, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("path", app.configPath).
			Msg("Config Watch Failed")
	} else {
		defer stopWatcher()
	}

	sdOK, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn().Err(err).Msg("sd_notify Failed")
	} else if sdOK {
		logger.Info().Msg("sd_notify Ready Sent")
	}

	c.Start()

	// first probe without waiting for the schedule
	go job.Run()

	logger.Info().
		Str("schedule", schedule).
		Msg("Watch Started")

	<-app.ctx.Done()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping+"\n"+p.status("stopping"))
	<-c.Stop().Done()

	logger.Info().Msg("Watch Stopped")
	return nil
}

// prober is the cron job checking backend availability.
// It logs only when availability changes.
type prober struct {
	log   zerolog.Logger
	check func(context.Context) error
	stats *stats.Stats
	ctx   context.Context

	mu    sync.Mutex
	known bool
	up    bool
}

func (p *prober) Run() {
	err := p.check(p.ctx)
	if p.ctx.Err() != nil {
		return
	}

	up := err == nil

	p.mu.Lock()
	changed := !p.known || p.up != up
	p.known, p.up = true, up
	p.mu.Unlock()

	switch {
	case !changed:
		p.log.Trace().Bool("available", up).Msg("Backend Probed")
	case up:
		p.log.Info().Msg("Backend Available")
	default:
		p.log.Error().Err(err).Msg("Backend Unavailable")
	}

	_, _ = daemon.SdNotify(false, p.status("watching"))
}

// Available reports the result of the last probe.
func (p *prober) Available() (known, up bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.known, p.up
}

// status renders the sd_notify STATUS line for the current state.
func (p *prober) status(phase string) string {
	backend := "unknown"
	if known, up := p.Available(); known && up {
		backend = "up"
	} else if known {
		backend = "down"
	}

	snap := p.stats.Snapshot()
	return fmt.Sprintf(
		"STATUS=%s | backend: %s | sent: %d | succeeded: %d | failed: %d | timed out: %d",
		phase, backend, snap.Sent, snap.Succeeded, snap.Failed, snap.TimedOut,
	)
}

// probeJob wraps p so a probe still waiting on a slow backend is not
// overlapped by the next tick.
func probeJob(p *prober) cron.Job {
	return cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(p)
}

// watchConfigFile warns when the config file changes. The client is built
// once at startup, so a change only applies after a restart.
func watchConfigFile(path string, logger zerolog.Logger) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// editors replace files, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				logger.Trace().
					Interface("event", event).
					Msg("FS Event")

				if filepath.Clean(event.Name) != target {
					continue
				}

				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					logger.Warn().
						Str("path", path).
						Stringer("op", event.Op).
						Msg("Config Changed, Restart Required")
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.Error().
					Err(err).
					Msg("Config Watch Error")
			}
		}
	}()

	return func() {
		_ = watcher.Close()
		<-done
	}, nil
}
