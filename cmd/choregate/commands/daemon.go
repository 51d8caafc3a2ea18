package commands

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/choregate/internal/config"
	"git.home.luguber.info/inful/choregate/internal/daemon"
	"git.home.luguber.info/inful/choregate/internal/metrics"
	"git.home.luguber.info/inful/choregate/internal/monitor"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Interval    time.Duration `help:"Time between chore checks (overrides RUN_INTERVAL)"`
	StopTimeout time.Duration `name:"stop-timeout" help:"How long to wait for a running check on shutdown" default:"30s"`
	NoWatch     bool          `name:"no-watch" help:"Do not reload when the children file changes"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}

	// The recorder outlives reloads so /metrics keeps one registry.
	recorder, prom := newRecorder(cfg)
	pending := cfg
	load := func() (*daemon.Runtime, error) {
		next := pending
		pending = nil
		if next == nil {
			var err error
			if next, err = root.loadConfig(g); err != nil {
				return nil, err
			}
		}
		return buildRuntime(next, g, recorder)
	}

	opts := d.options(cfg, g.Logger, prom)
	dm, err := daemon.New(load, opts)
	if err != nil {
		return configError(err)
	}
	defer dm.Close()

	ctx, cancel := signalContext()
	defer cancel()

	slog.Info("Starting daemon mode", slog.Int("children", len(cfg.Children)))
	if err := dm.Run(ctx, d.StopTimeout); err != nil {
		return err
	}
	runs, reloads := dm.Stats()
	slog.Info("Daemon stopped successfully", slog.Int("runs", runs), slog.Int("reloads", reloads))
	return nil
}

func (d *DaemonCmd) options(cfg *config.Config, logger *slog.Logger, prom *metrics.PrometheusRecorder) daemon.Options {
	opts := daemon.Options{
		Interval:      cfg.Daemon.Interval,
		MetricsListen: cfg.Daemon.MetricsListen,
		Logger:        logger,
	}
	if d.Interval > 0 {
		opts.Interval = d.Interval
	}
	if !d.NoWatch {
		opts.WatchPath = cfg.ChildrenFile
	}
	if prom != nil {
		opts.Metrics = prom.HTTPHandler()
		opts.AfterRun = func(monitor.Report) {
			writeTextfile(prom, cfg.Metrics.TextfilePath, logger)
		}
	}
	return opts
}
