package commands

import (
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/choregate/internal/clock"
	"git.home.luguber.info/inful/choregate/internal/config"
	"git.home.luguber.info/inful/choregate/internal/daemon"
	"git.home.luguber.info/inful/choregate/internal/foundation/errors"
	"git.home.luguber.info/inful/choregate/internal/history"
	"git.home.luguber.info/inful/choregate/internal/logfields"
	"git.home.luguber.info/inful/choregate/internal/metrics"
	"git.home.luguber.info/inful/choregate/internal/monitor"
	"git.home.luguber.info/inful/choregate/internal/notify"
	"git.home.luguber.info/inful/choregate/internal/policy"
	"git.home.luguber.info/inful/choregate/internal/sophos"
	"git.home.luguber.info/inful/choregate/internal/todoist"
)

// newRecorder returns a Prometheus recorder when any metrics output is
// configured, otherwise a no-op.
func newRecorder(cfg *config.Config) (metrics.Recorder, *metrics.PrometheusRecorder) {
	if cfg.Metrics.TextfilePath == "" && cfg.Daemon.MetricsListen == "" {
		return metrics.NoopRecorder{}, nil
	}
	p := metrics.NewPrometheusRecorder(prom.NewRegistry())
	return p, p
}

// buildRuntime wires every collaborator of one chore check from cfg. The
// optional journal and publisher degrade to no-ops when they cannot be opened.
func buildRuntime(cfg *config.Config, g *Global, recorder metrics.Recorder) (*daemon.Runtime, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clk := clock.New(g.Clock, cfg.Location())
	engine, err := policy.NewEngine(cfg.Schedule.CutoffHour)
	if err != nil {
		return nil, err
	}

	tasks := todoist.NewFromConfig(cfg.Todoist, logger)
	firewall := sophos.NewFromConfig(cfg.Sophos, logger)

	var closers []func()
	var journal history.Journal = history.NoopJournal{}
	if cfg.History.DBPath != "" {
		store, err := history.OpenSQLite(cfg.History.DBPath)
		if err != nil {
			logger.Warn("History journal unavailable; continuing without it",
				logfields.Path(cfg.History.DBPath),
				logfields.Error(err))
		} else {
			journal = store
			closers = append(closers, func() {
				if err := store.Close(); err != nil {
					logger.Warn("Failed to close history journal", logfields.Error(err))
				}
			})
		}
	}

	var publisher notify.Publisher = notify.NoopPublisher{}
	if cfg.NATS.URL != "" {
		p, err := notify.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			logger.Warn("NATS unavailable; rule changes will not be published",
				logfields.URL(cfg.NATS.URL),
				logfields.Error(err))
		} else {
			publisher = p
			closers = append(closers, p.Close)
		}
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	m, err := monitor.New(monitor.Deps{
		Clock:    clk,
		Engine:   engine,
		Children: cfg.PolicyChildren(),
		Tasks:    tasks,
		Firewall: firewall,
		State: monitor.StateFiles{
			CompletionPath: cfg.State.CompletionPath,
			ActionPath:     cfg.State.ActionPath,
		},
		Disables:  cfg.DailyDisables(),
		Recorder:  recorder,
		Journal:   journal,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		closeAll()
		return nil, err
	}
	return &daemon.Runtime{Invoker: m, Close: closeAll}, nil
}

// writeTextfile exports metrics for the node exporter textfile collector.
func writeTextfile(p *metrics.PrometheusRecorder, path string, logger *slog.Logger) {
	if p == nil || path == "" {
		return
	}
	if err := p.WriteTextfile(path); err != nil {
		logger.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
	}
}

// configError marks errors from building collaborators that stem from bad
// configuration, leaving already classified errors untouched.
func configError(err error) error {
	if err == nil || errors.IsClassified(err) {
		return err
	}
	return errors.ConfigError("failed to initialise").WithCause(err).Build()
}
