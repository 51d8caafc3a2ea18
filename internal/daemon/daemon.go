package daemon

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/choregate/internal/foundation/errors"
	"git.home.luguber.info/inful/choregate/internal/logfields"
	"git.home.luguber.info/inful/choregate/internal/monitor"
)

// Invoker performs one chore check.
type Invoker interface {
	Run(ctx context.Context) monitor.Report
}

// Runtime is one loaded configuration: the invoker built from it and the
// resources to release when it is replaced.
type Runtime struct {
	Invoker Invoker
	Close   func()
}

func (r *Runtime) close() {
	if r != nil && r.Close != nil {
		r.Close()
	}
}

// LoadFunc builds a Runtime from the current configuration.
type LoadFunc func() (*Runtime, error)

// Options configure a Daemon.
type Options struct {
	Interval time.Duration
	// WatchPath enables hot reload when non-empty.
	WatchPath      string
	ReloadDebounce time.Duration
	// MetricsListen serves Metrics at /metrics when both are set.
	MetricsListen string
	Metrics       http.Handler
	// AfterRun is called with every report, e.g. to write a metrics textfile.
	AfterRun func(monitor.Report)

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Daemon runs the chore check on an interval until its context ends.
type Daemon struct {
	opts Options
	load LoadFunc

	mu      sync.Mutex
	current *Runtime
	runs    int
	reloads int
}

// New loads the initial runtime. A load failure here is returned as is so the
// caller can exit with the matching code.
func New(load LoadFunc, opts Options) (*Daemon, error) {
	if load == nil {
		return nil, errors.InternalError("daemon requires a loader").Build()
	}
	if opts.Interval <= 0 {
		return nil, errors.ValidationError("run interval must be positive").
			WithContext("interval", opts.Interval.String()).
			Build()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	rt, err := load()
	if err != nil {
		return nil, err
	}
	return &Daemon{opts: opts, load: load, current: rt}, nil
}

// Tick performs one chore check with the current runtime. Reloads wait for a
// running check to finish.
func (d *Daemon) Tick(ctx context.Context) monitor.Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	report := d.current.Invoker.Run(ctx)
	d.runs++
	if d.opts.AfterRun != nil {
		d.opts.AfterRun(report)
	}
	return report
}

// Reload swaps in a freshly loaded runtime. When loading fails the current
// runtime stays in place and the error is returned.
func (d *Daemon) Reload() error {
	rt, err := d.load()
	if err != nil {
		d.opts.Logger.Error("Configuration reload failed; keeping current configuration", logfields.Error(err))
		return err
	}
	d.mu.Lock()
	old := d.current
	d.current = rt
	d.reloads++
	d.mu.Unlock()
	old.close()
	d.opts.Logger.Info("Configuration reloaded")
	return nil
}

// Stats returns how many checks and reloads have completed.
func (d *Daemon) Stats() (runs, reloads int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runs, d.reloads
}

// Close releases the current runtime.
func (d *Daemon) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current.close()
	d.current = nil
}

// Run schedules the chore check and blocks until ctx is cancelled, then
// stops the scheduler, watcher and metrics server within stopTimeout.
func (d *Daemon) Run(ctx context.Context, stopTimeout time.Duration) error {
	log := d.opts.Logger

	sched, err := NewScheduler(d.opts.Clock, log)
	if err != nil {
		return err
	}
	if _, err := sched.ScheduleEvery("chore-check", d.opts.Interval, func() { d.Tick(ctx) }); err != nil {
		return err
	}

	var watcher *FileWatcher
	if d.opts.WatchPath != "" {
		watcher, err = NewFileWatcher(d.opts.WatchPath, d.opts.ReloadDebounce, func() { _ = d.Reload() }, log)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			watcher.Stop()
			return err
		}
	}

	var srv *http.Server
	errChan := make(chan error, 1)
	if d.opts.MetricsListen != "" && d.opts.Metrics != nil {
		srv, err = d.startMetricsServer(errChan)
		if err != nil {
			if watcher != nil {
				watcher.Stop()
			}
			return err
		}
	}

	sched.Start()
	log.Info("Daemon started",
		slog.String("interval", d.opts.Interval.String()),
		slog.String("metrics_listen", d.opts.MetricsListen),
		logfields.Path(d.opts.WatchPath))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, stopping daemon")
	case runErr = <-errChan:
		log.Error("Metrics server failed", logfields.Error(runErr))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	var stopErrs []error
	if watcher != nil {
		watcher.Stop()
	}
	if err := sched.Stop(); err != nil {
		stopErrs = append(stopErrs, fmt.Errorf("stop scheduler: %w", err))
	}
	if srv != nil {
		if err := srv.Shutdown(stopCtx); err != nil {
			stopErrs = append(stopErrs, fmt.Errorf("stop metrics server: %w", err))
		}
	}
	if runErr != nil {
		stopErrs = append(stopErrs, runErr)
	}
	return stderrors.Join(stopErrs...)
}

func (d *Daemon) startMetricsServer(errChan chan<- error) (*http.Server, error) {
	ln, err := net.Listen("tcp", d.opts.MetricsListen)
	if err != nil {
		return nil, errors.ConfigError("failed to listen for metrics").
			WithCause(err).
			WithContext("listen", d.opts.MetricsListen).
			Build()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.opts.Metrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	d.opts.Logger.Info("Serving metrics", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	return srv, nil
}
