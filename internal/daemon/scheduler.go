package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Scheduler wraps a gocron scheduler for the periodic chore check.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler creates a scheduler driven by clk. A nil clk uses the real clock.
func NewScheduler(clk clockwork.Clock, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts []gocron.SchedulerOption
	if clk != nil {
		opts = append(opts, gocron.WithClock(clk))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// ScheduleEvery runs task every interval, starting immediately. A run that is
// still going when the next one is due delays it instead of overlapping.
// Returns the job ID.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, task func()) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be positive, got %s", interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic job %s: %w", name, err)
	}
	return job.ID().String(), nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", slog.Int("jobs", len(s.scheduler.Jobs())))
	s.scheduler.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
