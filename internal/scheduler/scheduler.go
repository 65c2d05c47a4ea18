// Package scheduler runs named cron jobs inside the API process.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
)

type Job struct {
	Name     string
	Schedule string // five fields, or six with leading seconds
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	s      gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func New(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{s: s, ctx: ctx, cancel: cancel, logger: logger}, nil
}

// Register adds a job. A run that outlasts its interval makes the next tick
// wait rather than overlap.
func (s *Scheduler) Register(job Job) error {
	withSeconds := len(strings.Fields(job.Schedule)) == 6

	_, err := s.s.NewJob(
		gocron.CronJob(job.Schedule, withSeconds),
		gocron.NewTask(s.run, job),
		gocron.WithName(job.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("registering job %s: %w", job.Name, err)
	}

	return nil
}

// run never propagates a failure; the next tick is the retry.
func (s *Scheduler) run(job Job) {
	start := time.Now()

	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("scheduled job failed", "job", job.Name, "duration", time.Since(start), "error", err)
		return
	}

	s.logger.Info("scheduled job finished", "job", job.Name, "duration", time.Since(start))
}

func (s *Scheduler) Start() {
	s.s.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.cancel()

	if err := s.s.Shutdown(); err != nil {
		return fmt.Errorf("shutting down scheduler: %w", err)
	}

	return nil
}
