// Package scheduler runs the periodic housekeeping jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"eastviewpta.org/internal/obs"
)

// EventCompleter marks published events whose end has passed as completed.
type EventCompleter interface {
	CompletePastEvents(ctx context.Context, now time.Time) (int, error)
}

// CalendarWarmer refreshes the cached calendar window.
type CalendarWarmer interface {
	Warm(ctx context.Context) bool
}

type Config struct {
	CompleteEventsSpec string
	WarmCalendarSpec   string
	// per-run deadline
	JobTimeout time.Duration
}

type Scheduler struct {
	cron     *cron.Cron
	events   EventCompleter
	calendar CalendarWarmer
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
}

// New builds a scheduler; a nil dependency or empty spec skips that job.
func New(events EventCompleter, calendar CalendarWarmer, cfg Config) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	return &Scheduler{
		cron:     cron.New(),
		events:   events,
		calendar: calendar,
		cfg:      cfg,
		now:      time.Now,
		logger:   obs.Logger().With("module", "scheduler"),
	}
}

func (s *Scheduler) Start() error {
	if s.events != nil && s.cfg.CompleteEventsSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.CompleteEventsSpec, s.runCompleteEvents); err != nil {
			return fmt.Errorf("complete events schedule %q: %w", s.cfg.CompleteEventsSpec, err)
		}
	}
	if s.calendar != nil && s.cfg.WarmCalendarSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.WarmCalendarSpec, s.runWarmCalendar); err != nil {
			return fmt.Errorf("warm calendar schedule %q: %w", s.cfg.WarmCalendarSpec, err)
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop waits for running jobs to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runCompleteEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	n, err := s.events.CompletePastEvents(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to complete past events", "event", "scheduler.complete_events", "completed", n, "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("completed past events", "event", "scheduler.complete_events", "completed", n)
	}
}

func (s *Scheduler) runWarmCalendar() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	if !s.calendar.Warm(ctx) {
		s.logger.Warn("calendar warm-up failed", "event", "scheduler.warm_calendar")
	}
}
