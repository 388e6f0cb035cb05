package sched

import (
	"context"
	"log/slog"
	"time"

	"multibot/internal/message"
)

// Scheduler platform tag carried by the synthetic tick request.
const (
	PlatformTag   = "Scheduler"
	SchedulerUser = "scheduler"
)

// Handler is the dispatch surface the loop needs per tick.
type Handler interface {
	Handle(req *message.Request) []message.Response
}

// Factory builds a fresh cron dispatcher for one tick.
type Factory func() (Handler, error)

// Renderer delivers the responses a tick produced. The scheduler has
// no platform connection of its own.
type Renderer func(responses []message.Response)

// Scheduler injects the tick command once a minute through a fresh
// cron dispatcher.
type Scheduler struct {
	factory Factory
	render  Renderer
	logger  *slog.Logger
}

func NewScheduler(factory Factory, render Renderer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{factory: factory, render: render, logger: logger}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started")
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick runs one scheduling round.
func (s *Scheduler) Tick() {
	d, err := s.factory()
	if err != nil {
		s.logger.Warn("cannot build cron dispatcher", "error", err)
		return
	}
	responses := d.Handle(&message.Request{
		Platform:      PlatformTag,
		UserID:        SchedulerUser,
		Msg:           TickCommand,
		FromScheduler: true,
	})
	if len(responses) > 0 && s.render != nil {
		s.render(responses)
	}
}
