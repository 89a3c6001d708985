// Package scheduler runs session housekeeping on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/tirtabot/internal/metrics"
	"github.com/user/tirtabot/internal/types"
)

// DefaultSchedule prunes expired sessions every ten minutes.
const DefaultSchedule = "@every 10m"

const pruneTimeout = 30 * time.Second

// Scheduler deletes session rows that have already expired. Reads never
// see such rows, so pruning only bounds storage growth.
type Scheduler struct {
	pruner   types.SessionPruner
	schedule string
	metrics  *metrics.Metrics
	now      func() time.Time
	cron     *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler pruning through pruner on schedule. An empty
// schedule uses DefaultSchedule.
func New(pruner types.SessionPruner, schedule string, m *metrics.Metrics) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		pruner:   pruner,
		schedule: schedule,
		metrics:  m,
		now:      time.Now,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Validate reports whether schedule parses.
func Validate(schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return nil
}

// Start registers the prune job and starts the cron ticker.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			slog.Error("prune sessions failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.schedule, err)
	}
	slog.Info("scheduled session pruning", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// RunOnce prunes immediately and returns the number of rows removed.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	removed, err := s.pruner.PruneExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.ObservePruned(removed)
	if removed > 0 {
		slog.Info("pruned expired sessions", "removed", removed)
	}
	return removed, nil
}

// Stop stops the cron ticker and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
