package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

// Scheduler enqueues the recurring maintenance jobs. Tick job IDs are
// derived from the wall-clock slot, so overlapping scheduler instances
// collapse into one job per slot at the queue layer.
//
// Slots (UTC): daily metrics at 02:00, weekly survival on Sunday at 03:00,
// saturation at the top of every hour.
type Scheduler struct {
	queue ports.Queue
	clock ports.Clock
}

func NewScheduler(queue ports.Queue, clock ports.Clock) *Scheduler {
	return &Scheduler{queue: queue, clock: clock}
}

// Run ticks once a minute until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var lastSlot string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := s.clock.Now().UTC()
		slot := now.Format("2006-01-02T15:04")
		if slot == lastSlot {
			continue
		}
		lastSlot = slot

		s.tick(ctx, now)
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	date := now.Format("2006-01-02")

	if now.Minute() == 0 {
		s.enqueue(ctx, ports.Job{
			ID:   fmt.Sprintf("monitor-saturation-%sT%02d", date, now.Hour()),
			Name: "monitor-saturation",
		})
	}

	if now.Hour() == 2 && now.Minute() == 0 {
		s.enqueue(ctx, ports.Job{
			ID:   "compute-metrics-" + date,
			Name: "compute-metrics",
		})
	}

	if now.Weekday() == time.Sunday && now.Hour() == 3 && now.Minute() == 0 {
		s.enqueue(ctx, ports.Job{
			ID:   "track-survival-" + date,
			Name: "track-survival",
		})
	}
}

func (s *Scheduler) enqueue(ctx context.Context, job ports.Job) {
	job.Payload, _ = json.Marshal(map[string]any{})

	if err := s.queue.Enqueue(ctx, ports.QueueScheduled, job); err != nil {
		logging.Error(ctx, "failed to enqueue scheduled job",
			slog.String("jobId", job.ID), slog.Any("error", errs.Loggable(err)))
		return
	}
	logging.Info(ctx, "scheduled job enqueued", slog.String("jobId", job.ID))
}
