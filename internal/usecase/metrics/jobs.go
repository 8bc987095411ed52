package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/domain/calendar"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
	"sentinel/internal/usecase/alerting"
)

// Runner executes the scheduled metric jobs under distributed locks.
// Contention means another worker already owns that (job, repo, date)
// cycle: the slot is skipped, never retried.
type Runner struct {
	repos     ports.RepositoryStore
	service   *Service
	locker    ports.Locker
	evaluator *alerting.Evaluator
	clock     ports.Clock
	defaultTZ string
}

func NewRunner(
	repos ports.RepositoryStore,
	service *Service,
	locker ports.Locker,
	evaluator *alerting.Evaluator,
	clock ports.Clock,
	defaultTimezone string,
) *Runner {
	return &Runner{
		repos:     repos,
		service:   service,
		locker:    locker,
		evaluator: evaluator,
		clock:     clock,
		defaultTZ: defaultTimezone,
	}
}

// HandleScheduled dispatches one queued maintenance job by name.
func (r *Runner) HandleScheduled(ctx context.Context, job ports.Job) error {
	var sj ports.ScheduledJob
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &sj); err != nil {
			return errs.Wrap(err, "decode scheduled job")
		}
	}

	switch job.Name {
	case "compute-metrics":
		return r.ComputeMetrics(ctx, sj)
	case "track-survival":
		return r.TrackSurvival(ctx, sj)
	case "monitor-saturation":
		return r.MonitorSaturation(ctx, sj)
	default:
		logging.Warn(ctx, "unknown scheduled job", slog.String("jobName", job.Name))
		return nil
	}
}

func (r *Runner) ComputeMetrics(ctx context.Context, job ports.ScheduledJob) error {
	startedAt := r.clock.Now()

	dates, err := r.resolveDates(job)
	if err != nil {
		return err
	}
	repos, err := r.resolveRepos(ctx, job.RepoID)
	if err != nil {
		return err
	}

	logging.Info(ctx, "starting metrics computation",
		slog.Int("dates", len(dates)), slog.Int("repos", len(repos)))

	var processed, skipped int
	for _, repo := range repos {
		for _, date := range dates {
			ran, err := r.withLock(ctx, "compute-metrics", repo.ID, date, func(ctx context.Context) error {
				_, err := r.service.ComputeDaily(ctx, repo, date)
				return err
			})
			if err != nil {
				return err
			}
			if !ran {
				logging.Debug(ctx, "skipped, lock held",
					slog.String("repoId", repo.ID), slog.String("date", date))
				skipped++
				continue
			}
			processed++
		}

		// Alert evaluation rides on fresh metrics but must not fail the
		// computation job.
		if created, err := r.evaluator.EvaluateRepo(ctx, repo.ID, nil); err != nil {
			logging.Error(ctx, "alert evaluation failed",
				slog.String("repoId", repo.ID), slog.Any("error", errs.Loggable(err)))
		} else if len(created) > 0 {
			logging.Info(ctx, "alerts triggered",
				slog.String("repoId", repo.ID), slog.Int("alertCount", len(created)))
		}
	}

	logging.Info(ctx, "metrics computation complete",
		slog.Int("processed", processed),
		slog.Int("skipped", skipped),
		slog.Duration("duration", r.clock.Now().Sub(startedAt)),
	)
	return nil
}

func (r *Runner) TrackSurvival(ctx context.Context, job ports.ScheduledJob) error {
	startedAt := r.clock.Now()
	today := calendar.Today(startedAt, r.defaultLocation())

	repos, err := r.resolveRepos(ctx, job.RepoID)
	if err != nil {
		return err
	}
	logging.Info(ctx, "starting survival tracking", slog.Int("repos", len(repos)))

	var totalChecked int
	for _, repo := range repos {
		ran, err := r.withLock(ctx, "track-survival", repo.ID, today, func(ctx context.Context) error {
			result, err := r.service.TrackSurvival(ctx, repo)
			totalChecked += result.Checked
			return err
		})
		if err != nil {
			return err
		}
		if !ran {
			logging.Debug(ctx, "skipped, lock held", slog.String("repoId", repo.ID))
		}
	}

	logging.Info(ctx, "survival tracking complete",
		slog.Int("repos", len(repos)),
		slog.Int("totalChecked", totalChecked),
		slog.Duration("duration", r.clock.Now().Sub(startedAt)),
	)
	return nil
}

func (r *Runner) MonitorSaturation(ctx context.Context, job ports.ScheduledJob) error {
	startedAt := r.clock.Now()
	today := calendar.Today(startedAt, r.defaultLocation())

	repos, err := r.resolveRepos(ctx, job.RepoID)
	if err != nil {
		return err
	}
	logging.Info(ctx, "starting saturation monitoring", slog.Int("repos", len(repos)))

	var highSaturation int
	for _, repo := range repos {
		ran, err := r.withLock(ctx, "monitor-saturation", repo.ID, today, func(ctx context.Context) error {
			result, err := r.service.MonitorSaturation(ctx, repo)
			if err != nil {
				return err
			}
			if !result.HighSaturation {
				return nil
			}
			highSaturation++

			if _, err := r.evaluator.EvaluateRepo(ctx, repo.ID, &alerting.SaturationData{
				Saturation:      result.Saturation,
				ActiveReviewers: result.ActiveReviewers,
			}); err != nil {
				logging.Error(ctx, "alert evaluation failed",
					slog.String("repoId", repo.ID), slog.Any("error", errs.Loggable(err)))
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !ran {
			logging.Debug(ctx, "skipped, lock held", slog.String("repoId", repo.ID))
		}
	}

	logging.Info(ctx, "saturation monitoring complete",
		slog.Int("repos", len(repos)),
		slog.Int("highSaturation", highSaturation),
		slog.Duration("duration", r.clock.Now().Sub(startedAt)),
	)
	return nil
}

// withLock runs fn only when the (jobKind, repoID, date) lock is free.
// ran reports whether fn executed.
func (r *Runner) withLock(ctx context.Context, jobKind, repoID, date string, fn func(ctx context.Context) error) (ran bool, err error) {
	handle, acquired, err := r.locker.Acquire(ctx, jobKind, repoID, date)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		if _, releaseErr := r.locker.Release(ctx, handle); releaseErr != nil {
			logging.Warn(ctx, "lock release failed",
				slog.String("key", handle.Key), slog.Any("error", errs.Loggable(releaseErr)))
		}
	}()

	return true, fn(ctx)
}

func (r *Runner) resolveDates(job ports.ScheduledJob) ([]string, error) {
	if job.StartDate != "" && job.EndDate != "" {
		return calendar.DateRange(job.StartDate, job.EndDate)
	}
	if job.Date != "" {
		return []string{job.Date}, nil
	}
	return []string{calendar.DaysAgo(r.clock.Now(), 1, r.defaultLocation())}, nil
}

func (r *Runner) resolveRepos(ctx context.Context, repoID string) ([]ports.TrackedRepository, error) {
	if repoID != "" {
		repo, err := r.repos.Get(ctx, repoID)
		if err != nil {
			if errors.Is(err, ports.ErrRepositoryNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []ports.TrackedRepository{repo}, nil
	}
	return r.repos.ListActive(ctx)
}

func (r *Runner) defaultLocation() *time.Location {
	if r.defaultTZ == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.defaultTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
