package metrics

import (
	"context"
	"log/slog"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/ports"
)

const (
	saturationWindowDays    = 7
	hoursPerReviewerPerDay  = 8
	highSaturationThreshold = 0.8
)

// SaturationResult is a point-in-time reading of review capacity over the
// trailing week.
type SaturationResult struct {
	ActiveReviewers   int
	AvgReviewTimeMins float64
	PRsPerDay         float64
	CapacityPerDay    float64
	Saturation        float64
	HighSaturation    bool
}

// MonitorSaturation measures the ratio of incoming PRs to review capacity
// over the last seven days.
func (s *Service) MonitorSaturation(ctx context.Context, repo ports.TrackedRepository) (SaturationResult, error) {
	ctx = logging.WithAttrs(ctx, slog.String("repoId", repo.ID))
	logging.Info(ctx, "monitoring review saturation")

	now := s.clock.Now().UTC()
	since := now.AddDate(0, 0, -saturationWindowDays)

	reviewers, err := s.events.CountDistinctReviewers(ctx, repo.ID, since)
	if err != nil {
		return SaturationResult{}, err
	}
	avgReviewMins, err := s.avgReviewTime(ctx, repo.ID, since, now)
	if err != nil {
		return SaturationResult{}, err
	}
	opened, err := s.events.CountByType(ctx, repo.ID, ports.EventPROpened, since, now)
	if err != nil {
		return SaturationResult{}, err
	}

	result := SaturationResult{
		ActiveReviewers:   int(reviewers),
		AvgReviewTimeMins: avgReviewMins,
		PRsPerDay:         float64(opened) / saturationWindowDays,
	}
	if avgReviewMins > 0 && reviewers > 0 {
		result.CapacityPerDay = float64(reviewers) * hoursPerReviewerPerDay * 60 / avgReviewMins
		if result.CapacityPerDay > 0 {
			result.Saturation = result.PRsPerDay / result.CapacityPerDay
		}
	}
	result.HighSaturation = result.Saturation > highSaturationThreshold

	attrs := []slog.Attr{
		slog.Int("reviewers", result.ActiveReviewers),
		slog.Float64("avgReviewMins", result.AvgReviewTimeMins),
		slog.Float64("prsPerDay", result.PRsPerDay),
		slog.Float64("capacity", result.CapacityPerDay),
		slog.Float64("saturation", result.Saturation),
	}
	if result.HighSaturation {
		logging.Warn(ctx, "review saturation high", attrs...)
	} else {
		logging.Info(ctx, "saturation check complete", attrs...)
	}
	return result, nil
}
