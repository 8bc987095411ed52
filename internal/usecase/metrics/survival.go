package metrics

import (
	"context"
	"encoding/json"
	"log/slog"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/domain/calendar"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

const survivalCohortDays = 30

// SurvivalResult summarizes one survival-tracking pass.
type SurvivalResult struct {
	Checked  int
	Survived int
	Failed   int
	Skipped  int
}

// TrackSurvival checks whether AI-attributed files from the day thirty days
// ago were touched again after that day. A later attribution for the same
// path counts as survival: the code is still alive and being worked on.
// Rows already checked today are skipped, so reruns are cheap.
func (s *Service) TrackSurvival(ctx context.Context, repo ports.TrackedRepository) (SurvivalResult, error) {
	loc, err := s.location(repo)
	if err != nil {
		return SurvivalResult{}, err
	}

	now := s.clock.Now()
	cohortDate := calendar.DaysAgo(now, survivalCohortDays, loc)
	today := calendar.Today(now, loc)

	ctx = logging.WithAttrs(ctx,
		slog.String("repoId", repo.ID), slog.String("cohortDate", cohortDate))
	logging.Info(ctx, "tracking code survival")

	start, end, err := calendar.DayWindow(cohortDate, loc)
	if err != nil {
		return SurvivalResult{}, err
	}

	cohort, err := s.attributions.ListAICohort(ctx, repo.ID, aiConfidenceFloor, start, end)
	if err != nil {
		return SurvivalResult{}, err
	}

	var result SurvivalResult
	for _, row := range cohort {
		signals := map[string]any{}
		if row.SignalsJSON != "" {
			if err := json.Unmarshal([]byte(row.SignalsJSON), &signals); err != nil {
				signals = map[string]any{}
			}
		}
		if checkedAt, _ := signals["survival_checked_at"].(string); checkedAt == today {
			result.Skipped++
			continue
		}
		result.Checked++

		survived, err := s.attributions.ExistsLaterForFile(ctx, repo.ID, row.FilePath, end)
		if err != nil {
			return result, err
		}
		if survived {
			result.Survived++
		} else {
			result.Failed++
		}

		signals["survival_checked_at"] = today
		signals["survived_30d"] = survived
		updated, err := json.Marshal(signals)
		if err != nil {
			return result, errs.Wrap(err, "encode survival signals")
		}
		if err := s.attributions.UpdateSignals(ctx, row.ID, string(updated)); err != nil {
			return result, err
		}
	}

	logging.Info(ctx, "survival tracking complete",
		slog.Int("checked", result.Checked),
		slog.Int("survived", result.Survived),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}
