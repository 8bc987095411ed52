package metrics

import (
	"context"
	"log/slog"
	"time"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/domain/calendar"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

// DailyResult is the computed per-day rollup before persistence.
type DailyResult struct {
	TotalCommits         int
	AICommits            int
	HumanCommits         int
	AICodePercentage     float64
	AvgReviewTimeMins    float64
	HighRiskFileCount    int
	IncidentCount        int
	VerificationTaxHours float64
}

// aiConfidenceFloor separates AI-attributed commits from the rest across
// every metric that buckets by authorship.
const aiConfidenceFloor = 0.5

// Service computes the daily, saturation, and survival metrics for one
// repository at a time.
type Service struct {
	repos        ports.RepositoryStore
	events       ports.EventStore
	attributions ports.AttributionStore
	incidents    ports.IncidentStore
	metrics      ports.MetricStore
	clock        ports.Clock
	defaultTZ    string
}

func NewService(
	repos ports.RepositoryStore,
	events ports.EventStore,
	attributions ports.AttributionStore,
	incidents ports.IncidentStore,
	metrics ports.MetricStore,
	clock ports.Clock,
	defaultTimezone string,
) *Service {
	return &Service{
		repos:        repos,
		events:       events,
		attributions: attributions,
		incidents:    incidents,
		metrics:      metrics,
		clock:        clock,
		defaultTZ:    defaultTimezone,
	}
}

// location resolves the reporting timezone for a repository. Falls back to
// the configured default, then UTC.
func (s *Service) location(repo ports.TrackedRepository) (*time.Location, error) {
	name := repo.Timezone
	if name == "" {
		name = s.defaultTZ
	}
	if name == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errs.Wrapf(err, "load timezone %q", name)
	}
	return loc, nil
}

// ComputeDaily computes and upserts the rollup for one repository and civil
// date. Recomputation replaces the stored row, so reruns are safe.
func (s *Service) ComputeDaily(ctx context.Context, repo ports.TrackedRepository, date string) (DailyResult, error) {
	ctx = logging.WithAttrs(ctx, slog.String("repoId", repo.ID), slog.String("date", date))
	logging.Info(ctx, "computing daily metrics")

	loc, err := s.location(repo)
	if err != nil {
		return DailyResult{}, err
	}
	start, end, err := calendar.DayWindow(date, loc)
	if err != nil {
		return DailyResult{}, err
	}

	totalCommits, err := s.events.CountByType(ctx, repo.ID, ports.EventCommit, start, end)
	if err != nil {
		return DailyResult{}, err
	}

	shas, err := s.events.ListCommitSHAs(ctx, repo.ID, start, end)
	if err != nil {
		return DailyResult{}, err
	}
	aiCommits, err := s.attributions.CountAICommits(ctx, repo.ID, shas, aiConfidenceFloor)
	if err != nil {
		return DailyResult{}, err
	}

	humanCommits := totalCommits - aiCommits
	if humanCommits < 0 {
		humanCommits = 0
	}
	var aiPct float64
	if totalCommits > 0 {
		aiPct = float64(aiCommits) / float64(totalCommits) * 100
	}

	avgReviewMins, err := s.avgReviewTime(ctx, repo.ID, start, end)
	if err != nil {
		return DailyResult{}, err
	}

	highRisk, err := s.attributions.CountHighRisk(ctx, repo.ID, start, end)
	if err != nil {
		return DailyResult{}, err
	}
	incidentCount, err := s.incidents.CountDetected(ctx, repo.ID, start, end)
	if err != nil {
		return DailyResult{}, err
	}

	var verificationTax float64
	if avgReviewMins > 0 {
		verificationTax = avgReviewMins * float64(aiCommits) / 60
	}

	result := DailyResult{
		TotalCommits:         int(totalCommits),
		AICommits:            int(aiCommits),
		HumanCommits:         int(humanCommits),
		AICodePercentage:     aiPct,
		AvgReviewTimeMins:    avgReviewMins,
		HighRiskFileCount:    int(highRisk),
		IncidentCount:        int(incidentCount),
		VerificationTaxHours: verificationTax,
	}

	if err := s.metrics.Upsert(ctx, ports.RepoMetricUpsert{
		RepoID:               repo.ID,
		Date:                 date,
		Period:               ports.PeriodDay,
		TotalCommits:         result.TotalCommits,
		AICommits:            result.AICommits,
		HumanCommits:         result.HumanCommits,
		AICodePercentage:     result.AICodePercentage,
		AvgReviewTimeMins:    result.AvgReviewTimeMins,
		HighRiskFileCount:    result.HighRiskFileCount,
		IncidentCount:        result.IncidentCount,
		VerificationTaxHours: result.VerificationTaxHours,
		ComputedAt:           s.clock.Now().UTC(),
	}); err != nil {
		return DailyResult{}, err
	}

	logging.Info(ctx, "daily metrics computed",
		slog.Int("totalCommits", result.TotalCommits),
		slog.Int("aiCommits", result.AICommits),
		slog.Float64("aiCodePercentage", result.AICodePercentage),
		slog.Float64("avgReviewTimeMins", result.AvgReviewTimeMins),
		slog.Int("highRiskFileCount", result.HighRiskFileCount),
		slog.Int("incidentCount", result.IncidentCount),
	)
	return result, nil
}

// avgReviewTime averages open-to-merge minutes for PRs merged in the
// window. Merges whose opening event is missing or out of order are left
// out rather than skewing the mean.
func (s *Service) avgReviewTime(ctx context.Context, repoID string, start, end time.Time) (float64, error) {
	merged, err := s.events.ListMergedPRs(ctx, repoID, start, end)
	if err != nil {
		return 0, err
	}
	if len(merged) == 0 {
		return 0, nil
	}

	var sum float64
	var count int
	for _, pr := range merged {
		opened, found, err := s.events.FirstOpenedForPR(ctx, repoID, pr.PRNumber)
		if err != nil {
			return 0, err
		}
		if !found {
			continue
		}

		mins := pr.Timestamp.Sub(opened.Timestamp).Minutes()
		if mins > 0 {
			sum += mins
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}
