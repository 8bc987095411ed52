package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sentinel/internal/errs"
	"sentinel/internal/infrastructure/persistence/sqlite/model"
	"sentinel/internal/ports"
)

type MetricStore struct {
	gormStore
}

var _ ports.MetricStore = (*MetricStore)(nil)

func NewMetricStore(db *gorm.DB) *MetricStore {
	return &MetricStore{gormStore{db: db}}
}

func (s *MetricStore) Upsert(ctx context.Context, input ports.RepoMetricUpsert) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.RepoMetric{
		ID:                   uuid.NewString(),
		RepoID:               input.RepoID,
		Date:                 input.Date,
		Period:               input.Period,
		TotalCommits:         input.TotalCommits,
		AICommits:            input.AICommits,
		HumanCommits:         input.HumanCommits,
		AICodePercentage:     input.AICodePercentage,
		AvgReviewTimeMins:    input.AvgReviewTimeMins,
		HighRiskFileCount:    input.HighRiskFileCount,
		IncidentCount:        input.IncidentCount,
		VerificationTaxHours: input.VerificationTaxHours,
		ComputedAt:           input.ComputedAt.UTC(),
	}

	// Recomputation for the same (repo, date, period) replaces the counters
	// rather than accumulating a second row.
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "repo_id"}, {Name: "date"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_commits", "ai_commits", "human_commits", "ai_code_percentage",
			"avg_review_time_mins", "high_risk_file_count", "incident_count",
			"verification_tax_hours", "computed_at",
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert repo metric")
	}
	return nil
}

func (s *MetricStore) Latest(ctx context.Context, repoID string, period string) (ports.RepoMetric, bool, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.RepoMetric{}, false, err
	}

	var row model.RepoMetric
	result := db.
		Where("repo_id = ? AND period = ?", repoID, period).
		Order("date desc").
		First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ports.RepoMetric{}, false, nil
		}
		return ports.RepoMetric{}, false, errs.Wrap(result.Error, "query latest repo metric")
	}
	return mapRepoMetric(row), true, nil
}

func (s *MetricStore) Get(ctx context.Context, repoID string, date string, period string) (ports.RepoMetric, bool, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.RepoMetric{}, false, err
	}

	var row model.RepoMetric
	result := db.
		Where("repo_id = ? AND date = ? AND period = ?", repoID, date, period).
		First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ports.RepoMetric{}, false, nil
		}
		return ports.RepoMetric{}, false, errs.Wrap(result.Error, "query repo metric")
	}
	return mapRepoMetric(row), true, nil
}

func mapRepoMetric(row model.RepoMetric) ports.RepoMetric {
	return ports.RepoMetric{
		ID:                   row.ID,
		RepoID:               row.RepoID,
		Date:                 row.Date,
		Period:               row.Period,
		TotalCommits:         row.TotalCommits,
		AICommits:            row.AICommits,
		HumanCommits:         row.HumanCommits,
		AICodePercentage:     row.AICodePercentage,
		AvgReviewTimeMins:    row.AvgReviewTimeMins,
		HighRiskFileCount:    row.HighRiskFileCount,
		IncidentCount:        row.IncidentCount,
		VerificationTaxHours: row.VerificationTaxHours,
		ComputedAt:           row.ComputedAt,
	}
}
