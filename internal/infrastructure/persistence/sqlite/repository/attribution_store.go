package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sentinel/internal/errs"
	"sentinel/internal/infrastructure/persistence/sqlite/model"
	"sentinel/internal/ports"
)

type AttributionStore struct {
	gormStore
}

var _ ports.AttributionStore = (*AttributionStore)(nil)

func NewAttributionStore(db *gorm.DB) *AttributionStore {
	return &AttributionStore{gormStore{db: db}}
}

func (s *AttributionStore) CreateBatch(ctx context.Context, inputs []ports.AttributionCreate) error {
	if len(inputs) == 0 {
		return nil
	}

	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	rows := make([]model.CodeAttribution, 0, len(inputs))
	for _, input := range inputs {
		signals := input.SignalsJSON
		if signals == "" {
			signals = "{}"
		}
		rows = append(rows, model.CodeAttribution{
			ID:           uuid.NewString(),
			RepoID:       input.RepoID,
			CommitSHA:    input.CommitSHA,
			FilePath:     input.FilePath,
			AIConfidence: input.AIConfidence,
			Method:       input.Method,
			SignalsJSON:  signals,
			RiskTier:     input.RiskTier,
			RiskScore:    input.RiskScore,
			Explanation:  input.Explanation,
			LinesAdded:   input.LinesAdded,
			LinesDeleted: input.LinesDeleted,
			AnalyzedAt:   input.AnalyzedAt.UTC(),
		})
	}

	// Conflicts on (commit_sha, file_path) are silently skipped so retried
	// analysis jobs stay idempotent.
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "commit_sha"}, {Name: "file_path"}},
		DoNothing: true,
	}).Create(&rows).Error; err != nil {
		return errs.Wrap(err, "insert attributions")
	}
	return nil
}

func (s *AttributionStore) ExistsForCommit(ctx context.Context, repoID string, commitSHA string) (bool, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&model.CodeAttribution{}).
		Where("repo_id = ? AND commit_sha = ?", repoID, commitSHA).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "query attribution existence")
	}
	return count > 0, nil
}

func (s *AttributionStore) CountAICommits(ctx context.Context, repoID string, shas []string, minConfidence float64) (int64, error) {
	if len(shas) == 0 {
		return 0, nil
	}

	db, err := s.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.CodeAttribution{}).
		Where("repo_id = ? AND commit_sha IN ? AND ai_confidence > ?", repoID, shas, minConfidence).
		Distinct("commit_sha").
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count ai commits")
	}
	return count, nil
}

func (s *AttributionStore) CountHighRisk(ctx context.Context, repoID string, start time.Time, end time.Time) (int64, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.CodeAttribution{}).
		Where("repo_id = ? AND risk_tier IN ? AND analyzed_at >= ? AND analyzed_at < ?",
			repoID, []string{"T3_core", "T4_novel"}, start, end).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count high risk attributions")
	}
	return count, nil
}

func (s *AttributionStore) ListAICohort(ctx context.Context, repoID string, minConfidence float64, start time.Time, end time.Time) ([]ports.Attribution, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.CodeAttribution
	if err := db.
		Where("repo_id = ? AND ai_confidence > ? AND analyzed_at >= ? AND analyzed_at < ?",
			repoID, minConfidence, start, end).
		Order("analyzed_at asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query ai cohort")
	}

	items := make([]ports.Attribution, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAttribution(row))
	}
	return items, nil
}

func (s *AttributionStore) ExistsLaterForFile(ctx context.Context, repoID string, filePath string, after time.Time) (bool, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&model.CodeAttribution{}).
		Where("repo_id = ? AND file_path = ? AND analyzed_at > ?", repoID, filePath, after).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "query later attribution")
	}
	return count > 0, nil
}

func (s *AttributionStore) ListHighRiskForCommit(ctx context.Context, repoID string, commitSHA string, minConfidence float64) ([]ports.Attribution, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.CodeAttribution
	if err := db.
		Where("repo_id = ? AND commit_sha = ? AND risk_tier IN ? AND ai_confidence > ?",
			repoID, commitSHA, []string{"T3_core", "T4_novel"}, minConfidence).
		Order("file_path asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query high risk attributions for commit")
	}

	items := make([]ports.Attribution, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAttribution(row))
	}
	return items, nil
}

func (s *AttributionStore) UpdateSignals(ctx context.Context, id string, signalsJSON string) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.CodeAttribution{}).
		Where("id = ?", id).
		Update("detection_signals", signalsJSON).Error; err != nil {
		return errs.Wrap(err, "update attribution signals")
	}
	return nil
}

func mapAttribution(row model.CodeAttribution) ports.Attribution {
	return ports.Attribution{
		ID:           row.ID,
		RepoID:       row.RepoID,
		CommitSHA:    row.CommitSHA,
		FilePath:     row.FilePath,
		AIConfidence: row.AIConfidence,
		Method:       row.Method,
		SignalsJSON:  row.SignalsJSON,
		RiskTier:     row.RiskTier,
		RiskScore:    row.RiskScore,
		Explanation:  row.Explanation,
		LinesAdded:   row.LinesAdded,
		LinesDeleted: row.LinesDeleted,
		AnalyzedAt:   row.AnalyzedAt,
	}
}
