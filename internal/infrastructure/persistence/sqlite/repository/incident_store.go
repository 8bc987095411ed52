package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sentinel/internal/errs"
	"sentinel/internal/infrastructure/persistence/sqlite/model"
	"sentinel/internal/ports"
)

type IncidentStore struct {
	gormStore
}

var _ ports.IncidentStore = (*IncidentStore)(nil)

func NewIncidentStore(db *gorm.DB) *IncidentStore {
	return &IncidentStore{gormStore{db: db}}
}

func (s *IncidentStore) Create(ctx context.Context, input ports.IncidentCreate) (ports.Incident, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.Incident{}, err
	}

	status := input.Status
	if status == "" {
		status = "investigating"
	}
	affected := input.AffectedFilesJSON
	if affected == "" {
		affected = "[]"
	}
	metadata := input.MetadataJSON
	if metadata == "" {
		metadata = "{}"
	}

	row := model.Incident{
		ID:                 uuid.NewString(),
		RepoID:             input.RepoID,
		ExternalID:         input.ExternalID,
		Title:              input.Title,
		Severity:           input.Severity,
		Status:             status,
		DetectedAt:         input.DetectedAt.UTC(),
		SuspectedCommitSHA: input.SuspectedCommitSHA,
		AffectedFilesJSON:  affected,
		AIAttributed:       input.AIAttributed,
		RootCause:          input.RootCause,
		MetadataJSON:       metadata,
		CreatedAt:          time.Now().UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Incident{}, errs.Wrap(err, "insert incident")
	}
	return mapIncident(row), nil
}

func (s *IncidentStore) CountDetected(ctx context.Context, repoID string, start time.Time, end time.Time) (int64, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.Incident{}).
		Where("repo_id = ? AND detected_at >= ? AND detected_at < ?", repoID, start, end).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count incidents")
	}
	return count, nil
}

func mapIncident(row model.Incident) ports.Incident {
	return ports.Incident{
		ID:                 row.ID,
		RepoID:             row.RepoID,
		ExternalID:         row.ExternalID,
		Title:              row.Title,
		Severity:           row.Severity,
		Status:             row.Status,
		DetectedAt:         row.DetectedAt,
		ResolvedAt:         row.ResolvedAt,
		SuspectedCommitSHA: row.SuspectedCommitSHA,
		AffectedFilesJSON:  row.AffectedFilesJSON,
		AIAttributed:       row.AIAttributed,
		RootCause:          row.RootCause,
		MetadataJSON:       row.MetadataJSON,
	}
}
