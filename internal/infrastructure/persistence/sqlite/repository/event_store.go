package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sentinel/internal/errs"
	"sentinel/internal/infrastructure/persistence/sqlite/model"
	"sentinel/internal/ports"
)

type EventStore struct {
	gormStore
}

var _ ports.EventStore = (*EventStore)(nil)

func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{gormStore{db: db}}
}

func (s *EventStore) Create(ctx context.Context, input ports.CodeEventCreate) (ports.CodeEvent, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.CodeEvent{}, err
	}

	metadata := input.MetadataJSON
	if metadata == "" {
		metadata = "{}"
	}

	row := model.CodeEvent{
		ID:           uuid.NewString(),
		RepoID:       input.RepoID,
		EventType:    input.EventType,
		Timestamp:    input.Timestamp.UTC(),
		CommitSHA:    input.CommitSHA,
		PRNumber:     input.PRNumber,
		AuthorLogin:  input.AuthorLogin,
		MetadataJSON: metadata,
		CreatedAt:    time.Now().UTC(),
	}

	if err := db.Create(&row).Error; err != nil {
		return ports.CodeEvent{}, errs.Wrap(err, "insert code event")
	}
	return mapCodeEvent(row), nil
}

func (s *EventStore) Get(ctx context.Context, id string) (ports.CodeEvent, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.CodeEvent{}, err
	}

	var row model.CodeEvent
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CodeEvent{}, ports.ErrEventNotFound
		}
		return ports.CodeEvent{}, errs.Wrap(err, "query code event")
	}
	return mapCodeEvent(row), nil
}

func (s *EventStore) CountByType(ctx context.Context, repoID string, eventType string, start time.Time, end time.Time) (int64, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.CodeEvent{}).
		Where("repo_id = ? AND event_type = ? AND timestamp >= ? AND timestamp < ?", repoID, eventType, start, end).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count code events")
	}
	return count, nil
}

func (s *EventStore) ListCommitSHAs(ctx context.Context, repoID string, start time.Time, end time.Time) ([]string, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var shas []string
	if err := db.Model(&model.CodeEvent{}).
		Where("repo_id = ? AND event_type = ? AND timestamp >= ? AND timestamp < ? AND commit_sha <> ''",
			repoID, ports.EventCommit, start, end).
		Pluck("commit_sha", &shas).Error; err != nil {
		return nil, errs.Wrap(err, "query commit shas")
	}
	return shas, nil
}

func (s *EventStore) ListMergedPRs(ctx context.Context, repoID string, start time.Time, end time.Time) ([]ports.CodeEvent, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.CodeEvent
	if err := db.
		Where("repo_id = ? AND event_type = ? AND timestamp >= ? AND timestamp < ? AND pr_number > 0",
			repoID, ports.EventPRMerged, start, end).
		Order("timestamp asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query merged prs")
	}

	items := make([]ports.CodeEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapCodeEvent(row))
	}
	return items, nil
}

func (s *EventStore) FirstOpenedForPR(ctx context.Context, repoID string, prNumber int) (ports.CodeEvent, bool, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.CodeEvent{}, false, err
	}

	var row model.CodeEvent
	if err := db.
		Where("repo_id = ? AND event_type = ? AND pr_number = ?", repoID, ports.EventPROpened, prNumber).
		Order("timestamp asc").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CodeEvent{}, false, nil
		}
		return ports.CodeEvent{}, false, errs.Wrap(err, "query first opened event")
	}
	return mapCodeEvent(row), true, nil
}

func (s *EventStore) CountDistinctReviewers(ctx context.Context, repoID string, since time.Time) (int64, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.CodeEvent{}).
		Where("repo_id = ? AND event_type = ? AND timestamp >= ?", repoID, ports.EventPRReviewed, since).
		Distinct("author_login").
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count distinct reviewers")
	}
	return count, nil
}

func mapCodeEvent(row model.CodeEvent) ports.CodeEvent {
	return ports.CodeEvent{
		ID:           row.ID,
		RepoID:       row.RepoID,
		EventType:    row.EventType,
		Timestamp:    row.Timestamp,
		CommitSHA:    row.CommitSHA,
		PRNumber:     row.PRNumber,
		AuthorLogin:  row.AuthorLogin,
		MetadataJSON: row.MetadataJSON,
	}
}
