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

type AlertStore struct {
	gormStore
}

var _ ports.AlertStore = (*AlertStore)(nil)

func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{gormStore{db: db}}
}

func (s *AlertStore) Create(ctx context.Context, input ports.AlertCreate) (ports.Alert, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.Alert{}, err
	}

	channels := input.ChannelsJSON
	if channels == "" {
		channels = "[]"
	}
	metadata := input.MetadataJSON
	if metadata == "" {
		metadata = "{}"
	}

	row := model.Alert{
		ID:           uuid.NewString(),
		RepoID:       input.RepoID,
		RuleName:     input.RuleName,
		Severity:     input.Severity,
		Title:        input.Title,
		Message:      input.Message,
		MetricValue:  input.MetricValue,
		Threshold:    input.Threshold,
		ChannelsJSON: channels,
		MetadataJSON: metadata,
		TriggeredAt:  input.TriggeredAt.UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Alert{}, errs.Wrap(err, "insert alert")
	}
	return mapAlert(row), nil
}

func (s *AlertStore) Get(ctx context.Context, id string) (ports.Alert, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.Alert{}, err
	}

	var row model.Alert
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Alert{}, ports.ErrAlertNotFound
		}
		return ports.Alert{}, errs.Wrap(err, "query alert")
	}
	return mapAlert(row), nil
}

func (s *AlertStore) ExistsSince(ctx context.Context, repoID string, ruleName string, since time.Time) (bool, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&model.Alert{}).
		Where("repo_id = ? AND rule_name = ? AND triggered_at >= ?", repoID, ruleName, since).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "query alert dedup window")
	}
	return count > 0, nil
}

func (s *AlertStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	at = at.UTC()
	if err := db.Model(&model.Alert{}).
		Where("id = ?", id).
		Update("sent_at", &at).Error; err != nil {
		return errs.Wrap(err, "mark alert sent")
	}
	return nil
}

func (s *AlertStore) Acknowledge(ctx context.Context, id string, actor string, at time.Time) (ports.Alert, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.Alert{}, err
	}

	at = at.UTC()
	result := db.Model(&model.Alert{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"acknowledged_at": &at,
			"acknowledged_by": actor,
		})
	if result.Error != nil {
		return ports.Alert{}, errs.Wrap(result.Error, "acknowledge alert")
	}
	if result.RowsAffected == 0 {
		return ports.Alert{}, ports.ErrAlertNotFound
	}
	return s.Get(ctx, id)
}

func mapAlert(row model.Alert) ports.Alert {
	return ports.Alert{
		ID:             row.ID,
		RepoID:         row.RepoID,
		RuleName:       row.RuleName,
		Severity:       row.Severity,
		Title:          row.Title,
		Message:        row.Message,
		MetricValue:    row.MetricValue,
		Threshold:      row.Threshold,
		ChannelsJSON:   row.ChannelsJSON,
		MetadataJSON:   row.MetadataJSON,
		TriggeredAt:    row.TriggeredAt,
		SentAt:         row.SentAt,
		AcknowledgedAt: row.AcknowledgedAt,
		AcknowledgedBy: row.AcknowledgedBy,
	}
}
