package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"sentinel/internal/errs"
	"sentinel/internal/infrastructure/persistence/sqlite/model"
	"sentinel/internal/ports"
)

type RepositoryStore struct {
	gormStore
}

var _ ports.RepositoryStore = (*RepositoryStore)(nil)

func NewRepositoryStore(db *gorm.DB) *RepositoryStore {
	return &RepositoryStore{gormStore{db: db}}
}

func (s *RepositoryStore) GetByGitHubID(ctx context.Context, githubID int64) (ports.TrackedRepository, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.TrackedRepository{}, err
	}

	var row model.Repository
	if err := db.Where("github_id = ?", githubID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.TrackedRepository{}, ports.ErrRepositoryNotFound
		}
		return ports.TrackedRepository{}, errs.Wrap(err, "query repository by github id")
	}
	return mapRepository(row), nil
}

func (s *RepositoryStore) Get(ctx context.Context, id string) (ports.TrackedRepository, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.TrackedRepository{}, err
	}

	var row model.Repository
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.TrackedRepository{}, ports.ErrRepositoryNotFound
		}
		return ports.TrackedRepository{}, errs.Wrap(err, "query repository")
	}
	return mapRepository(row), nil
}

func (s *RepositoryStore) ListActive(ctx context.Context) ([]ports.TrackedRepository, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Repository
	if err := db.Where("is_active = ?", true).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query active repositories")
	}

	items := make([]ports.TrackedRepository, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapRepository(row))
	}
	return items, nil
}

func mapRepository(row model.Repository) ports.TrackedRepository {
	return ports.TrackedRepository{
		ID:             row.ID,
		InstallationID: row.InstallationID,
		GitHubID:       row.GitHubID,
		Owner:          row.Owner,
		Name:           row.Name,
		DefaultBranch:  row.DefaultBranch,
		IsActive:       row.IsActive,
		Timezone:       row.Timezone,
		CreatedAt:      row.CreatedAt,
	}
}
