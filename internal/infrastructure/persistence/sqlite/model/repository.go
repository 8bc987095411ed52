package model

import "time"

type Repository struct {
	ID             string    `gorm:"column:id;type:text;primaryKey"`
	InstallationID int64     `gorm:"column:installation_id;not null;index"`
	GitHubID       int64     `gorm:"column:github_id;not null;uniqueIndex"`
	Owner          string    `gorm:"column:owner;type:text;not null"`
	Name           string    `gorm:"column:name;type:text;not null"`
	DefaultBranch  string    `gorm:"column:default_branch;type:text;not null;default:main"`
	IsActive       bool      `gorm:"column:is_active;not null;default:1"`
	Timezone       string    `gorm:"column:timezone;type:text;not null;default:''"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (Repository) TableName() string {
	return "repositories"
}
