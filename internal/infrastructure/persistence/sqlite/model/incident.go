package model

import "time"

type Incident struct {
	ID                 string     `gorm:"column:id;type:text;primaryKey"`
	RepoID             string     `gorm:"column:repo_id;type:text;not null;index:idx_incidents_repo_detected,priority:1"`
	ExternalID         string     `gorm:"column:external_id;type:text;not null;default:''"`
	Title              string     `gorm:"column:title;type:text;not null"`
	Severity           string     `gorm:"column:severity;type:text;not null"`
	Status             string     `gorm:"column:status;type:text;not null;default:investigating"`
	DetectedAt         time.Time  `gorm:"column:detected_at;not null;index:idx_incidents_repo_detected,priority:2"`
	ResolvedAt         *time.Time `gorm:"column:resolved_at"`
	SuspectedCommitSHA string     `gorm:"column:suspected_commit_sha;type:text;not null;default:''"`
	AffectedFilesJSON  string     `gorm:"column:affected_files_json;type:text;not null;default:'[]'"`
	AIAttributed       bool       `gorm:"column:ai_attributed;not null;default:0"`
	RootCause          string     `gorm:"column:root_cause;type:text;not null;default:''"`
	MetadataJSON       string     `gorm:"column:metadata_json;type:text;not null;default:'{}'"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
}

func (Incident) TableName() string {
	return "incidents"
}
