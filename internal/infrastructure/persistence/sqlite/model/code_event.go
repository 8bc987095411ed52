package model

import "time"

type CodeEvent struct {
	ID           string    `gorm:"column:id;type:text;primaryKey"`
	RepoID       string    `gorm:"column:repo_id;type:text;not null;index:idx_code_events_repo_type_ts,priority:1"`
	EventType    string    `gorm:"column:event_type;type:text;not null;index:idx_code_events_repo_type_ts,priority:2"`
	Timestamp    time.Time `gorm:"column:timestamp;not null;index:idx_code_events_repo_type_ts,priority:3"`
	CommitSHA    string    `gorm:"column:commit_sha;type:text;not null;default:''"`
	PRNumber     int       `gorm:"column:pr_number;not null;default:0"`
	AuthorLogin  string    `gorm:"column:author_login;type:text;not null"`
	MetadataJSON string    `gorm:"column:metadata_json;type:text;not null;default:'{}'"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

func (CodeEvent) TableName() string {
	return "code_events"
}
