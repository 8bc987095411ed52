package model

import "time"

type CodeAttribution struct {
	ID           string    `gorm:"column:id;type:text;primaryKey"`
	RepoID       string    `gorm:"column:repo_id;type:text;not null;index"`
	CommitSHA    string    `gorm:"column:commit_sha;type:text;not null;uniqueIndex:idx_attribution_commit_file,priority:1"`
	FilePath     string    `gorm:"column:file_path;type:text;not null;uniqueIndex:idx_attribution_commit_file,priority:2"`
	AIConfidence float64   `gorm:"column:ai_confidence;not null"`
	Method       string    `gorm:"column:detection_method;type:text;not null"`
	SignalsJSON  string    `gorm:"column:detection_signals;type:text;not null;default:'{}'"`
	RiskTier     string    `gorm:"column:risk_tier;type:text;not null"`
	RiskScore    float64   `gorm:"column:risk_score;not null"`
	Explanation  string    `gorm:"column:risk_explanation;type:text;not null"`
	LinesAdded   int       `gorm:"column:lines_added;not null;default:0"`
	LinesDeleted int       `gorm:"column:lines_deleted;not null;default:0"`
	AnalyzedAt   time.Time `gorm:"column:analyzed_at;not null;index"`
}

func (CodeAttribution) TableName() string {
	return "code_attributions"
}
