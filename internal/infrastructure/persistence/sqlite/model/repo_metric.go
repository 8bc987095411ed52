package model

import "time"

type RepoMetric struct {
	ID                   string    `gorm:"column:id;type:text;primaryKey"`
	RepoID               string    `gorm:"column:repo_id;type:text;not null;uniqueIndex:idx_repo_metrics_repo_date_period,priority:1"`
	Date                 string    `gorm:"column:date;type:text;not null;uniqueIndex:idx_repo_metrics_repo_date_period,priority:2"`
	Period               string    `gorm:"column:period;type:text;not null;uniqueIndex:idx_repo_metrics_repo_date_period,priority:3"`
	TotalCommits         int       `gorm:"column:total_commits;not null;default:0"`
	AICommits            int       `gorm:"column:ai_commits;not null;default:0"`
	HumanCommits         int       `gorm:"column:human_commits;not null;default:0"`
	AICodePercentage     float64   `gorm:"column:ai_code_percentage;not null;default:0"`
	AvgReviewTimeMins    float64   `gorm:"column:avg_review_time_mins;not null;default:0"`
	HighRiskFileCount    int       `gorm:"column:high_risk_file_count;not null;default:0"`
	IncidentCount        int       `gorm:"column:incident_count;not null;default:0"`
	VerificationTaxHours float64   `gorm:"column:verification_tax_hours;not null;default:0"`
	ComputedAt           time.Time `gorm:"column:computed_at;not null"`
}

func (RepoMetric) TableName() string {
	return "repo_metrics"
}
