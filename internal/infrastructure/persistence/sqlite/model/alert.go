package model

import "time"

type Alert struct {
	ID             string     `gorm:"column:id;type:text;primaryKey"`
	RepoID         string     `gorm:"column:repo_id;type:text;not null;index:idx_alerts_repo_rule_triggered,priority:1"`
	RuleName       string     `gorm:"column:rule_name;type:text;not null;index:idx_alerts_repo_rule_triggered,priority:2"`
	Severity       string     `gorm:"column:severity;type:text;not null"`
	Title          string     `gorm:"column:title;type:text;not null"`
	Message        string     `gorm:"column:message;type:text;not null"`
	MetricValue    float64    `gorm:"column:metric_value;not null;default:0"`
	Threshold      float64    `gorm:"column:threshold;not null;default:0"`
	ChannelsJSON   string     `gorm:"column:channels_json;type:text;not null;default:'[]'"`
	MetadataJSON   string     `gorm:"column:metadata_json;type:text;not null;default:'{}'"`
	TriggeredAt    time.Time  `gorm:"column:triggered_at;not null;index:idx_alerts_repo_rule_triggered,priority:3"`
	SentAt         *time.Time `gorm:"column:sent_at"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at"`
	AcknowledgedBy string     `gorm:"column:acknowledged_by;type:text;not null;default:''"`
}

func (Alert) TableName() string {
	return "alerts"
}
