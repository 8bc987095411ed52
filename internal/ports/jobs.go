package ports

import (
	"encoding/json"
	"time"
)

// WebhookJob is the envelope queued by the webhook endpoint and consumed
// by the ingest worker. Payload is the raw provider event body.
type WebhookJob struct {
	DeliveryID     string          `json:"deliveryId"`
	Event          string          `json:"event"`
	InstallationID int64           `json:"installationId"`
	RepoID         string          `json:"repoId"`
	Payload        json.RawMessage `json:"payload"`
	ReceivedAt     time.Time       `json:"receivedAt"`
}

// AnalysisJob asks the analysis worker to attribute one commit.
type AnalysisJob struct {
	RepoID         string `json:"repoId"`
	CommitSHA      string `json:"commitSha"`
	EventID        string `json:"eventId"`
	InstallationID int64  `json:"installationId"`
	Owner          string `json:"owner"`
	Repo           string `json:"repo"`
}

// ScheduledJob parameterizes the recurring maintenance jobs. All fields
// are optional: an empty job means "yesterday, all active repositories".
type ScheduledJob struct {
	RepoID    string `json:"repoId,omitempty"`
	Date      string `json:"date,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// NotificationJob asks the dispatcher to deliver one stored alert.
type NotificationJob struct {
	AlertID string `json:"alertId"`
}
