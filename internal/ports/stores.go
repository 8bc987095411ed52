package ports

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRepositoryNotFound = errors.New("tracked repository not found")
	ErrEventNotFound      = errors.New("code event not found")
	ErrAlertNotFound      = errors.New("alert not found")
)

// Code event kinds.
const (
	EventCommit     = "commit"
	EventPROpened   = "pr_opened"
	EventPRReviewed = "pr_reviewed"
	EventPRMerged   = "pr_merged"
	EventDeploy     = "deploy"
	EventIncident   = "incident"
)

// Metric periods.
const PeriodDay = "day"

// TrackedRepository is a repository the pipeline watches. Timezone is the
// repository's reporting timezone (IANA name); empty means the configured
// default applies.
type TrackedRepository struct {
	ID             string
	InstallationID int64
	GitHubID       int64
	Owner          string
	Name           string
	DefaultBranch  string
	IsActive       bool
	Timezone       string
	CreatedAt      time.Time
}

type RepositoryStore interface {
	GetByGitHubID(ctx context.Context, githubID int64) (TrackedRepository, error)
	Get(ctx context.Context, id string) (TrackedRepository, error)
	ListActive(ctx context.Context) ([]TrackedRepository, error)
}

// CodeEvent is one observed activity unit. Immutable once written.
// PRNumber is 0 for non-PR events; CommitSHA is empty when not applicable.
type CodeEvent struct {
	ID           string
	RepoID       string
	EventType    string
	Timestamp    time.Time
	CommitSHA    string
	PRNumber     int
	AuthorLogin  string
	MetadataJSON string
}

type CodeEventCreate struct {
	RepoID       string
	EventType    string
	Timestamp    time.Time
	CommitSHA    string
	PRNumber     int
	AuthorLogin  string
	MetadataJSON string
}

type EventStore interface {
	Create(ctx context.Context, input CodeEventCreate) (CodeEvent, error)
	Get(ctx context.Context, id string) (CodeEvent, error)
	CountByType(ctx context.Context, repoID string, eventType string, start time.Time, end time.Time) (int64, error)
	// ListCommitSHAs returns the non-empty commit SHAs of commit events in
	// [start, end).
	ListCommitSHAs(ctx context.Context, repoID string, start time.Time, end time.Time) ([]string, error)
	// ListMergedPRs returns pr_merged events with a PR number in [start, end).
	ListMergedPRs(ctx context.Context, repoID string, start time.Time, end time.Time) ([]CodeEvent, error)
	// FirstOpenedForPR returns the earliest pr_opened event for the PR number.
	FirstOpenedForPR(ctx context.Context, repoID string, prNumber int) (CodeEvent, bool, error)
	// CountDistinctReviewers counts distinct authors of pr_reviewed events
	// since the given instant.
	CountDistinctReviewers(ctx context.Context, repoID string, since time.Time) (int64, error)
}

// Attribution is the per-file AI-authorship record for a commit. Unique on
// (commit SHA, file path); re-analysis is a no-op. SignalsJSON holds the
// structured detection signals plus survival flags appended later.
type Attribution struct {
	ID           string
	RepoID       string
	CommitSHA    string
	FilePath     string
	AIConfidence float64
	Method       string
	SignalsJSON  string
	RiskTier     string
	RiskScore    float64
	Explanation  string
	LinesAdded   int
	LinesDeleted int
	AnalyzedAt   time.Time
}

type AttributionCreate struct {
	RepoID       string
	CommitSHA    string
	FilePath     string
	AIConfidence float64
	Method       string
	SignalsJSON  string
	RiskTier     string
	RiskScore    float64
	Explanation  string
	LinesAdded   int
	LinesDeleted int
	AnalyzedAt   time.Time
}

type AttributionStore interface {
	// CreateBatch inserts rows, silently skipping (commit_sha, file_path)
	// conflicts so concurrent retries stay idempotent.
	CreateBatch(ctx context.Context, inputs []AttributionCreate) error
	ExistsForCommit(ctx context.Context, repoID string, commitSHA string) (bool, error)
	// CountAICommits counts distinct commit SHAs among the given set whose
	// attribution confidence exceeds minConfidence.
	CountAICommits(ctx context.Context, repoID string, shas []string, minConfidence float64) (int64, error)
	CountHighRisk(ctx context.Context, repoID string, start time.Time, end time.Time) (int64, error)
	// ListAICohort returns attributions with confidence above minConfidence
	// analyzed within [start, end).
	ListAICohort(ctx context.Context, repoID string, minConfidence float64, start time.Time, end time.Time) ([]Attribution, error)
	ExistsLaterForFile(ctx context.Context, repoID string, filePath string, after time.Time) (bool, error)
	// ListHighRiskForCommit returns T3/T4 attributions above minConfidence
	// for one commit.
	ListHighRiskForCommit(ctx context.Context, repoID string, commitSHA string, minConfidence float64) ([]Attribution, error)
	UpdateSignals(ctx context.Context, id string, signalsJSON string) error
}

// RepoMetric is the per-repository, per-day rollup. Written by upsert on
// (repo id, date, period) so recomputation replaces prior values.
type RepoMetric struct {
	ID                   string
	RepoID               string
	Date                 string
	Period               string
	TotalCommits         int
	AICommits            int
	HumanCommits         int
	AICodePercentage     float64
	AvgReviewTimeMins    float64
	HighRiskFileCount    int
	IncidentCount        int
	VerificationTaxHours float64
	ComputedAt           time.Time
}

type RepoMetricUpsert struct {
	RepoID               string
	Date                 string
	Period               string
	TotalCommits         int
	AICommits            int
	HumanCommits         int
	AICodePercentage     float64
	AvgReviewTimeMins    float64
	HighRiskFileCount    int
	IncidentCount        int
	VerificationTaxHours float64
	ComputedAt           time.Time
}

type MetricStore interface {
	Upsert(ctx context.Context, input RepoMetricUpsert) error
	Latest(ctx context.Context, repoID string, period string) (RepoMetric, bool, error)
	Get(ctx context.Context, repoID string, date string, period string) (RepoMetric, bool, error)
}

// Alert is one triggered rule instance, retained as audit trail.
type Alert struct {
	ID             string
	RepoID         string
	RuleName       string
	Severity       string
	Title          string
	Message        string
	MetricValue    float64
	Threshold      float64
	ChannelsJSON   string
	MetadataJSON   string
	TriggeredAt    time.Time
	SentAt         *time.Time
	AcknowledgedAt *time.Time
	AcknowledgedBy string
}

type AlertCreate struct {
	RepoID       string
	RuleName     string
	Severity     string
	Title        string
	Message      string
	MetricValue  float64
	Threshold    float64
	ChannelsJSON string
	MetadataJSON string
	TriggeredAt  time.Time
}

type AlertStore interface {
	Create(ctx context.Context, input AlertCreate) (Alert, error)
	Get(ctx context.Context, id string) (Alert, error)
	// ExistsSince reports whether an alert for (repoID, ruleName) triggered
	// at or after the given instant. Drives the dedup window.
	ExistsSince(ctx context.Context, repoID string, ruleName string, since time.Time) (bool, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	Acknowledge(ctx context.Context, id string, actor string, at time.Time) (Alert, error)
}

// Incident is a production incident, optionally attributed to AI code.
type Incident struct {
	ID                 string
	RepoID             string
	ExternalID         string
	Title              string
	Severity           string
	Status             string
	DetectedAt         time.Time
	ResolvedAt         *time.Time
	SuspectedCommitSHA string
	AffectedFilesJSON  string
	AIAttributed       bool
	RootCause          string
	MetadataJSON       string
}

type IncidentCreate struct {
	RepoID             string
	ExternalID         string
	Title              string
	Severity           string
	Status             string
	DetectedAt         time.Time
	SuspectedCommitSHA string
	AffectedFilesJSON  string
	AIAttributed       bool
	RootCause          string
	MetadataJSON       string
}

type IncidentStore interface {
	Create(ctx context.Context, input IncidentCreate) (Incident, error)
	CountDetected(ctx context.Context, repoID string, start time.Time, end time.Time) (int64, error)
}
