package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"sentinel/internal/ports"
)

type fakeRepoStore struct {
	repos map[string]ports.TrackedRepository
}

func (f *fakeRepoStore) Get(ctx context.Context, id string) (ports.TrackedRepository, error) {
	repo, ok := f.repos[id]
	if !ok {
		return ports.TrackedRepository{}, ports.ErrRepositoryNotFound
	}
	return repo, nil
}

func (f *fakeRepoStore) GetByGitHubID(ctx context.Context, githubID int64) (ports.TrackedRepository, error) {
	return ports.TrackedRepository{}, ports.ErrRepositoryNotFound
}

func (f *fakeRepoStore) ListActive(ctx context.Context) ([]ports.TrackedRepository, error) {
	var out []ports.TrackedRepository
	for _, r := range f.repos {
		out = append(out, r)
	}
	return out, nil
}

type fakeMetricStore struct {
	latest  map[string]ports.RepoMetric
	byDate  map[string]ports.RepoMetric
	upserts []ports.RepoMetricUpsert
}

func (f *fakeMetricStore) Upsert(ctx context.Context, input ports.RepoMetricUpsert) error {
	f.upserts = append(f.upserts, input)
	return nil
}

func (f *fakeMetricStore) Latest(ctx context.Context, repoID string, period string) (ports.RepoMetric, bool, error) {
	m, ok := f.latest[repoID]
	return m, ok, nil
}

func (f *fakeMetricStore) Get(ctx context.Context, repoID string, date string, period string) (ports.RepoMetric, bool, error) {
	m, ok := f.byDate[repoID+"|"+date]
	return m, ok, nil
}

type fakeAlertStore struct {
	nextID  int
	created []ports.Alert
}

func (f *fakeAlertStore) Create(ctx context.Context, input ports.AlertCreate) (ports.Alert, error) {
	f.nextID++
	alert := ports.Alert{
		ID:           fmt.Sprintf("alert-%d", f.nextID),
		RepoID:       input.RepoID,
		RuleName:     input.RuleName,
		Severity:     input.Severity,
		Title:        input.Title,
		Message:      input.Message,
		MetricValue:  input.MetricValue,
		Threshold:    input.Threshold,
		ChannelsJSON: input.ChannelsJSON,
		MetadataJSON: input.MetadataJSON,
		TriggeredAt:  input.TriggeredAt,
	}
	f.created = append(f.created, alert)
	return alert, nil
}

func (f *fakeAlertStore) Get(ctx context.Context, id string) (ports.Alert, error) {
	for _, a := range f.created {
		if a.ID == id {
			return a, nil
		}
	}
	return ports.Alert{}, ports.ErrAlertNotFound
}

func (f *fakeAlertStore) ExistsSince(ctx context.Context, repoID string, ruleName string, since time.Time) (bool, error) {
	for _, a := range f.created {
		if a.RepoID == repoID && a.RuleName == ruleName && !a.TriggeredAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAlertStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	for i := range f.created {
		if f.created[i].ID == id {
			f.created[i].SentAt = &at
			return nil
		}
	}
	return ports.ErrAlertNotFound
}

func (f *fakeAlertStore) Acknowledge(ctx context.Context, id string, actor string, at time.Time) (ports.Alert, error) {
	for i := range f.created {
		if f.created[i].ID == id {
			f.created[i].AcknowledgedAt = &at
			f.created[i].AcknowledgedBy = actor
			return f.created[i], nil
		}
	}
	return ports.Alert{}, ports.ErrAlertNotFound
}

type queuedJob struct {
	queue string
	job   ports.Job
}

type fakeQueue struct {
	jobs []queuedJob
}

func (f *fakeQueue) Enqueue(ctx context.Context, queue string, job ports.Job) error {
	f.jobs = append(f.jobs, queuedJob{queue: queue, job: job})
	return nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newTestEvaluator(repos *fakeRepoStore, metrics *fakeMetricStore, alerts *fakeAlertStore, queue *fakeQueue, clock *fixedClock) *Evaluator {
	return NewEvaluator(repos, metrics, alerts, queue, clock, 150)
}

func TestEvaluateRepoCreatesAlertAndQueuesNotification(t *testing.T) {
	repos := &fakeRepoStore{repos: map[string]ports.TrackedRepository{
		"repo-1": {ID: "repo-1", Owner: "acme", Name: "api"},
	}}
	metrics := &fakeMetricStore{
		latest: map[string]ports.RepoMetric{
			"repo-1": {RepoID: "repo-1", AICodePercentage: 91, Date: "2024-06-15"},
		},
	}
	alerts := &fakeAlertStore{}
	queue := &fakeQueue{}
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}

	created, err := newTestEvaluator(repos, metrics, alerts, queue, clock).
		EvaluateRepo(context.Background(), "repo-1", nil)
	if err != nil {
		t.Fatalf("EvaluateRepo: %v", err)
	}

	if len(created) != 1 {
		t.Fatalf("created %d alerts, want 1", len(created))
	}
	alert := created[0]
	if alert.RuleName != "ai_code_critical" {
		t.Fatalf("rule = %q, want ai_code_critical", alert.RuleName)
	}
	if alert.Severity != SeverityCritical {
		t.Fatalf("severity = %q, want critical", alert.Severity)
	}

	var channels []string
	if err := json.Unmarshal([]byte(alert.ChannelsJSON), &channels); err != nil {
		t.Fatalf("decode channels: %v", err)
	}
	if len(channels) != 2 || channels[0] != ports.ChannelSlack || channels[1] != ports.ChannelEmail {
		t.Fatalf("channels = %v, want [slack email]", channels)
	}

	if len(queue.jobs) != 1 {
		t.Fatalf("queued %d jobs, want 1", len(queue.jobs))
	}
	if queue.jobs[0].queue != ports.QueueNotifications {
		t.Fatalf("queue = %q, want notifications", queue.jobs[0].queue)
	}
	if queue.jobs[0].job.ID != "notify-"+alert.ID {
		t.Fatalf("job id = %q, want notify-%s", queue.jobs[0].job.ID, alert.ID)
	}

	var payload ports.NotificationJob
	if err := json.Unmarshal(queue.jobs[0].job.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.AlertID != alert.ID {
		t.Fatalf("payload alert id = %q, want %q", payload.AlertID, alert.ID)
	}
}

func TestEvaluateRepoDedupsWithinWindow(t *testing.T) {
	repos := &fakeRepoStore{repos: map[string]ports.TrackedRepository{
		"repo-1": {ID: "repo-1"},
	}}
	metrics := &fakeMetricStore{
		latest: map[string]ports.RepoMetric{
			"repo-1": {RepoID: "repo-1", AICodePercentage: 75},
		},
	}
	alerts := &fakeAlertStore{}
	queue := &fakeQueue{}
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	evaluator := newTestEvaluator(repos, metrics, alerts, queue, clock)

	first, err := evaluator.EvaluateRepo(context.Background(), "repo-1", nil)
	if err != nil {
		t.Fatalf("first evaluation: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first evaluation created %d alerts, want 1", len(first))
	}

	// Twelve hours later the previous alert is still inside the window.
	clock.now = clock.now.Add(12 * time.Hour)
	second, err := evaluator.EvaluateRepo(context.Background(), "repo-1", nil)
	if err != nil {
		t.Fatalf("second evaluation: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second evaluation created %d alerts, want 0", len(second))
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("queued %d jobs total, want 1", len(queue.jobs))
	}

	// Past the window the rule fires again.
	clock.now = clock.now.Add(13 * time.Hour)
	third, err := evaluator.EvaluateRepo(context.Background(), "repo-1", nil)
	if err != nil {
		t.Fatalf("third evaluation: %v", err)
	}
	if len(third) != 1 {
		t.Fatalf("third evaluation created %d alerts, want 1", len(third))
	}
}

func TestEvaluateRepoUsesWeekOldBaseline(t *testing.T) {
	repos := &fakeRepoStore{repos: map[string]ports.TrackedRepository{
		"repo-1": {ID: "repo-1"},
	}}
	metrics := &fakeMetricStore{
		latest: map[string]ports.RepoMetric{
			"repo-1": {RepoID: "repo-1", VerificationTaxHours: 65},
		},
		byDate: map[string]ports.RepoMetric{
			"repo-1|2024-06-08": {RepoID: "repo-1", VerificationTaxHours: 40},
		},
	}
	alerts := &fakeAlertStore{}
	queue := &fakeQueue{}
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}

	created, err := newTestEvaluator(repos, metrics, alerts, queue, clock).
		EvaluateRepo(context.Background(), "repo-1", nil)
	if err != nil {
		t.Fatalf("EvaluateRepo: %v", err)
	}
	if len(created) != 1 || created[0].RuleName != "verification_tax_spike" {
		t.Fatalf("created = %+v, want single verification_tax_spike", created)
	}

	var metadata map[string]any
	if err := json.Unmarshal([]byte(created[0].MetadataJSON), &metadata); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if metadata["previousValue"].(float64) != 40 {
		t.Fatalf("previousValue = %v, want 40", metadata["previousValue"])
	}
}

func TestEvaluateRepoSaturationOnlyWithData(t *testing.T) {
	repos := &fakeRepoStore{repos: map[string]ports.TrackedRepository{
		"repo-1": {ID: "repo-1"},
	}}
	metrics := &fakeMetricStore{}
	alerts := &fakeAlertStore{}
	queue := &fakeQueue{}
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	evaluator := newTestEvaluator(repos, metrics, alerts, queue, clock)

	created, err := evaluator.EvaluateRepo(context.Background(), "repo-1", &SaturationData{
		Saturation:      0.95,
		ActiveReviewers: 2,
	})
	if err != nil {
		t.Fatalf("EvaluateRepo: %v", err)
	}
	if len(created) != 1 || created[0].RuleName != "review_saturation_high" {
		t.Fatalf("created = %+v, want single review_saturation_high", created)
	}
}

func TestEvaluateRepoUnknownRepoIsNoop(t *testing.T) {
	repos := &fakeRepoStore{repos: map[string]ports.TrackedRepository{}}
	alerts := &fakeAlertStore{}
	queue := &fakeQueue{}
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}

	created, err := newTestEvaluator(repos, &fakeMetricStore{}, alerts, queue, clock).
		EvaluateRepo(context.Background(), "ghost", nil)
	if err != nil {
		t.Fatalf("EvaluateRepo: %v", err)
	}
	if len(created) != 0 || len(queue.jobs) != 0 {
		t.Fatalf("unknown repo must not create alerts or jobs")
	}
}
