package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"sentinel/internal/ports"
)

type fakeEventStore struct {
	events map[string]ports.CodeEvent
}

func (f *fakeEventStore) Create(ctx context.Context, input ports.CodeEventCreate) (ports.CodeEvent, error) {
	return ports.CodeEvent{}, errors.New("not implemented")
}

func (f *fakeEventStore) Get(ctx context.Context, id string) (ports.CodeEvent, error) {
	event, ok := f.events[id]
	if !ok {
		return ports.CodeEvent{}, ports.ErrEventNotFound
	}
	return event, nil
}

func (f *fakeEventStore) CountByType(ctx context.Context, repoID, eventType string, start, end time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeEventStore) ListCommitSHAs(ctx context.Context, repoID string, start, end time.Time) ([]string, error) {
	return nil, nil
}

func (f *fakeEventStore) ListMergedPRs(ctx context.Context, repoID string, start, end time.Time) ([]ports.CodeEvent, error) {
	return nil, nil
}

func (f *fakeEventStore) FirstOpenedForPR(ctx context.Context, repoID string, prNumber int) (ports.CodeEvent, bool, error) {
	return ports.CodeEvent{}, false, nil
}

func (f *fakeEventStore) CountDistinctReviewers(ctx context.Context, repoID string, since time.Time) (int64, error) {
	return 0, nil
}

type fakeAttributionStore struct {
	existing map[string]bool
	batches  [][]ports.AttributionCreate
}

func (f *fakeAttributionStore) CreateBatch(ctx context.Context, inputs []ports.AttributionCreate) error {
	f.batches = append(f.batches, inputs)
	return nil
}

func (f *fakeAttributionStore) ExistsForCommit(ctx context.Context, repoID, commitSHA string) (bool, error) {
	return f.existing[commitSHA], nil
}

func (f *fakeAttributionStore) CountAICommits(ctx context.Context, repoID string, shas []string, minConfidence float64) (int64, error) {
	return 0, nil
}

func (f *fakeAttributionStore) CountHighRisk(ctx context.Context, repoID string, start, end time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeAttributionStore) ListAICohort(ctx context.Context, repoID string, minConfidence float64, start, end time.Time) ([]ports.Attribution, error) {
	return nil, nil
}

func (f *fakeAttributionStore) ExistsLaterForFile(ctx context.Context, repoID, filePath string, after time.Time) (bool, error) {
	return false, nil
}

func (f *fakeAttributionStore) ListHighRiskForCommit(ctx context.Context, repoID, commitSHA string, minConfidence float64) ([]ports.Attribution, error) {
	return nil, nil
}

func (f *fakeAttributionStore) UpdateSignals(ctx context.Context, id, signalsJSON string) error {
	return nil
}

type fakeSCM struct {
	commit      ports.CommitDetails
	pr          ports.PullRequestDetails
	prErr       error
	commitCalls int
	prCalls     int
}

func (f *fakeSCM) GetCommit(ctx context.Context, installationID int64, owner, repo, sha string) (ports.CommitDetails, error) {
	f.commitCalls++
	return f.commit, nil
}

func (f *fakeSCM) GetPullRequest(ctx context.Context, installationID int64, owner, repo string, number int) (ports.PullRequestDetails, error) {
	f.prCalls++
	if f.prErr != nil {
		return ports.PullRequestDetails{}, f.prErr
	}
	return f.pr, nil
}

func (f *fakeSCM) ListPRCommits(ctx context.Context, installationID int64, owner, repo string, number int) ([]string, error) {
	return nil, nil
}

type tickClock struct {
	now time.Time
}

func (c *tickClock) Now() time.Time { return c.now }

func analysisJob(t *testing.T, sha, eventID string) ports.Job {
	t.Helper()
	payload, err := json.Marshal(ports.AnalysisJob{
		RepoID:         "repo-1",
		CommitSHA:      sha,
		EventID:        eventID,
		InstallationID: 7,
		Owner:          "acme",
		Repo:           "api",
	})
	if err != nil {
		t.Fatalf("marshal analysis job: %v", err)
	}
	return ports.Job{ID: "analyze-" + eventID + "-" + sha, Name: "analyze", Payload: payload}
}

func TestProcessAnalysisPersistsPerFileRows(t *testing.T) {
	scm := &fakeSCM{commit: ports.CommitDetails{
		SHA:       "sha-a",
		Message:   "Add endpoints\n\nCo-Authored-By: Claude <noreply@anthropic.com>",
		Author:    "alice",
		Timestamp: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		Files: []ports.CommitFile{
			{Path: "src/auth/jwt.ts", Additions: 120, Deletions: 4},
			{Path: "src/auth/jwt.test.ts", Additions: 80, Deletions: 0},
		},
	}}
	attributions := &fakeAttributionStore{existing: map[string]bool{}}
	events := &fakeEventStore{events: map[string]ports.CodeEvent{}}
	clock := &tickClock{now: time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)}
	analyzer := NewAnalyzer(events, attributions, scm, clock)

	if err := analyzer.ProcessAnalysis(context.Background(), analysisJob(t, "sha-a", "evt-1")); err != nil {
		t.Fatalf("ProcessAnalysis: %v", err)
	}

	if len(attributions.batches) != 1 {
		t.Fatalf("CreateBatch calls = %d, want 1", len(attributions.batches))
	}
	rows := attributions.batches[0]
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want one per file", len(rows))
	}

	for _, row := range rows {
		if row.CommitSHA != "sha-a" || row.AIConfidence != 0.9 {
			t.Fatalf("row = %+v, want sha-a at confidence 0.9", row)
		}
		if row.Method != "heuristic" {
			t.Fatalf("method = %q, want heuristic", row.Method)
		}
		if !row.AnalyzedAt.Equal(clock.now) {
			t.Fatalf("analyzedAt = %v, want clock time", row.AnalyzedAt)
		}

		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal([]byte(row.SignalsJSON), &wrapper); err != nil {
			t.Fatalf("signals json: %v", err)
		}
		if _, ok := wrapper["signals"]; !ok {
			t.Fatalf("signals json %q missing signals key", row.SignalsJSON)
		}
	}
	if rows[0].FilePath != "src/auth/jwt.ts" || rows[0].LinesAdded != 120 {
		t.Fatalf("first row = %+v", rows[0])
	}
	// High confidence in auth code classifies as the top tier.
	if rows[0].RiskTier != "T4_novel" {
		t.Fatalf("risk tier = %q, want T4_novel", rows[0].RiskTier)
	}
}

func TestProcessAnalysisSkipsAnalyzedCommit(t *testing.T) {
	scm := &fakeSCM{}
	attributions := &fakeAttributionStore{existing: map[string]bool{"sha-a": true}}
	events := &fakeEventStore{events: map[string]ports.CodeEvent{}}
	analyzer := NewAnalyzer(events, attributions, scm, &tickClock{now: time.Now()})

	if err := analyzer.ProcessAnalysis(context.Background(), analysisJob(t, "sha-a", "evt-1")); err != nil {
		t.Fatalf("ProcessAnalysis: %v", err)
	}
	if scm.commitCalls != 0 {
		t.Fatalf("analyzed commit must not refetch the diff")
	}
	if len(attributions.batches) != 0 {
		t.Fatalf("analyzed commit must not write rows")
	}
}

func TestProcessAnalysisUsesPRBody(t *testing.T) {
	scm := &fakeSCM{
		commit: ports.CommitDetails{
			SHA:       "sha-b",
			Message:   "Wire checkout",
			Author:    "alice",
			Timestamp: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
			Files:     []ports.CommitFile{{Path: "src/checkout.ts", Additions: 20}},
		},
		pr: ports.PullRequestDetails{Number: 12, Body: "Implemented with Copilot and Cursor."},
	}
	attributions := &fakeAttributionStore{existing: map[string]bool{}}
	events := &fakeEventStore{events: map[string]ports.CodeEvent{
		"evt-1": {ID: "evt-1", PRNumber: 12},
	}}
	analyzer := NewAnalyzer(events, attributions, scm, &tickClock{now: time.Now()})

	if err := analyzer.ProcessAnalysis(context.Background(), analysisJob(t, "sha-b", "evt-1")); err != nil {
		t.Fatalf("ProcessAnalysis: %v", err)
	}

	if scm.prCalls != 1 {
		t.Fatalf("PR fetch calls = %d, want 1", scm.prCalls)
	}
	rows := attributions.batches[0]
	if rows[0].AIConfidence != 0.7 {
		t.Fatalf("confidence = %v, want 0.7 from the two-tool PR mention", rows[0].AIConfidence)
	}
}

func TestProcessAnalysisToleratesPRFetchFailure(t *testing.T) {
	scm := &fakeSCM{
		commit: ports.CommitDetails{
			SHA:       "sha-c",
			Message:   "Wire checkout",
			Timestamp: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
			Files:     []ports.CommitFile{{Path: "src/checkout.ts", Additions: 20}},
		},
		prErr: errors.New("api rate limited"),
	}
	attributions := &fakeAttributionStore{existing: map[string]bool{}}
	events := &fakeEventStore{events: map[string]ports.CodeEvent{
		"evt-1": {ID: "evt-1", PRNumber: 12},
	}}
	analyzer := NewAnalyzer(events, attributions, scm, &tickClock{now: time.Now()})

	if err := analyzer.ProcessAnalysis(context.Background(), analysisJob(t, "sha-c", "evt-1")); err != nil {
		t.Fatalf("PR fetch failure must not fail the job, got %v", err)
	}
	if len(attributions.batches) != 1 {
		t.Fatalf("rows should still be written without the PR body")
	}
}

func TestProcessAnalysisMissingEventStillAnalyzes(t *testing.T) {
	scm := &fakeSCM{
		commit: ports.CommitDetails{
			SHA:       "sha-d",
			Message:   "Tidy imports",
			Timestamp: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
			Files:     []ports.CommitFile{{Path: "src/app.ts", Additions: 3}},
		},
	}
	attributions := &fakeAttributionStore{existing: map[string]bool{}}
	events := &fakeEventStore{events: map[string]ports.CodeEvent{}}
	analyzer := NewAnalyzer(events, attributions, scm, &tickClock{now: time.Now()})

	if err := analyzer.ProcessAnalysis(context.Background(), analysisJob(t, "sha-d", "evt-missing")); err != nil {
		t.Fatalf("ProcessAnalysis: %v", err)
	}
	if scm.prCalls != 0 {
		t.Fatalf("missing event must not trigger a PR fetch")
	}
	if len(attributions.batches) != 1 {
		t.Fatalf("rows should still be written")
	}
}
