package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
	"sentinel/internal/usecase/alerting"
)

// Recorder turns queued webhook deliveries into code events and fans out
// analysis jobs.
type Recorder struct {
	repos        ports.RepositoryStore
	events       ports.EventStore
	attributions ports.AttributionStore
	queue        ports.Queue
	scm          ports.SourceControlClient
	triggers     *alerting.Triggers
	clock        ports.Clock
}

func NewRecorder(
	repos ports.RepositoryStore,
	events ports.EventStore,
	attributions ports.AttributionStore,
	queue ports.Queue,
	scm ports.SourceControlClient,
	triggers *alerting.Triggers,
	clock ports.Clock,
) *Recorder {
	return &Recorder{
		repos:        repos,
		events:       events,
		attributions: attributions,
		queue:        queue,
		scm:          scm,
		triggers:     triggers,
		clock:        clock,
	}
}

// ProcessWebhook handles one queued delivery. A missing repository is a
// non-error no-op: the repo was removed between enqueue and processing.
func (r *Recorder) ProcessWebhook(ctx context.Context, job ports.Job) error {
	var wj ports.WebhookJob
	if err := json.Unmarshal(job.Payload, &wj); err != nil {
		return errs.Wrap(err, "decode webhook job")
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("deliveryId", wj.DeliveryID),
		slog.String("event", wj.Event),
		slog.String("repoId", wj.RepoID),
	)

	repo, err := r.repos.Get(ctx, wj.RepoID)
	if err != nil {
		if errors.Is(err, ports.ErrRepositoryNotFound) {
			logging.Warn(ctx, "repo not found, skipping")
			return nil
		}
		return err
	}

	switch wj.Event {
	case "push":
		return r.handlePush(ctx, wj, repo)
	case "pull_request":
		return r.handlePullRequest(ctx, wj, repo)
	case "pull_request_review":
		return r.handleReview(ctx, wj)
	case "deployment_status":
		return r.handleDeploy(ctx, wj)
	default:
		logging.Warn(ctx, "unhandled event type")
		return nil
	}
}

func (r *Recorder) handlePush(ctx context.Context, wj ports.WebhookJob, repo ports.TrackedRepository) error {
	var payload struct {
		Ref     string `json:"ref"`
		Commits []struct {
			ID      string `json:"id"`
			Message string `json:"message"`
			Author  struct {
				Username string `json:"username"`
				Name     string `json:"name"`
			} `json:"author"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"commits"`
	}
	if err := json.Unmarshal(wj.Payload, &payload); err != nil {
		return errs.Wrap(err, "decode push payload")
	}

	logging.Info(ctx, "processing push", slog.Int("commitCount", len(payload.Commits)))

	for _, commit := range payload.Commits {
		author := commit.Author.Username
		if author == "" {
			author = commit.Author.Name
		}
		if author == "" {
			author = "unknown"
		}

		metadata, _ := json.Marshal(map[string]string{
			"message": commit.Message,
			"ref":     payload.Ref,
		})
		event, err := r.events.Create(ctx, ports.CodeEventCreate{
			RepoID:       wj.RepoID,
			EventType:    ports.EventCommit,
			Timestamp:    commit.Timestamp,
			CommitSHA:    commit.ID,
			AuthorLogin:  author,
			MetadataJSON: string(metadata),
		})
		if err != nil {
			return err
		}

		if err := r.enqueueAnalysis(ctx, wj, repo, event.ID, commit.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) handlePullRequest(ctx context.Context, wj ports.WebhookJob, repo ports.TrackedRepository) error {
	var payload struct {
		Action      string `json:"action"`
		Number      int    `json:"number"`
		PullRequest struct {
			Title          string     `json:"title"`
			User           struct{ Login string } `json:"user"`
			MergedAt       *time.Time `json:"merged_at"`
			MergeCommitSHA string     `json:"merge_commit_sha"`
		} `json:"pull_request"`
	}
	if err := json.Unmarshal(wj.Payload, &payload); err != nil {
		return errs.Wrap(err, "decode pull_request payload")
	}

	var eventType string
	switch {
	case payload.Action == "opened" || payload.Action == "reopened":
		eventType = ports.EventPROpened
	case payload.Action == "closed" && payload.PullRequest.MergedAt != nil:
		eventType = ports.EventPRMerged
	default:
		logging.Debug(ctx, "skipping PR action", slog.String("action", payload.Action))
		return nil
	}

	metadata, _ := json.Marshal(map[string]string{
		"title":  payload.PullRequest.Title,
		"action": payload.Action,
	})
	event, err := r.events.Create(ctx, ports.CodeEventCreate{
		RepoID:       wj.RepoID,
		EventType:    eventType,
		Timestamp:    r.clock.Now().UTC(),
		PRNumber:     payload.Number,
		CommitSHA:    payload.PullRequest.MergeCommitSHA,
		AuthorLogin:  payload.PullRequest.User.Login,
		MetadataJSON: string(metadata),
	})
	if err != nil {
		return err
	}

	logging.Info(ctx, "PR event recorded",
		slog.String("eventType", eventType), slog.Int("prNumber", payload.Number))

	// An opened PR fans out to per-commit analysis so the PR body can feed
	// the AI-mention signal.
	if eventType != ports.EventPROpened {
		return nil
	}

	shas, err := r.scm.ListPRCommits(ctx, wj.InstallationID, repo.Owner, repo.Name, payload.Number)
	if err != nil {
		return err
	}
	for _, sha := range shas {
		if err := r.enqueueAnalysis(ctx, wj, repo, event.ID, sha); err != nil {
			return err
		}
	}

	logging.Info(ctx, "queued PR commits for analysis",
		slog.Int("prNumber", payload.Number), slog.Int("commits", len(shas)))
	return nil
}

func (r *Recorder) handleReview(ctx context.Context, wj ports.WebhookJob) error {
	var payload struct {
		Action string `json:"action"`
		Review struct {
			User struct{ Login string } `json:"user"`
		} `json:"review"`
		PullRequest struct {
			Number int `json:"number"`
		} `json:"pull_request"`
	}
	if err := json.Unmarshal(wj.Payload, &payload); err != nil {
		return errs.Wrap(err, "decode review payload")
	}

	if payload.Action != "submitted" {
		return nil
	}

	metadata, _ := json.Marshal(map[string]string{"action": payload.Action})
	if _, err := r.events.Create(ctx, ports.CodeEventCreate{
		RepoID:       wj.RepoID,
		EventType:    ports.EventPRReviewed,
		Timestamp:    r.clock.Now().UTC(),
		PRNumber:     payload.PullRequest.Number,
		AuthorLogin:  payload.Review.User.Login,
		MetadataJSON: string(metadata),
	}); err != nil {
		return err
	}

	logging.Info(ctx, "PR review recorded", slog.Int("prNumber", payload.PullRequest.Number))
	return nil
}

func (r *Recorder) handleDeploy(ctx context.Context, wj ports.WebhookJob) error {
	var payload struct {
		DeploymentStatus struct {
			State string `json:"state"`
		} `json:"deployment_status"`
		Deployment struct {
			SHA         string `json:"sha"`
			Environment string `json:"environment"`
			Creator     struct{ Login string } `json:"creator"`
		} `json:"deployment"`
	}
	if err := json.Unmarshal(wj.Payload, &payload); err != nil {
		return errs.Wrap(err, "decode deployment payload")
	}

	if payload.DeploymentStatus.State != "success" {
		return nil
	}

	metadata, _ := json.Marshal(map[string]string{"environment": payload.Deployment.Environment})
	if _, err := r.events.Create(ctx, ports.CodeEventCreate{
		RepoID:       wj.RepoID,
		EventType:    ports.EventDeploy,
		Timestamp:    r.clock.Now().UTC(),
		CommitSHA:    payload.Deployment.SHA,
		AuthorLogin:  payload.Deployment.Creator.Login,
		MetadataJSON: string(metadata),
	}); err != nil {
		return err
	}

	logging.Info(ctx, "deploy recorded",
		slog.String("sha", payload.Deployment.SHA),
		slog.String("env", payload.Deployment.Environment))

	// Raise the deploy alert when the shipped commit carries confident
	// high-risk attributions.
	risky, err := r.attributions.ListHighRiskForCommit(ctx, wj.RepoID, payload.Deployment.SHA, 0.5)
	if err != nil {
		return err
	}
	if len(risky) == 0 {
		return nil
	}

	files := make([]string, 0, len(risky))
	for _, attribution := range risky {
		files = append(files, attribution.FilePath)
	}
	return r.triggers.HighRiskDeploy(ctx, wj.RepoID, files, payload.Deployment.SHA)
}

func (r *Recorder) enqueueAnalysis(ctx context.Context, wj ports.WebhookJob, repo ports.TrackedRepository, eventID string, sha string) error {
	payload, err := json.Marshal(ports.AnalysisJob{
		RepoID:         wj.RepoID,
		CommitSHA:      sha,
		EventID:        eventID,
		InstallationID: wj.InstallationID,
		Owner:          repo.Owner,
		Repo:           repo.Name,
	})
	if err != nil {
		return errs.Wrap(err, "encode analysis job")
	}

	return r.queue.Enqueue(ctx, ports.QueueAnalysis, ports.Job{
		ID:      fmt.Sprintf("analyze-%s-%s", eventID, sha),
		Name:    "analyze",
		Payload: payload,
	})
}
