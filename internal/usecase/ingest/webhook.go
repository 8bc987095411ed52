package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

// ErrInvalidPayload marks a delivery body that is not valid JSON.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// Events the pipeline consumes. Everything else is acknowledged and
// dropped at the edge.
var supportedEvents = map[string]bool{
	"push":                true,
	"pull_request":        true,
	"pull_request_review": true,
	"deployment_status":   true,
}

// VerifySignature checks an X-Hub-Signature-256 header against the raw
// request body. Comparison is constant-time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || len(signature) < len("sha256=") || signature[:len("sha256=")] != "sha256=" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// RouteResult reports what the edge did with a delivery. Exactly one of
// Skipped and Queued is set.
type RouteResult struct {
	Skipped string
	Queued  string
}

// Router resolves an incoming delivery against tracked repositories and
// enqueues it for asynchronous processing. The delivery ID is the job ID,
// so provider redeliveries collapse at the queue.
type Router struct {
	repos ports.RepositoryStore
	queue ports.Queue
	clock ports.Clock
}

func NewRouter(repos ports.RepositoryStore, queue ports.Queue, clock ports.Clock) *Router {
	return &Router{repos: repos, queue: queue, clock: clock}
}

func (r *Router) Route(ctx context.Context, event string, deliveryID string, body []byte) (RouteResult, error) {
	if !supportedEvents[event] {
		return RouteResult{Skipped: "unsupported event"}, nil
	}

	var payload struct {
		Installation *struct {
			ID int64 `json:"id"`
		} `json:"installation"`
		Repository *struct {
			ID int64 `json:"id"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return RouteResult{}, ErrInvalidPayload
	}

	if payload.Installation == nil || payload.Installation.ID == 0 ||
		payload.Repository == nil || payload.Repository.ID == 0 {
		return RouteResult{Skipped: "not repo event"}, nil
	}

	repo, err := r.repos.GetByGitHubID(ctx, payload.Repository.ID)
	if err != nil {
		if errors.Is(err, ports.ErrRepositoryNotFound) {
			return RouteResult{Skipped: "untracked repo"}, nil
		}
		return RouteResult{}, err
	}
	if !repo.IsActive {
		return RouteResult{Skipped: "repo inactive"}, nil
	}

	job := ports.WebhookJob{
		DeliveryID:     deliveryID,
		Event:          event,
		InstallationID: payload.Installation.ID,
		RepoID:         repo.ID,
		Payload:        json.RawMessage(body),
		ReceivedAt:     r.clock.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return RouteResult{}, errs.Wrap(err, "encode webhook job")
	}

	if err := r.queue.Enqueue(ctx, ports.QueueWebhooks, ports.Job{
		ID:      deliveryID,
		Name:    event,
		Payload: data,
	}); err != nil {
		return RouteResult{}, err
	}

	logging.Info(ctx, "webhook queued",
		slog.String("deliveryId", deliveryID),
		slog.String("event", event),
		slog.String("repoId", repo.ID),
	)
	return RouteResult{Queued: deliveryID}, nil
}
