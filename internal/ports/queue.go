package ports

import "context"

// Queue names. Each queue has its own durable stream and concurrency limit.
const (
	QueueWebhooks      = "webhooks"
	QueueAnalysis      = "analysis"
	QueueScheduled     = "scheduled"
	QueueNotifications = "notifications"
)

// Job is one unit of queued work. ID is the caller-assigned idempotency
// key: enqueueing the same ID twice within the dedup window is a no-op, so
// webhook redeliveries and scheduler races collapse at the queue layer.
type Job struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Payload []byte `json:"payload"`
}

// Queue provides at-least-once durable job submission.
type Queue interface {
	Enqueue(ctx context.Context, queue string, job Job) error
}

// JobHandler processes one delivered job. A returned error triggers the
// queue's backoff/redelivery policy up to its attempt budget.
type JobHandler func(ctx context.Context, job Job) error

// QueueConsumer pulls jobs from a queue with bounded concurrency until ctx
// is cancelled.
type QueueConsumer interface {
	Consume(ctx context.Context, queue string, concurrency int, handler JobHandler) error
}
