package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

const (
	streamPrefix  = "SENTINEL_"
	subjectPrefix = "sentinel."

	// maxDeliveries bounds redelivery of a failing job before the stream
	// stops retrying it.
	maxDeliveries = 3

	dedupWindow = 24 * time.Hour
)

var backoff = []time.Duration{5 * time.Second, 30 * time.Second, 2 * time.Minute}

// JetStreamQueue implements ports.Queue and ports.QueueConsumer on NATS
// JetStream. Job IDs double as JetStream message IDs, so re-enqueueing the
// same ID inside the dedup window is dropped server-side.
type JetStreamQueue struct {
	js nats.JetStreamContext
}

var (
	_ ports.Queue         = (*JetStreamQueue)(nil)
	_ ports.QueueConsumer = (*JetStreamQueue)(nil)
)

func NewJetStreamQueue(nc *nats.Conn) (*JetStreamQueue, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, errs.Wrap(err, "open jetstream context")
	}

	q := &JetStreamQueue{js: js}
	for _, queue := range []string{
		ports.QueueWebhooks,
		ports.QueueAnalysis,
		ports.QueueScheduled,
		ports.QueueNotifications,
	} {
		if err := q.ensureStream(queue); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (q *JetStreamQueue) ensureStream(queue string) error {
	name := streamName(queue)
	cfg := &nats.StreamConfig{
		Name:       name,
		Subjects:   []string{subjectName(queue)},
		Retention:  nats.WorkQueuePolicy,
		Storage:    nats.FileStorage,
		Duplicates: dedupWindow,
	}

	_, err := q.js.StreamInfo(name)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, err := q.js.AddStream(cfg); err != nil {
			return errs.Wrapf(err, "create stream %s", name)
		}
		return nil
	default:
		return errs.Wrapf(err, "inspect stream %s", name)
	}
}

func (q *JetStreamQueue) Enqueue(ctx context.Context, queue string, job ports.Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return errs.Wrap(err, "encode job")
	}

	_, err = q.js.Publish(subjectName(queue), data,
		nats.MsgId(job.ID),
		nats.Context(ctx),
	)
	if err != nil {
		return errs.Wrapf(err, "publish job %s to %s", job.ID, queue)
	}
	return nil
}

// Consume pulls jobs with the given concurrency until ctx is cancelled.
// Handler errors trigger delayed redelivery up to maxDeliveries attempts.
func (q *JetStreamQueue) Consume(ctx context.Context, queue string, concurrency int, handler ports.JobHandler) error {
	if concurrency < 1 {
		concurrency = 1
	}

	sub, err := q.js.PullSubscribe(subjectName(queue), durableName(queue),
		nats.AckExplicit(),
		nats.MaxDeliver(maxDeliveries),
		nats.BackOff(backoff),
		nats.AckWait(5*time.Minute),
	)
	if err != nil {
		return errs.Wrapf(err, "subscribe to %s", queue)
	}
	defer func() { _ = sub.Unsubscribe() }()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.pullLoop(ctx, queue, sub, handler)
		}()
	}
	wg.Wait()
	return nil
}

func (q *JetStreamQueue) pullLoop(ctx context.Context, queue string, sub *nats.Subscription, handler ports.JobHandler) {
	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logging.Warn(ctx, "queue fetch failed",
				slog.String("queue", queue), slog.Any("error", errs.Loggable(err)))
			continue
		}

		for _, msg := range msgs {
			q.dispatch(ctx, queue, msg, handler)
		}
	}
}

func (q *JetStreamQueue) dispatch(ctx context.Context, queue string, msg *nats.Msg, handler ports.JobHandler) {
	var job ports.Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		logging.Error(ctx, "discarding undecodable job",
			slog.String("queue", queue), slog.Any("error", errs.Loggable(err)))
		_ = msg.Term()
		return
	}

	jobCtx := logging.WithAttrs(ctx,
		slog.String("queue", queue),
		slog.String("jobId", job.ID),
		slog.String("jobName", job.Name),
	)

	if err := handler(jobCtx, job); err != nil {
		logging.Warn(jobCtx, "job failed, scheduling redelivery", slog.Any("error", errs.Loggable(err)))
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func streamName(queue string) string {
	return streamPrefix + strings.ToUpper(queue)
}

func subjectName(queue string) string {
	return subjectPrefix + queue
}

func durableName(queue string) string {
	return fmt.Sprintf("sentinel-%s-worker", queue)
}
