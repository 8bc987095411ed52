package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

const dedupWindow = 24 * time.Hour

// Evaluator runs the metric-driven rules for a repository after each
// metrics cycle and queues notifications for everything that fires.
type Evaluator struct {
	repos   ports.RepositoryStore
	metrics ports.MetricStore
	alerts  ports.AlertStore
	queue   ports.Queue
	clock   ports.Clock
	rules   []Rule
}

func NewEvaluator(
	repos ports.RepositoryStore,
	metrics ports.MetricStore,
	alerts ports.AlertStore,
	queue ports.Queue,
	clock ports.Clock,
	costPerHour float64,
) *Evaluator {
	return &Evaluator{
		repos:   repos,
		metrics: metrics,
		alerts:  alerts,
		queue:   queue,
		clock:   clock,
		rules:   metricRules(costPerHour),
	}
}

// EvaluateRepo evaluates every metric rule against the repository's latest
// daily metrics. saturation may be nil outside saturation-monitor cycles.
func (e *Evaluator) EvaluateRepo(ctx context.Context, repoID string, saturation *SaturationData) ([]ports.Alert, error) {
	ctx = logging.WithAttrs(ctx, slog.String("repoId", repoID))

	repo, err := e.repos.Get(ctx, repoID)
	if err != nil {
		if errors.Is(err, ports.ErrRepositoryNotFound) {
			logging.Warn(ctx, "repository not found, skipping evaluation")
			return nil, nil
		}
		return nil, err
	}

	evalCtx := EvalContext{Repo: repo, Saturation: saturation}

	if current, found, err := e.metrics.Latest(ctx, repoID, ports.PeriodDay); err != nil {
		return nil, err
	} else if found {
		evalCtx.Current = &current
	}

	// The spike rule compares against the same weekday one week earlier.
	prevDate := e.clock.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02")
	if previous, found, err := e.metrics.Get(ctx, repoID, prevDate, ports.PeriodDay); err != nil {
		return nil, err
	} else if found {
		evalCtx.Previous = &previous
	}

	var created []ports.Alert
	for _, rule := range e.rules {
		trigger := rule.Evaluate(evalCtx)
		if trigger == nil {
			continue
		}

		alert, raised, err := createAndNotify(ctx, e.alerts, e.queue, e.clock, repoID, rule, *trigger)
		if err != nil {
			return created, err
		}
		if !raised {
			logging.Debug(ctx, "alert deduplicated", slog.String("rule", rule.Name))
			continue
		}

		created = append(created, alert)
		logging.Info(ctx, "alert triggered",
			slog.String("rule", rule.Name),
			slog.String("severity", rule.Severity),
			slog.Float64("value", trigger.MetricValue),
			slog.Float64("threshold", trigger.Threshold),
		)
	}

	logging.Info(ctx, "evaluation complete", slog.Int("triggered", len(created)))
	return created, nil
}

// createAndNotify applies the dedup window, stores the alert, and queues
// its notification job. raised is false when the window suppressed it.
func createAndNotify(
	ctx context.Context,
	alerts ports.AlertStore,
	queue ports.Queue,
	clock ports.Clock,
	repoID string,
	rule Rule,
	trigger Trigger,
) (ports.Alert, bool, error) {
	now := clock.Now().UTC()

	recent, err := alerts.ExistsSince(ctx, repoID, rule.Name, now.Add(-dedupWindow))
	if err != nil {
		return ports.Alert{}, false, err
	}
	if recent {
		return ports.Alert{}, false, nil
	}

	channels, err := json.Marshal(rule.Channels)
	if err != nil {
		return ports.Alert{}, false, errs.Wrap(err, "encode alert channels")
	}
	metadata := []byte("{}")
	if trigger.Metadata != nil {
		if metadata, err = json.Marshal(trigger.Metadata); err != nil {
			return ports.Alert{}, false, errs.Wrap(err, "encode alert metadata")
		}
	}

	alert, err := alerts.Create(ctx, ports.AlertCreate{
		RepoID:       repoID,
		RuleName:     rule.Name,
		Severity:     rule.Severity,
		Title:        trigger.Title,
		Message:      trigger.Message,
		MetricValue:  trigger.MetricValue,
		Threshold:    trigger.Threshold,
		ChannelsJSON: string(channels),
		MetadataJSON: string(metadata),
		TriggeredAt:  now,
	})
	if err != nil {
		return ports.Alert{}, false, err
	}

	payload, err := json.Marshal(ports.NotificationJob{AlertID: alert.ID})
	if err != nil {
		return ports.Alert{}, false, errs.Wrap(err, "encode notification job")
	}
	if err := queue.Enqueue(ctx, ports.QueueNotifications, ports.Job{
		ID:      "notify-" + alert.ID,
		Name:    "send-notification",
		Payload: payload,
	}); err != nil {
		return ports.Alert{}, false, err
	}
	return alert, true, nil
}
