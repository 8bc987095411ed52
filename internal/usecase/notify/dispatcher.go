package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

// Dispatcher fans one alert out to its configured channels. Channels are
// independent: every channel is attempted even when an earlier one fails,
// and the alert is marked sent after the attempt either way, so a flaky
// channel cannot re-page the healthy ones on redelivery. The job errors
// only when every channel failed.
type Dispatcher struct {
	alerts  ports.AlertStore
	repos   ports.RepositoryStore
	senders map[string]ports.ChannelSender
	clock   ports.Clock
}

func NewDispatcher(
	alerts ports.AlertStore,
	repos ports.RepositoryStore,
	senders []ports.ChannelSender,
	clock ports.Clock,
) *Dispatcher {
	byChannel := make(map[string]ports.ChannelSender, len(senders))
	for _, sender := range senders {
		byChannel[sender.Channel()] = sender
	}
	return &Dispatcher{alerts: alerts, repos: repos, senders: byChannel, clock: clock}
}

func (d *Dispatcher) ProcessNotification(ctx context.Context, job ports.Job) error {
	var nj ports.NotificationJob
	if err := json.Unmarshal(job.Payload, &nj); err != nil {
		return errs.Wrap(err, "decode notification job")
	}

	ctx = logging.WithAttrs(ctx, slog.String("alertId", nj.AlertID))
	logging.Info(ctx, "processing notification")

	alert, err := d.alerts.Get(ctx, nj.AlertID)
	if err != nil {
		if errors.Is(err, ports.ErrAlertNotFound) {
			logging.Warn(ctx, "alert not found")
			return nil
		}
		return err
	}
	if alert.SentAt != nil {
		logging.Debug(ctx, "notification already sent")
		return nil
	}

	repo, err := d.repos.Get(ctx, alert.RepoID)
	if err != nil {
		if errors.Is(err, ports.ErrRepositoryNotFound) {
			logging.Warn(ctx, "repository not found")
			return nil
		}
		return err
	}

	var channels []string
	if err := json.Unmarshal([]byte(alert.ChannelsJSON), &channels); err != nil {
		return errs.Wrap(err, "decode alert channels")
	}

	var failed []string
	for _, channel := range channels {
		sender, ok := d.senders[channel]
		if !ok {
			logging.Warn(ctx, "unknown notification channel", slog.String("channel", channel))
			continue
		}
		if err := sender.Send(ctx, alert, repo); err != nil {
			logging.Error(ctx, "channel delivery failed",
				slog.String("channel", channel), slog.Any("error", errs.Loggable(err)))
			failed = append(failed, channel)
		}
	}

	if err := d.alerts.MarkSent(ctx, alert.ID, d.clock.Now().UTC()); err != nil {
		return err
	}

	if len(channels) > 0 && len(failed) == len(channels) {
		return fmt.Errorf("all notification channels failed: %v", failed)
	}

	logging.Info(ctx, "notification sent",
		slog.Any("channels", channels), slog.Int("failedChannels", len(failed)))
	return nil
}
