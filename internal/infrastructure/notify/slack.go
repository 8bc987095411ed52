package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"

	"sentinel/internal/bootstrap/config"
	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

var severityColors = map[string]string{
	"critical": "#dc2626",
	"warning":  "#f59e0b",
	"info":     "#3b82f6",
}

func severityColor(severity string) string {
	if color, ok := severityColors[severity]; ok {
		return color
	}
	return "#6b7280"
}

// SlackSender posts alerts to an incoming-webhook URL using Block Kit.
type SlackSender struct {
	client       *resty.Client
	webhookURL   string
	dashboardURL string
}

var _ ports.ChannelSender = (*SlackSender)(nil)

func NewSlackSender(cfg config.AlertingConfig) *SlackSender {
	return &SlackSender{
		client:       resty.New(),
		webhookURL:   cfg.SlackWebhookURL,
		dashboardURL: cfg.DashboardURL,
	}
}

func (s *SlackSender) Channel() string { return ports.ChannelSlack }

func (s *SlackSender) Send(ctx context.Context, alert ports.Alert, repo ports.TrackedRepository) error {
	if s.webhookURL == "" {
		logging.Info(ctx, "slack webhook not configured, skipping", slog.String("alertId", alert.ID))
		return nil
	}

	repoName := repo.Owner + "/" + repo.Name
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": alert.Title},
		},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": alert.Message},
		},
		{
			"type": "section",
			"fields": []map[string]any{
				{"type": "mrkdwn", "text": "*Repository:*\n" + repoName},
				{"type": "mrkdwn", "text": "*Severity:*\n" + alert.Severity},
				{"type": "mrkdwn", "text": "*Rule:*\n" + alert.RuleName},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Value:*\n%.2f", alert.MetricValue)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Threshold:*\n%.2f", alert.Threshold)},
			},
		},
		{
			"type": "context",
			"elements": []map[string]any{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("<%s/repos/%s|View dashboard>", s.dashboardURL, repo.ID),
				},
			},
		},
	}
	payload := map[string]any{
		"attachments": []map[string]any{
			{
				"color":  severityColor(alert.Severity),
				"blocks": blocks,
			},
		},
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(s.webhookURL)
	if err != nil {
		return errs.Wrap(err, "post slack webhook")
	}
	if resp.IsError() {
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
