package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"

	"sentinel/internal/bootstrap/config"
	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

const pagerDutyEndpoint = "https://events.pagerduty.com/v2/enqueue"

// PagerDutySender raises Events API v2 incidents. The dedup key is derived
// from (rule, repo) so PagerDuty collapses repeat triggers into one open
// incident.
type PagerDutySender struct {
	client       *resty.Client
	endpoint     string
	routingKey   string
	dashboardURL string
}

var _ ports.ChannelSender = (*PagerDutySender)(nil)

func NewPagerDutySender(cfg config.AlertingConfig) *PagerDutySender {
	return &PagerDutySender{
		client:       resty.New(),
		endpoint:     pagerDutyEndpoint,
		routingKey:   cfg.PagerDutyRoutingKey,
		dashboardURL: cfg.DashboardURL,
	}
}

func (s *PagerDutySender) Channel() string { return ports.ChannelPagerDuty }

func (s *PagerDutySender) Send(ctx context.Context, alert ports.Alert, repo ports.TrackedRepository) error {
	if s.routingKey == "" {
		logging.Info(ctx, "pagerduty routing key not configured, skipping", slog.String("alertId", alert.ID))
		return nil
	}

	dashboardLink := fmt.Sprintf("%s/repos/%s", s.dashboardURL, repo.ID)
	details := map[string]any{
		"rule":          alert.RuleName,
		"message":       alert.Message,
		"metricValue":   alert.MetricValue,
		"threshold":     alert.Threshold,
		"dashboard_url": dashboardLink,
	}
	if alert.MetadataJSON != "" {
		var metadata map[string]any
		if err := json.Unmarshal([]byte(alert.MetadataJSON), &metadata); err == nil {
			for k, v := range metadata {
				details[k] = v
			}
		}
	}

	payload := map[string]any{
		"routing_key":  s.routingKey,
		"event_action": "trigger",
		"dedup_key":    fmt.Sprintf("%s-%s", alert.RuleName, alert.RepoID),
		"payload": map[string]any{
			"summary":        alert.Title,
			"source":         repo.Owner + "/" + repo.Name,
			"severity":       pagerDutySeverity(alert.Severity),
			"custom_details": details,
		},
		"links": []map[string]any{
			{"href": dashboardLink, "text": "Open dashboard"},
		},
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(s.endpoint)
	if err != nil {
		return errs.Wrap(err, "post pagerduty event")
	}
	if resp.IsError() {
		return fmt.Errorf("pagerduty returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func pagerDutySeverity(severity string) string {
	switch severity {
	case "critical":
		return "critical"
	case "warning":
		return "warning"
	default:
		return "info"
	}
}
