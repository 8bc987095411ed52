package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"

	"sentinel/internal/bootstrap/config"
	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

const resendEndpoint = "https://api.resend.com/emails"

// EmailSender delivers alert mail through the Resend API.
type EmailSender struct {
	client       *resty.Client
	endpoint     string
	apiKey       string
	from         string
	to           []string
	dashboardURL string
}

var _ ports.ChannelSender = (*EmailSender)(nil)

func NewEmailSender(cfg config.AlertingConfig) *EmailSender {
	var to []string
	for _, addr := range strings.Split(cfg.EmailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return &EmailSender{
		client:       resty.New(),
		endpoint:     resendEndpoint,
		apiKey:       cfg.ResendAPIKey,
		from:         cfg.EmailFrom,
		to:           to,
		dashboardURL: cfg.DashboardURL,
	}
}

func (s *EmailSender) Channel() string { return ports.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, alert ports.Alert, repo ports.TrackedRepository) error {
	if s.apiKey == "" || len(s.to) == 0 {
		logging.Info(ctx, "email sender not configured, skipping", slog.String("alertId", alert.ID))
		return nil
	}

	repoName := repo.Owner + "/" + repo.Name
	body := fmt.Sprintf(`<div style="background: %s; padding: 16px 24px;">
  <h1 style="margin: 0; font-size: 18px; color: white;">Sentinel Alert</h1>
</div>
<h2>%s</h2>
<p>%s</p>
<table>
  <tr><td><strong>Repository</strong></td><td>%s</td></tr>
  <tr><td><strong>Severity</strong></td><td>%s</td></tr>
  <tr><td><strong>Rule</strong></td><td>%s</td></tr>
  <tr><td><strong>Value</strong></td><td>%.2f</td></tr>
  <tr><td><strong>Threshold</strong></td><td>%.2f</td></tr>
</table>
<p><a href="%s/repos/%s">Open the dashboard</a></p>`,
		severityColor(alert.Severity),
		html.EscapeString(alert.Title),
		html.EscapeString(alert.Message),
		html.EscapeString(repoName),
		html.EscapeString(alert.Severity),
		html.EscapeString(alert.RuleName),
		alert.MetricValue,
		alert.Threshold,
		s.dashboardURL,
		repo.ID,
	)

	payload := map[string]any{
		"from":    s.from,
		"to":      s.to,
		"subject": fmt.Sprintf("[%s] %s - %s", strings.ToUpper(alert.Severity), alert.Title, repoName),
		"html":    body,
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(s.endpoint)
	if err != nil {
		return errs.Wrap(err, "post resend email")
	}
	if resp.IsError() {
		return fmt.Errorf("resend returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
