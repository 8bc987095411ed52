package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/ports"
)

// Triggers raises the event-driven alerts that do not flow through metric
// evaluation: risky code reaching production and incidents pinned on AI
// code. The same dedup window applies.
type Triggers struct {
	alerts ports.AlertStore
	queue  ports.Queue
	clock  ports.Clock
}

func NewTriggers(alerts ports.AlertStore, queue ports.Queue, clock ports.Clock) *Triggers {
	return &Triggers{alerts: alerts, queue: queue, clock: clock}
}

func (t *Triggers) HighRiskDeploy(ctx context.Context, repoID string, files []string, commitSHA string) error {
	shortSHA := commitSHA
	if len(shortSHA) > 7 {
		shortSHA = shortSHA[:7]
	}

	listed := files
	var more string
	if len(listed) > 3 {
		more = fmt.Sprintf(" (+%d more)", len(listed)-3)
		listed = listed[:3]
	}

	rule := Rule{
		Name:     "high_risk_deployed",
		Severity: SeverityCritical,
		Channels: []string{ports.ChannelSlack, ports.ChannelPagerDuty},
	}
	trigger := Trigger{
		Title: "High-Risk AI Code Deployed",
		Message: fmt.Sprintf("High-risk AI code deployed to production.\n\nFiles: %s%s\n\nCommit: %s",
			strings.Join(listed, ", "), more, shortSHA),
		MetricValue: float64(len(files)),
		Threshold:   1,
		Metadata: map[string]any{
			"files":     files,
			"commitSha": commitSHA,
		},
	}

	alert, raised, err := createAndNotify(ctx, t.alerts, t.queue, t.clock, repoID, rule, trigger)
	if err != nil {
		return err
	}
	if raised {
		logging.Info(ctx, "high risk deploy alert raised",
			slog.String("repoId", repoID), slog.String("alertId", alert.ID))
	}
	return nil
}

func (t *Triggers) IncidentAI(ctx context.Context, repoID string, incidentTitle string, incidentID string) error {
	rule := Rule{
		Name:     "incident_ai_attributed",
		Severity: SeverityCritical,
		Channels: []string{ports.ChannelSlack, ports.ChannelPagerDuty},
	}
	trigger := Trigger{
		Title:       "Incident Attributed to AI Code",
		Message:     "Production incident attributed to AI-generated code.\n\nIncident: " + incidentTitle,
		MetricValue: 1,
		Threshold:   1,
		Metadata: map[string]any{
			"incidentId":    incidentID,
			"incidentTitle": incidentTitle,
		},
	}

	alert, raised, err := createAndNotify(ctx, t.alerts, t.queue, t.clock, repoID, rule, trigger)
	if err != nil {
		return err
	}
	if raised {
		logging.Info(ctx, "incident alert raised",
			slog.String("repoId", repoID), slog.String("alertId", alert.ID))
	}
	return nil
}
