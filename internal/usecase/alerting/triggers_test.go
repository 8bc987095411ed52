package alerting

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"sentinel/internal/ports"
)

func TestHighRiskDeployAlert(t *testing.T) {
	alerts := &fakeAlertStore{}
	queue := &fakeQueue{}
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	triggers := NewTriggers(alerts, queue, clock)

	files := []string{"src/auth/jwt.ts", "src/auth/session.ts", "src/payment/charge.ts", "src/payment/refund.ts", "src/api/users.ts"}
	sha := "0123456789abcdef0123456789abcdef01234567"

	if err := triggers.HighRiskDeploy(context.Background(), "repo-1", files, sha); err != nil {
		t.Fatalf("HighRiskDeploy: %v", err)
	}

	if len(alerts.created) != 1 {
		t.Fatalf("created %d alerts, want 1", len(alerts.created))
	}
	alert := alerts.created[0]
	if alert.RuleName != "high_risk_deployed" {
		t.Fatalf("rule = %q", alert.RuleName)
	}
	if alert.Severity != SeverityCritical {
		t.Fatalf("severity = %q, want critical", alert.Severity)
	}
	if !strings.Contains(alert.Message, "(+2 more)") {
		t.Fatalf("message %q should truncate to 3 files", alert.Message)
	}
	if !strings.Contains(alert.Message, "0123456") || strings.Contains(alert.Message, sha) {
		t.Fatalf("message %q should use the short SHA", alert.Message)
	}
	if alert.MetricValue != 5 {
		t.Fatalf("metric value = %v, want 5", alert.MetricValue)
	}

	var channels []string
	if err := json.Unmarshal([]byte(alert.ChannelsJSON), &channels); err != nil {
		t.Fatalf("decode channels: %v", err)
	}
	if len(channels) != 2 || channels[1] != ports.ChannelPagerDuty {
		t.Fatalf("channels = %v, want [slack pagerduty]", channels)
	}

	var metadata map[string]any
	if err := json.Unmarshal([]byte(alert.MetadataJSON), &metadata); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if metadata["commitSha"] != sha {
		t.Fatalf("metadata commitSha = %v", metadata["commitSha"])
	}
	if got := metadata["files"].([]any); len(got) != 5 {
		t.Fatalf("metadata files = %v, want all 5", got)
	}

	if len(queue.jobs) != 1 || queue.jobs[0].job.ID != "notify-"+alert.ID {
		t.Fatalf("expected one queued notification for %s", alert.ID)
	}
}

func TestHighRiskDeployDedups(t *testing.T) {
	alerts := &fakeAlertStore{}
	queue := &fakeQueue{}
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	triggers := NewTriggers(alerts, queue, clock)

	for i := 0; i < 2; i++ {
		if err := triggers.HighRiskDeploy(context.Background(), "repo-1", []string{"src/auth/jwt.ts"}, "abc1234"); err != nil {
			t.Fatalf("HighRiskDeploy: %v", err)
		}
	}

	if len(alerts.created) != 1 {
		t.Fatalf("created %d alerts, want 1 after dedup", len(alerts.created))
	}
}

func TestIncidentAIAlert(t *testing.T) {
	alerts := &fakeAlertStore{}
	queue := &fakeQueue{}
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	triggers := NewTriggers(alerts, queue, clock)

	if err := triggers.IncidentAI(context.Background(), "repo-1", "Checkout 500s", "inc-42"); err != nil {
		t.Fatalf("IncidentAI: %v", err)
	}

	if len(alerts.created) != 1 {
		t.Fatalf("created %d alerts, want 1", len(alerts.created))
	}
	alert := alerts.created[0]
	if alert.RuleName != "incident_ai_attributed" {
		t.Fatalf("rule = %q", alert.RuleName)
	}
	if !strings.Contains(alert.Message, "Checkout 500s") {
		t.Fatalf("message %q should name the incident", alert.Message)
	}

	var metadata map[string]any
	if err := json.Unmarshal([]byte(alert.MetadataJSON), &metadata); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if metadata["incidentId"] != "inc-42" {
		t.Fatalf("metadata incidentId = %v", metadata["incidentId"])
	}
}
