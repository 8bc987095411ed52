package alerting

import (
	"fmt"
	"math"
	"strings"

	"sentinel/internal/ports"
)

// Severity levels as stored on alerts.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Trigger is the outcome of a rule that fired.
type Trigger struct {
	Title       string
	Message     string
	MetricValue float64
	Threshold   float64
	Metadata    map[string]any
}

// SaturationData carries the live review-capacity reading into rule
// evaluation. It is only present on saturation-monitor cycles.
type SaturationData struct {
	Saturation      float64
	ActiveReviewers int
}

// EvalContext is the input to metric-driven rules. Current and Previous may
// be nil when the repository has no computed metrics yet.
type EvalContext struct {
	Repo       ports.TrackedRepository
	Current    *ports.RepoMetric
	Previous   *ports.RepoMetric
	Saturation *SaturationData
}

// Rule pairs static routing (name, severity, channels) with a predicate
// over the evaluation context.
type Rule struct {
	Name     string
	Severity string
	Channels []string
	Evaluate func(ctx EvalContext) *Trigger
}

// metricRules are the rules evaluated on every metrics cycle. The
// event-driven rules (high_risk_deployed, incident_ai_attributed) fire from
// Triggers instead.
func metricRules(costPerHour float64) []Rule {
	return []Rule{
		{
			Name:     "ai_code_high",
			Severity: SeverityWarning,
			Channels: []string{ports.ChannelSlack},
			Evaluate: func(ctx EvalContext) *Trigger {
				if ctx.Current == nil {
					return nil
				}
				pct := ctx.Current.AICodePercentage
				if pct > 70 && pct <= 90 {
					return &Trigger{
						Title:       "AI Code Threshold Warning",
						Message:     fmt.Sprintf("AI code now at %.1f%% of codebase. Monitor for quality issues and review bottlenecks.", pct),
						MetricValue: pct,
						Threshold:   70,
					}
				}
				return nil
			},
		},
		{
			Name:     "ai_code_critical",
			Severity: SeverityCritical,
			Channels: []string{ports.ChannelSlack, ports.ChannelEmail},
			Evaluate: func(ctx EvalContext) *Trigger {
				if ctx.Current == nil {
					return nil
				}
				pct := ctx.Current.AICodePercentage
				if pct > 90 {
					return &Trigger{
						Title:       "AI Code Threshold Critical",
						Message:     fmt.Sprintf("CRITICAL: AI code at %.1f%%. Team may have lost manual code-writing capability. Immediate review recommended.", pct),
						MetricValue: pct,
						Threshold:   90,
					}
				}
				return nil
			},
		},
		{
			Name:     "verification_tax_spike",
			Severity: SeverityWarning,
			Channels: []string{ports.ChannelSlack},
			Evaluate: func(ctx EvalContext) *Trigger {
				if ctx.Current == nil || ctx.Previous == nil {
					return nil
				}
				current := ctx.Current.VerificationTaxHours
				previous := ctx.Previous.VerificationTaxHours
				if previous == 0 {
					return nil
				}

				threshold := previous * 1.5
				if current <= threshold {
					return nil
				}
				increase := (current - previous) / previous * 100
				return &Trigger{
					Title:       "Verification Tax Spike",
					Message:     fmt.Sprintf("Verification tax spiked to %.1fh (up %.0f%% from last week). Review saturation may be increasing.", current, increase),
					MetricValue: current,
					Threshold:   threshold,
					Metadata: map[string]any{
						"previousValue":   previous,
						"increasePercent": increase,
					},
				}
			},
		},
		{
			Name:     "verification_tax_absolute",
			Severity: SeverityCritical,
			Channels: []string{ports.ChannelSlack, ports.ChannelEmail},
			Evaluate: func(ctx EvalContext) *Trigger {
				if ctx.Current == nil {
					return nil
				}
				hours := ctx.Current.VerificationTaxHours
				if hours <= 80 {
					return nil
				}
				return &Trigger{
					Title: "Verification Tax Critical",
					Message: fmt.Sprintf(
						"Verification tax at %.1fh/week. That's %s/week (%s/month @ $%.0f/hr). Consider: reducing AI usage, adding reviewers, or automating boilerplate code reviews.",
						hours, formatCost(hours, costPerHour), formatCost(hours*4, costPerHour), costPerHour,
					),
					MetricValue: hours,
					Threshold:   80,
					Metadata: map[string]any{
						"estimatedCost": hours * costPerHour,
					},
				}
			},
		},
		{
			Name:     "review_saturation_high",
			Severity: SeverityWarning,
			Channels: []string{ports.ChannelSlack},
			Evaluate: func(ctx EvalContext) *Trigger {
				if ctx.Saturation == nil {
					return nil
				}
				saturation := ctx.Saturation.Saturation
				if saturation <= 0.8 {
					return nil
				}
				return &Trigger{
					Title:       "Review Saturation High",
					Message:     fmt.Sprintf("Review saturation at %.0f%%. Reviewers are approaching capacity limits. PRs may start queuing.", saturation*100),
					MetricValue: saturation,
					Threshold:   0.8,
					Metadata: map[string]any{
						"activeReviewers": ctx.Saturation.ActiveReviewers,
					},
				}
			},
		},
	}
}

func formatCost(hours float64, costPerHour float64) string {
	cost := int64(math.Round(hours * costPerHour))
	return "$" + groupThousands(cost)
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
