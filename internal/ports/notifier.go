package ports

import "context"

// Notification channel names as stored on alerts.
const (
	ChannelSlack     = "slack"
	ChannelEmail     = "email"
	ChannelPagerDuty = "pagerduty"
)

// ChannelSender delivers one alert over one channel. An unconfigured
// channel should log and return nil, not error.
type ChannelSender interface {
	Channel() string
	Send(ctx context.Context, alert Alert, repo TrackedRepository) error
}
