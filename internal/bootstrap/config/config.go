package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
)

type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	NATS         NATSConfig         `mapstructure:"nats"`
	GitHub       GitHubConfig       `mapstructure:"github"`
	Admin        AdminConfig        `mapstructure:"admin"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Alerting     AlertingConfig     `mapstructure:"alerting"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type GitHubConfig struct {
	AppID         int64  `mapstructure:"app_id"`
	PrivateKey    string `mapstructure:"private_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type MetricsConfig struct {
	// Timezone is the reporting timezone for repositories that do not
	// override it in their settings.
	Timezone string `mapstructure:"timezone"`
}

type AlertingConfig struct {
	DashboardURL        string  `mapstructure:"dashboard_url"`
	SlackWebhookURL     string  `mapstructure:"slack_webhook_url"`
	ResendAPIKey        string  `mapstructure:"resend_api_key"`
	EmailFrom           string  `mapstructure:"email_from"`
	EmailTo             string  `mapstructure:"email_to"`
	PagerDutyRoutingKey string  `mapstructure:"pagerduty_routing_key"`
	CostPerHour         float64 `mapstructure:"cost_per_hour"`
}

type WorkerConfig struct {
	WebhookConcurrency      int `mapstructure:"webhook_concurrency"`
	AnalysisConcurrency     int `mapstructure:"analysis_concurrency"`
	NotificationConcurrency int `mapstructure:"notification_concurrency"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(logCtx, v)

	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("nats_url", cfg.NATS.URL),
		slog.String("redis_addr", cfg.Redis.Addr),
	)

	return cfg, nil
}

func setDefaults(ctx context.Context, v *viper.Viper) {
	if ctx == nil {
		return
	}

	v.SetDefault("app.name", "sentinel")
	v.SetDefault("app.env", "local")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".sentinel/state/sentinel.sqlite")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("metrics.timezone", "America/Los_Angeles")
	v.SetDefault("alerting.dashboard_url", "http://localhost:3000")
	v.SetDefault("alerting.email_from", "Sentinel <alerts@sentinel.dev>")
	v.SetDefault("alerting.cost_per_hour", 150)
	v.SetDefault("worker.webhook_concurrency", 5)
	v.SetDefault("worker.analysis_concurrency", 3)
	v.SetDefault("worker.notification_concurrency", 5)
}
