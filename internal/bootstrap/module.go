package bootstrap

import (
	"context"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"sentinel/internal/bootstrap/config"
	"sentinel/internal/bootstrap/database"
	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/httpapi"
	cacheinfra "sentinel/internal/infrastructure/cache"
	githubinfra "sentinel/internal/infrastructure/github"
	lockinfra "sentinel/internal/infrastructure/lock"
	notifyinfra "sentinel/internal/infrastructure/notify"
	sqliterepo "sentinel/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "sentinel/internal/infrastructure/persistence/sqlite/uow"
	queueinfra "sentinel/internal/infrastructure/queue"
	"sentinel/internal/ports"
	"sentinel/internal/usecase/alerting"
	"sentinel/internal/usecase/analyze"
	"sentinel/internal/usecase/ingest"
	"sentinel/internal/usecase/metrics"
	usecasenotify "sentinel/internal/usecase/notify"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideClock),
	fx.Provide(provideRedis),
	fx.Provide(provideNATS),
	fx.Provide(provideQueue),
	fx.Provide(provideLocker),
	fx.Provide(provideCache),
	fx.Provide(provideSourceControl),
	fx.Provide(provideSenders),
	fx.Provide(
		fx.Annotate(sqliterepo.NewRepositoryStore, fx.As(new(ports.RepositoryStore))),
		fx.Annotate(sqliterepo.NewEventStore, fx.As(new(ports.EventStore))),
		fx.Annotate(sqliterepo.NewAttributionStore, fx.As(new(ports.AttributionStore))),
		fx.Annotate(sqliterepo.NewMetricStore, fx.As(new(ports.MetricStore))),
		fx.Annotate(sqliterepo.NewAlertStore, fx.As(new(ports.AlertStore))),
		fx.Annotate(sqliterepo.NewIncidentStore, fx.As(new(ports.IncidentStore))),
		fx.Annotate(sqliteuow.NewUnitOfWork, fx.As(new(ports.UnitOfWork))),
	),
	fx.Provide(provideEvaluator),
	fx.Provide(alerting.NewTriggers),
	fx.Provide(ingest.NewRouter),
	fx.Provide(ingest.NewRecorder),
	fx.Provide(analyze.NewAnalyzer),
	fx.Provide(provideMetricsService),
	fx.Provide(provideMetricsRunner),
	fx.Provide(usecasenotify.NewDispatcher),
	fx.Provide(queueinfra.NewScheduler),
	fx.Provide(httpapi.NewServer),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideClock() ports.Clock {
	return ports.SystemClock{}
}

func provideRedis(lc fx.Lifecycle, cfg config.Config) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return client.Close()
		},
	})
	return client
}

func provideNATS(lc fx.Lifecycle, cfg config.Config) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.App.Name))
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return nc.Drain()
		},
	})
	return nc, nil
}

type queueResult struct {
	fx.Out

	Queue    ports.Queue
	Consumer ports.QueueConsumer
}

func provideQueue(nc *nats.Conn) (queueResult, error) {
	q, err := queueinfra.NewJetStreamQueue(nc)
	if err != nil {
		return queueResult{}, err
	}
	return queueResult{Queue: q, Consumer: q}, nil
}

func provideLocker(client redis.UniversalClient) ports.Locker {
	return lockinfra.NewRedisLocker(client)
}

func provideCache(clock ports.Clock) ports.Cache {
	return cacheinfra.NewMemoryCache(clock)
}

func provideSourceControl(cfg config.Config, cache ports.Cache) ports.SourceControlClient {
	return githubinfra.NewClient(cfg.GitHub, cache)
}

func provideSenders(cfg config.Config) []ports.ChannelSender {
	return []ports.ChannelSender{
		notifyinfra.NewSlackSender(cfg.Alerting),
		notifyinfra.NewEmailSender(cfg.Alerting),
		notifyinfra.NewPagerDutySender(cfg.Alerting),
	}
}

func provideEvaluator(
	repos ports.RepositoryStore,
	metricStore ports.MetricStore,
	alerts ports.AlertStore,
	queue ports.Queue,
	clock ports.Clock,
	cfg config.Config,
) *alerting.Evaluator {
	return alerting.NewEvaluator(repos, metricStore, alerts, queue, clock, cfg.Alerting.CostPerHour)
}

func provideMetricsService(
	repos ports.RepositoryStore,
	events ports.EventStore,
	attributions ports.AttributionStore,
	incidents ports.IncidentStore,
	metricStore ports.MetricStore,
	clock ports.Clock,
	cfg config.Config,
) *metrics.Service {
	return metrics.NewService(repos, events, attributions, incidents, metricStore, clock, cfg.Metrics.Timezone)
}

func provideMetricsRunner(
	repos ports.RepositoryStore,
	service *metrics.Service,
	locker ports.Locker,
	evaluator *alerting.Evaluator,
	clock ports.Clock,
	cfg config.Config,
) *metrics.Runner {
	return metrics.NewRunner(repos, service, locker, evaluator, clock, cfg.Metrics.Timezone)
}
