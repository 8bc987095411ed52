package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"sentinel/internal/bootstrap"
	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/httpapi"
	"sentinel/internal/ports"
	"sentinel/internal/usecase/analyze"
	"sentinel/internal/usecase/ingest"
	"sentinel/internal/usecase/metrics"
	"sentinel/internal/usecase/notify"

	queueinfra "sentinel/internal/infrastructure/queue"
)

// container collects everything a command may need out of the fx graph.
type container struct {
	fx.In

	App        *bootstrap.App
	Server     *httpapi.Server
	Consumer   ports.QueueConsumer
	Recorder   *ingest.Recorder
	Analyzer   *analyze.Analyzer
	Runner     *metrics.Runner
	Dispatcher *notify.Dispatcher
	Scheduler  *queueinfra.Scheduler
}

func withApp(run func(cmd *cobra.Command, c container) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var c container
		fxApp := fx.New(
			bootstrap.Module,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&c),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := run(cmd, c); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
