package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the queue consumers and periodic scheduler",
	RunE: withApp(func(cmd *cobra.Command, c container) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		workerCfg := c.App.Config.Worker
		consumers := []struct {
			queue       string
			concurrency int
			handler     ports.JobHandler
		}{
			{ports.QueueWebhooks, workerCfg.WebhookConcurrency, c.Recorder.ProcessWebhook},
			{ports.QueueAnalysis, workerCfg.AnalysisConcurrency, c.Analyzer.ProcessAnalysis},
			{ports.QueueScheduled, 1, c.Runner.HandleScheduled},
			{ports.QueueNotifications, workerCfg.NotificationConcurrency, c.Dispatcher.ProcessNotification},
		}

		var wg sync.WaitGroup
		for _, consumer := range consumers {
			consumer := consumer
			wg.Add(1)
			go func() {
				defer wg.Done()
				logging.Info(ctx, "consumer started",
					slog.String("queue", consumer.queue),
					slog.Int("concurrency", consumer.concurrency))
				if err := c.Consumer.Consume(ctx, consumer.queue, consumer.concurrency, consumer.handler); err != nil {
					logging.Error(ctx, "consumer stopped with error",
						slog.String("queue", consumer.queue), slog.Any("err", errs.Loggable(err)))
				}
			}()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			logging.Info(ctx, "scheduler started")
			c.Scheduler.Run(ctx)
		}()

		<-ctx.Done()
		logging.Info(context.Background(), "worker shutting down")
		wg.Wait()
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
