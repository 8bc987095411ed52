package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (webhooks, admin, alerts)",
	RunE: withApp(func(cmd *cobra.Command, c container) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := c.App.Config.Server.Addr
		srv := &http.Server{
			Addr:              addr,
			Handler:           c.Server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		serveErr := make(chan error, 1)
		go func() {
			logging.Info(ctx, "http server listening", slog.String("addr", addr))
			serveErr <- srv.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errs.Wrap(err, "serve http")
			}
		case <-ctx.Done():
			logging.Info(ctx, "shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errs.Wrap(err, "shutdown http server")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
