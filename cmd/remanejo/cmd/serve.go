package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"remanejo/internal/cli"
	apphttp "remanejo/internal/http"
)

func newServeCmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reallocation HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = a.cfg.Port
			}
			rules, err := a.cfg.Rules()
			if err != nil {
				return err
			}
			_, res, err := a.backend(context.Background())
			if err != nil {
				return err
			}

			srv := apphttp.NewServer(":"+port, res.Service, rules, a.logger)
			_, done := cli.GracefulShutdown(a.logger, 30*time.Second, func(ctx context.Context) {
				if err := srv.Shutdown(ctx); err != nil {
					a.logger.Error("Server shutdown error", "error", err)
				}
				if err := res.Cleanup(); err != nil {
					a.logger.Error("Backend cleanup error", "error", err)
				}
			})

			a.logger.Info("Starting remanejo server", "port", port, "history_enabled", a.cfg.HistoryEnabled())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("Server error", "error", err, "port", port)
				_ = res.Cleanup()
				return err
			}

			<-done
			a.logger.Info("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}
