package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyeonwoo-dev/qcgate/internal/server"
)

const shutdownGrace = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the qcgate HTTP API",
	Long: `Starts the REST API that the QC dashboard talks to: test plans,
execution progress, feedback, verification, and the executive summaries.
The server runs until interrupted and drains in-flight requests on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := buildServices()
		if err != nil {
			return err
		}
		defer svcs.close()

		svcs.fbRouter.Start()

		srv := server.New(
			server.SettingsFromConfig(svcs.cfg),
			server.Deps{
				Projects:   svcs.projects,
				Plans:      svcs.plans,
				Catalogue:  svcs.catalogue,
				Executions: svcs.executions,
				Feedback:   svcs.fbRouter,
				Reports:    svcs.reports,
				Dashboard:  svcs.dashboard,
				Activity:   svcs.activity,
				Events:     svcs.bus,
			},
			server.WithLogger(loggerPrintf()),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Start(ctx); err != nil {
			return err
		}
		logger.Info("serving",
			zap.String("addr", srv.Addr()),
			zap.String("data_dir", svcs.cfg.DataDir),
		)

		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
