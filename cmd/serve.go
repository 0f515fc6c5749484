package cmd

import (
	"os/signal"
	"syscall"

	"github.com/dt-pm-tools/board-sync/internal/boardsync"
	"github.com/dt-pm-tools/board-sync/internal/deadline"
	"github.com/dt-pm-tools/board-sync/internal/metrics"
	"github.com/dt-pm-tools/board-sync/internal/monday"
	"github.com/dt-pm-tools/board-sync/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook service",
	Long: `Starts the HTTP service:

  POST /webhook       column-change webhook, syncs the item to the target board
  POST /sla-deadline  integration action, writes the SLA deadline
  GET  /healthz       liveness
  GET  /metrics       prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		addr := appConfig.Listen
		if listenAddr != "" {
			addr = listenAddr
		}

		m := metrics.New()
		client := monday.NewClient(appConfig, monday.WithObserver(m))
		syncer := boardsync.NewSyncer(client, appConfig, appLog)
		deadlines, err := deadline.NewService(client, appConfig, appLog)
		if err != nil {
			return err
		}

		if err := appConfig.ValidateSync(); err != nil {
			appLog.WithError(err).Warn("Sync settings incomplete, /webhook will answer 500.")
		}

		appLog.WithFields(logrus.Fields{
			"version":      version,
			"target_board": appConfig.Target.BoardID,
			"monitored":    appConfig.Source.Columns.IDs(),
		}).Info("boardsync starting.")

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return server.New(appConfig, syncer, deadlines, m, appLog).Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides config and PORT)")
	rootCmd.AddCommand(serveCmd)
}
