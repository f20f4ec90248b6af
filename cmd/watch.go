package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meko-christian/mail-idler/internal/metrics"
	"github.com/meko-christian/mail-idler/internal/web"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"serve"},
	Short:   "Continuously watch the mailbox using IDLE",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		m := metrics.New()
		w, err := newIdler(cfg, m)
		if err != nil {
			return err
		}

		slog.Info("Starting watch mode", "source", cfg.IMAP.Source, "destination", cfg.IMAP.Destination)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Web.Enabled {
			server := web.NewServer(cfg, w, m.Handler())
			go func() {
				if err := server.Start(ctx); err != nil {
					slog.Error("Web interface stopped", "error", err)
				}
			}()
		}

		return w.Run(ctx)
	},
}
