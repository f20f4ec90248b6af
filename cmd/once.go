package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:     "once",
	Aliases: []string{"check"},
	Short:   "Process the mailbox backlog once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		w, err := newIdler(cfg, nil)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		n, err := w.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("run once: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Moved %d message(s) to %s\n", n, cfg.IMAP.Destination)
		return nil
	},
}
