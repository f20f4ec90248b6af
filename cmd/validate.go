package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meko-christian/mail-idler/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and list every problem",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(viper.GetViper())
		problems := config.NewValidator().Validate(cfg)
		if len(problems) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
			return nil
		}

		for _, p := range problems {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", p)
		}
		return fmt.Errorf("%d configuration problem(s)", len(problems))
	},
}
