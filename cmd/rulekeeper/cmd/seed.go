package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/seed"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the default rules and configs (existing codes are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireMigrated(ctx); err != nil {
				return err
			}

			rep, err := seed.Seed(ctx, a.store, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rules: %d created, %d kept; configs: %d created, %d kept; items: %d created\n",
				rep.RulesCreated, rep.RulesSkipped, rep.ConfigsCreated, rep.ConfigsSkipped, rep.ItemsCreated)
			return nil
		},
	}
}
