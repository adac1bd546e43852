package cmd

import (
	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/rules"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var inline, file string

	cmd := &cobra.Command{
		Use:   "run <ruleType>",
		Short: "Run the active rules of a type against a context",
		Long: `Runs every enabled, in-window rule of the given type in priority order,
honouring mutex groups, and prints the per-rule results with a summary of
their effects. Counters and the execution log are updated as in production.`,
		Example: `  rulekeeper run coupon --context '{"orderAmount": 1000, "user": {"orderCount": 0}}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rc, err := readContext(cmd, inline, file)
			if err != nil {
				return err
			}

			a, err := openApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			engine, err := a.engine(nil)
			if err != nil {
				return err
			}
			results, err := engine.FindAndExecuteRules(ctx, args[0], rc)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"results": results,
				"effects": rules.Summarize(results),
			})
		},
	}
	contextFlags(cmd, &inline, &file)
	return cmd
}
