package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRulesCmd(opts *rootOptions) *cobra.Command {
	var ruleType string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List rules in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.store.ListRules(ctx, ruleType)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tTYPE\tPRIORITY\tMUTEX\tENABLED\tEXECUTIONS")
			for _, r := range list {
				mutex := r.MutexGroup
				if mutex == "" {
					mutex = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%t\t%d\n", r.Code, r.RuleType, r.Priority, mutex, r.IsEnabled, r.ExecutionCount)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&ruleType, "type", "", "only list rules of this type")
	return cmd
}
