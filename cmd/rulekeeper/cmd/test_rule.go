package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/types"
)

func newTestRuleCmd(opts *rootOptions) *cobra.Command {
	var inline, file string

	cmd := &cobra.Command{
		Use:   "test-rule <id|code>",
		Short: "Evaluate one rule against a context without side effects",
		Long: `Matches and executes a single rule, found by id or else by code. Disabled
and expired rules are evaluated too. Mutex groups, counters and the execution
log are not touched.`,
		Args: cobra.ExactArgs(1),
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

			rule, err := a.store.GetRule(ctx, types.RuleID(args[0]))
			if errors.Is(err, types.ErrRuleNotFound) {
				rule, err = a.store.GetRuleByCode(ctx, args[0])
			}
			if err != nil {
				return err
			}

			engine, err := a.engine(nil)
			if err != nil {
				return err
			}
			result, err := engine.EvaluateRule(rule, rc)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"rule":     rule.Code,
				"matched":  result.Matched,
				"executed": result.Executed,
				"result":   result.Result,
			})
		},
	}
	contextFlags(cmd, &inline, &file)
	return cmd
}
