package cmd

import (
	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/types"
)

type configView struct {
	types.Config
	Items []types.ConfigItem `json:"items,omitempty"`
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	var code string
	var items bool

	cmd := &cobra.Command{
		Use:     "config <category>",
		Short:   "Show the active configs of a category",
		Example: "  rulekeeper config product_option --items\n  rulekeeper config payment_method --code payment_sbp",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			engine, err := a.engine(nil)
			if err != nil {
				return err
			}
			configs, err := engine.GetActiveConfig(ctx, args[0], code)
			if err != nil {
				return err
			}

			views := make([]configView, 0, len(configs))
			for _, c := range configs {
				v := configView{Config: c}
				if items {
					if v.Items, err = engine.GetConfigItems(ctx, c.ID); err != nil {
						return err
					}
				}
				views = append(views, v)
			}
			return printJSON(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "narrow to one config code")
	cmd.Flags().BoolVar(&items, "items", false, "include each config's enabled items")
	return cmd
}
