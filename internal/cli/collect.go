package cli

import (
	"context"

	"github.com/spf13/cobra"

	"btscreener/internal/collector"
	"btscreener/internal/store"
	"btscreener/internal/universe"
)

func addCollectCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newCollectCmd(app))
}

func newCollectCmd(app *App) *cobra.Command {
	var (
		groups    []string
		symbols   []string
		overrides collectOptions
		save      bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect chart stats and calendar fields into one table",
		Long: `Collect chart statistics and calendar fields for every symbol of the
requested groups plus any explicit symbols, and print one row per symbol.

A symbol that fails to load gets an error row unless --fail-fast is set.`,
		Example: `  btscreener collect -g faves
  btscreener collect -s aapl -s msft --pool-size 8
  btscreener collect -g dji --save --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			list, err := universe.LoadSymbolList(ctx, groups, symbols, app.Weights)
			if err != nil {
				return err
			}

			coll, err := app.newCollector(overrides)
			if err != nil {
				return err
			}

			table, err := coll.Run(ctx, list)
			if err != nil {
				return err
			}

			if save {
				id, err := app.saveRun(ctx, groups, table)
				if err != nil {
					return err
				}
				app.Logger.Info().Int64("run_id", id).Msg("Saved collection run")
			}

			return renderCollection(output, table)
		},
	}

	cmd.Flags().StringSliceVarP(&groups, "group", "g", nil, "symbol group: faves, dji, sp (repeatable)")
	cmd.Flags().StringSliceVarP(&symbols, "symbol", "s", nil, "explicit symbol (repeatable)")
	cmd.Flags().IntVar(&overrides.poolSize, "pool-size", 0, "symbols processed concurrently (default from config)")
	cmd.Flags().StringVarP(&overrides.chartRange, "range", "r", "", "chart lookback range (default from config)")
	cmd.Flags().BoolVar(&overrides.failFast, "fail-fast", false, "abort the run on the first failed symbol")
	cmd.Flags().BoolVar(&save, "save", false, "save the table to the local database")

	return cmd
}

// saveRun persists a collection table and returns the run ID.
func (app *App) saveRun(ctx context.Context, groups []string, table *collector.Table) (int64, error) {
	st, err := app.Store()
	if err != nil {
		return 0, err
	}

	run := &store.Run{
		StartedAt:  table.StartedAt,
		FinishedAt: table.FinishedAt,
		Groups:     groups,
		Symbols:    table.Symbols,
		Rows:       table.Rows,
		Errors:     make(map[string]string, len(table.Errors)),
	}
	for symbol, err := range table.Errors {
		run.Errors[symbol] = err.Error()
	}

	return st.SaveRun(ctx, run)
}
