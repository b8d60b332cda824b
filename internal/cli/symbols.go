package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"btscreener/internal/universe"
)

func addSymbolCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSymbolsCmd(app))
}

func newSymbolsCmd(app *App) *cobra.Command {
	var groups, symbols []string

	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "Resolve groups and symbols into the list a run would cover",
		Example: `  btscreener symbols -g faves
  btscreener symbols -g dji -s tsla`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			list, err := universe.LoadSymbolList(cmd.Context(), groups, symbols, app.Weights)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(list)
			}
			for _, s := range list {
				output.Println(s)
			}
			output.Dim("%d symbols", len(list))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&groups, "group", "g", nil, "symbol group: faves, dji, sp (repeatable)")
	cmd.Flags().StringSliceVarP(&symbols, "symbol", "s", nil, "explicit symbol (repeatable)")

	cmd.AddCommand(newWeightsCmd(app))

	return cmd
}

func newWeightsCmd(app *App) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Show the S&P 500 ranking table",
		Long: `Show the S&P 500 ranking table. The parsed CSV cache is read when
present; otherwise the saved ranking page is parsed and the cache written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			weights, err := app.Weights.SP500Weights()
			if err != nil {
				return err
			}
			if top > 0 && top < len(weights) {
				weights = weights[:top]
			}

			if output.IsJSON() {
				return output.JSON(weights)
			}

			rows := make([][]string, 0, len(weights))
			for _, w := range weights {
				rows = append(rows, []string{
					strconv.Itoa(w.Rank),
					w.Symbol,
					w.Company,
					FormatFloat(w.Weight),
					FormatPrice(w.Price),
					FormatFloat(w.Change),
				})
			}
			return renderTable(output.Writer(), []string{"#", "symbol", "company", "weight", "price", "change"}, rows)
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", 0, "show only the first n rows")

	return cmd
}
