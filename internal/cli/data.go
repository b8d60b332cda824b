package cli

import (
	"strings"

	"github.com/spf13/cobra"

	apperrors "btscreener/internal/errors"
	"btscreener/internal/iex"
	"btscreener/internal/models"
	"btscreener/internal/store"
)

// addMarketDataCommands adds single-symbol data commands.
func addMarketDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newHistoricalCmd(app))
	rootCmd.AddCommand(newCalendarCmd(app))
}

func newHistoricalCmd(app *App) *cobra.Command {
	var (
		rng         string
		save        bool
		fromDB      bool
		parquetPath string
	)

	cmd := &cobra.Command{
		Use:   "historical <symbol>",
		Short: "Fetch OHLC history for a symbol",
		Long: `Fetch daily (or intraday for 1d) OHLC bars for a symbol.

Valid ranges: ` + strings.Join(iex.ValidRanges, ", "),
		Example: `  btscreener historical aapl
  btscreener historical msft -r 1y --save
  btscreener historical ko -r 5y --parquet ko.parquet
  btscreener historical msft -r 1y --from-db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			symbol := strings.ToLower(strings.TrimSpace(args[0]))

			if save && fromDB {
				return apperrors.NewValidationError("from-db", true, "cannot be combined with --save")
			}

			var (
				candles []models.Candle
				err     error
			)
			if fromDB {
				if err = iex.ValidateRange(rng); err != nil {
					return err
				}
				st, err := app.Store()
				if err != nil {
					return err
				}
				if candles, err = st.GetCandles(ctx, symbol, rng); err != nil {
					return apperrors.Wrapf(err, "loading bars for %s", symbol)
				}
			} else if candles, err = app.Client.Chart(ctx, symbol, rng); err != nil {
				return err
			}

			if save {
				st, err := app.Store()
				if err != nil {
					return err
				}
				if err := st.SaveCandles(ctx, symbol, rng, candles); err != nil {
					return apperrors.Wrapf(err, "saving bars for %s", symbol)
				}
				app.Logger.Info().Str("symbol", symbol).Int("bars", len(candles)).Msg("Saved bars")
			}

			if parquetPath != "" {
				if err := store.WriteCandlesParquet(parquetPath, symbol, candles); err != nil {
					return err
				}
				app.Logger.Info().Str("path", parquetPath).Int("bars", len(candles)).Msg("Exported bars")
			}

			if output.IsJSON() {
				if candles == nil {
					candles = []models.Candle{}
				}
				return output.JSON(candles)
			}
			if len(candles) == 0 {
				output.Warning("No bars for %s over %s", symbol, rng)
				return nil
			}
			return renderCandles(output, candles)
		},
	}

	cmd.Flags().StringVarP(&rng, "range", "r", iex.DefaultChartRange, "lookback range")
	cmd.Flags().BoolVar(&save, "save", false, "save the bars to the local database")
	cmd.Flags().BoolVar(&fromDB, "from-db", false, "read previously saved bars instead of calling the API")
	cmd.Flags().StringVar(&parquetPath, "parquet", "", "export the bars to a Parquet file")

	return cmd
}

func renderCandles(output *Output, candles []models.Candle) error {
	rows := make([][]string, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, []string{
			FormatDate(c.Timestamp),
			FormatPrice(c.Open),
			FormatPrice(c.High),
			FormatPrice(c.Low),
			FormatPrice(c.Close),
			FormatVolume(c.Volume),
		})
	}
	return renderTable(output.Writer(), []string{"date", "open", "high", "low", "close", "volume"}, rows)
}

func newCalendarCmd(app *App) *cobra.Command {
	var fromEarnings bool

	cmd := &cobra.Command{
		Use:   "calendar <symbol>",
		Short: "Show earnings and dividend calendar for a symbol",
		Long: `Show the last and estimated next earnings report date, the last
ex-dividend date and amount, and the estimated next ex-dividend date.

Estimates project past dates forward by one and two years. A field is
shown as '-' when the symbol has no history of that kind.`,
		Example: `  btscreener calendar ko
  btscreener calendar aapl --from-earnings --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := strings.ToLower(strings.TrimSpace(args[0]))

			source := app.Config.Calendar.NextExFromEarnings
			if cmd.Flags().Changed("from-earnings") {
				source = fromEarnings
			}

			summary, err := app.newCalendarBuilder(source).Build(cmd.Context(), symbol)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(summary)
			}

			row := summary.Row()
			rows := make([][]string, 0, len(models.CalendarFields))
			for _, field := range models.CalendarFields {
				rows = append(rows, []string{field, FormatValue(row[field])})
			}
			output.Bold("Calendar - %s", symbol)
			return renderTable(output.Writer(), []string{"field", "value"}, rows)
		},
	}

	cmd.Flags().BoolVar(&fromEarnings, "from-earnings", false, "estimate the next ex-date from earnings report dates")

	return cmd
}
