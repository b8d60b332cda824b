package cli

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"btscreener/internal/collector"
	apperrors "btscreener/internal/errors"
	"btscreener/internal/store"
)

func addRunCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newRunsCmd(app))
}

func newRunsCmd(app *App) *cobra.Command {
	var limit int

	list := func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)

		st, err := app.Store()
		if err != nil {
			return err
		}
		runs, err := st.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if output.IsJSON() {
			if runs == nil {
				runs = []store.RunSummary{}
			}
			return output.JSON(runs)
		}
		if len(runs) == 0 {
			output.Info("No saved runs. Use 'btscreener collect --save' to save one.")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			groups := strings.Join(r.Groups, ",")
			if groups == "" {
				groups = Missing
			}
			rows = append(rows, []string{
				strconv.FormatInt(r.ID, 10),
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
				groups,
				strconv.Itoa(r.Symbols),
				strconv.Itoa(r.Failed),
			})
		}
		return renderTable(output.Writer(), []string{"id", "started", "elapsed", "groups", "symbols", "failed"}, rows)
	}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List saved collection runs",
		Args:  cobra.NoArgs,
		RunE:  list,
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list (0 for all)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved collection runs",
		Args:  cobra.NoArgs,
		RunE:  list,
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list (0 for all)")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved collection table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return apperrors.NewValidationError("id", args[0], "must be an integer")
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			run, err := st.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}

			return renderCollection(output, runTable(run))
		},
	})

	return cmd
}

// runTable rebuilds a collection table from a saved run.
func runTable(run *store.Run) *collector.Table {
	table := collector.NewTable()
	table.StartedAt = run.StartedAt
	table.FinishedAt = run.FinishedAt
	for _, symbol := range run.Symbols {
		table.Set(symbol, run.Rows[symbol])
		if msg, ok := run.Errors[symbol]; ok {
			table.Errors[symbol] = errors.New(msg)
		}
	}
	return table
}
