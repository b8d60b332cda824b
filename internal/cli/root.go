package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"btscreener/internal/backtest"
	"btscreener/internal/calendar"
	"btscreener/internal/collector"
	"btscreener/internal/config"
	"btscreener/internal/iex"
	"btscreener/internal/logging"
	"btscreener/internal/store"
	"btscreener/internal/universe"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Client  *iex.Client
	Weights *universe.Loader

	store *store.SQLiteStore
}

// ConfigDir returns the value of --config in args, or "" when it is absent.
// Other flags and arguments are ignored, so it can run before the command tree
// is built.
func ConfigDir(args []string) string {
	fs := pflag.NewFlagSet("btscreener", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	dir := fs.String("config", "", "")
	fs.BoolP("help", "h", false, "")
	_ = fs.Parse(args)
	return *dir
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}
	app.configure(cfg)
	return newRootCmd(app)
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "btscreener",
		Short: "Stock screener: chart stats and event calendars per symbol",
		Long: `btscreener collects chart statistics and earnings/dividend calendar
fields for a list of stock symbols and prints them as one table.

Symbols come from named groups (faves, dji, sp) and explicit -s flags.
Use 'btscreener <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("config") {
				dir, _ := cmd.Flags().GetString("config")
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = loaded
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}

			app.configure(app.Config)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/btscreener)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addCollectCommands(rootCmd, app)
	addMarketDataCommands(rootCmd, app)
	addSymbolCommands(rootCmd, app)
	addRunCommands(rootCmd, app)

	closeAfterRun(rootCmd, app)
	return rootCmd
}

// closeAfterRun wraps every RunE in the tree so the store is closed whether or
// not the command succeeds.
func closeAfterRun(cmd *cobra.Command, app *App) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) (err error) {
			defer func() {
				if cerr := app.Close(); err == nil {
					err = cerr
				}
			}()
			return run(c, args)
		}
	}
	for _, sub := range cmd.Commands() {
		closeAfterRun(sub, app)
	}
}

// configure rebuilds the config-derived dependencies.
func (app *App) configure(cfg *config.Config) {
	app.Config = cfg
	app.Client = iex.NewClient(
		iex.WithBaseURL(cfg.IEX.BaseURL),
		iex.WithToken(cfg.IEX.Token),
		iex.WithTimeout(cfg.IEX.Timeout),
		iex.WithLogger(app.Logger),
	)
	app.Weights = universe.NewLoader(cfg.Universe.PagePath, cfg.Universe.CachePath, app.Logger)
}

// Store opens the SQLite store on first use.
func (app *App) Store() (*store.SQLiteStore, error) {
	if app.store != nil {
		return app.store, nil
	}
	st, err := store.NewSQLiteStore(app.Config.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	app.Logger.Debug().Str("path", app.Config.Storage.DBPath).Msg("SQLite store initialized")
	app.store = st
	return st, nil
}

// Close releases the store if it was opened.
func (app *App) Close() error {
	if app.store == nil {
		return nil
	}
	err := app.store.Close()
	app.store = nil
	return err
}

// newCalendarBuilder wires the calendar builder to the API client.
func (app *App) newCalendarBuilder(fromEarnings bool) *calendar.Builder {
	builder := calendar.NewBuilder(app.Client, app.Logger)
	builder.DividendRange = app.Config.Collect.DividendRange
	builder.NextExFromEarnings = fromEarnings
	return builder
}

// collectOptions are the per-invocation overrides of [collect].
type collectOptions struct {
	poolSize   int
	chartRange string
	failFast   bool
}

// newCollector builds a collector from config with flag overrides applied.
func (app *App) newCollector(overrides collectOptions) (*collector.Collector, error) {
	cfg := app.Config

	engine, err := backtest.NewEngine(backtest.Config{
		Strategy:       cfg.Backtest.Strategy,
		InitialCapital: cfg.Backtest.InitialCapital,
		Slippage:       cfg.Backtest.Slippage,
		Commission:     cfg.Backtest.Commission,
	})
	if err != nil {
		return nil, err
	}

	failure, err := collector.ParseFailurePolicy(cfg.Collect.FailurePolicy)
	if err != nil {
		return nil, err
	}
	if overrides.failFast {
		failure = collector.FailFast
	}
	collision, err := collector.ParseCollisionPolicy(cfg.Collect.CollisionPolicy)
	if err != nil {
		return nil, err
	}

	opts := collector.Options{
		PoolSize:        cfg.Collect.PoolSize,
		ChartRange:      cfg.Collect.ChartRange,
		FailurePolicy:   failure,
		CollisionPolicy: collision,
	}
	if overrides.poolSize > 0 {
		opts.PoolSize = overrides.poolSize
	}
	if overrides.chartRange != "" {
		if err := iex.ValidateRange(overrides.chartRange); err != nil {
			return nil, err
		}
		opts.ChartRange = overrides.chartRange
	}

	builder := app.newCalendarBuilder(cfg.Calendar.NextExFromEarnings)
	return collector.New(app.Client, engine, builder, opts, logging.WithOperation(app.Logger, "collect")), nil
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("btscreener v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the screener configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				shown := *app.Config
				shown.IEX.Token = maskToken(shown.IEX.Token)
				return output.JSON(shown)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Data API")
	output.Printf("  Base URL:        %s\n", cfg.IEX.BaseURL)
	output.Printf("  Token:           %s\n", maskToken(cfg.IEX.Token))
	output.Printf("  Timeout:         %s\n", cfg.IEX.Timeout)
	output.Println()

	output.Bold("Collection")
	output.Printf("  Pool Size:       %d\n", cfg.Collect.PoolSize)
	output.Printf("  Chart Range:     %s\n", cfg.Collect.ChartRange)
	output.Printf("  Dividend Range:  %s\n", cfg.Collect.DividendRange)
	output.Printf("  Failure Policy:  %s\n", cfg.Collect.FailurePolicy)
	output.Printf("  Collisions:      %s\n", cfg.Collect.CollisionPolicy)
	output.Printf("  Next Ex From:    %s\n", nextExSource(cfg.Calendar.NextExFromEarnings))
	output.Println()

	output.Bold("Backtest")
	output.Printf("  Strategy:        %s\n", cfg.Backtest.Strategy)
	output.Printf("  Capital:         %.2f\n", cfg.Backtest.InitialCapital)
	output.Printf("  Slippage:        %.4f\n", cfg.Backtest.Slippage)
	output.Printf("  Commission:      %.4f\n", cfg.Backtest.Commission)
	output.Println()

	output.Bold("Files")
	output.Printf("  Ranking Page:    %s\n", cfg.Universe.PagePath)
	output.Printf("  Ranking Cache:   %s\n", cfg.Universe.CachePath)
	output.Printf("  Database:        %s\n", cfg.Storage.DBPath)
	output.Printf("  Log Level:       %s\n", cfg.Logging.Level)
}

func nextExSource(fromEarnings bool) string {
	if fromEarnings {
		return "earnings"
	}
	return "dividends"
}

func maskToken(token string) string {
	switch {
	case token == "":
		return "(none)"
	case len(token) <= 4:
		return "****"
	}
	return fmt.Sprintf("%s****", token[:4])
}
