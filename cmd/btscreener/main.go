// Command btscreener collects chart stats and event calendars for a list of
// stock symbols.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"btscreener/internal/cli"
	"btscreener/internal/config"
	apperrors "btscreener/internal/errors"
	"btscreener/internal/logging"
)

func main() {
	cfg, err := config.Load(cli.ConfigDir(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.File = cfg.Logging.File
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
	if cfg.Logging.MaxSize > 0 {
		logCfg.MaxSize = cfg.Logging.MaxSize
	}
	if cfg.Logging.MaxBackups > 0 {
		logCfg.MaxBackups = cfg.Logging.MaxBackups
	}
	if cfg.Logging.MaxAge > 0 {
		logCfg.MaxAge = cfg.Logging.MaxAge
	}
	logger := logging.NewLoggerWithConfig(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Debug().Err(err).Msg("Command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if apperrors.Is(err, apperrors.ErrNoSymbols) {
			fmt.Fprintln(os.Stderr, "Pass symbols with -s or groups with -g (faves, dji, sp).")
		}
		stop()
		os.Exit(1)
	}
}
