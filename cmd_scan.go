package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fazecat/hpsscanner/Internal/handlers"
	"github.com/fazecat/hpsscanner/Internal/utils/formatting"
)

var scanCmd = &cobra.Command{
	Use:   "scan [watchlist]",
	Short: "Run one scan cycle and print the ranked watchlist",
	Long: `Run one scan cycle over a configured watchlist and print the ranked table,
the signal log and the golden window panel.

Examples:
  hpsscanner scan dax
  hpsscanner scan sp500 --csv signals.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

var (
	scanCSVPath string
	watchNames  []string
	watchEvery  time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan watchlists on an interval until interrupted",
	Long: `Poll the given watchlists every interval. A cycle still running when the
next tick fires is skipped.

Examples:
  hpsscanner watch --watchlist dax --watchlist sp500 --interval 15m`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)

	scanCmd.Flags().StringVar(&scanCSVPath, "csv", "", "Also write the signal log to this CSV file")

	watchCmd.Flags().StringSliceVar(&watchNames, "watchlist", nil, "Watchlist to poll (repeatable)")
	watchCmd.Flags().DurationVar(&watchEvery, "interval", 15*time.Minute, "Polling interval")
	watchCmd.MarkFlagRequired("watchlist")
}

func runScan(cmd *cobra.Command, args []string) error {
	app, err := handlers.Bootstrap(cmd.Context(), cfg, env)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := handlers.HandleScan(cmd.Context(), app.Scanner, args[0], cmd.OutOrStdout()); err != nil {
		return err
	}
	if scanCSVPath == "" {
		return nil
	}

	f, err := os.Create(scanCSVPath)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	defer f.Close()
	return formatting.WriteSignalCSV(f, app.Scanner.Store().Signals())
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchEvery <= 0 {
		return fmt.Errorf("interval must be positive, got %s", watchEvery)
	}
	for _, name := range watchNames {
		if _, err := cfg.Watchlist(name); err != nil {
			return err
		}
	}

	app, err := handlers.Bootstrap(cmd.Context(), cfg, env)
	if err != nil {
		return err
	}
	defer app.Close()

	handlers.StartBackgroundScanner(cmd.Context(), app.Scanner, watchNames, watchEvery, cmd.OutOrStdout())
	return nil
}
