package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	datafeed "github.com/fazecat/hpsscanner/Internal/database"
	"github.com/fazecat/hpsscanner/Internal/utils/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the scanner configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the loaded configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", configPath)
		config.DisplayConfiguration(cmd.OutOrStdout(), cfg)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Interactively edit scoring and sizing values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return editConfig(bufio.NewReader(os.Stdin), cmd.OutOrStdout())
	},
}

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage watchlists stored in postgres (DATABASE_URL)",
	Long: `Stored watchlists override the tickers of the configured watchlist with the
same name. Market, benchmark and label always come from config.yaml.`,
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored watchlists",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWatchlistStore(cmd.Context(), func(store *datafeed.WatchlistStore) error {
			names, err := store.Names(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				tickers, err := store.Tickers(cmd.Context(), name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, strings.Join(tickers, ", "))
			}
			return nil
		})
	},
}

var watchlistSetCmd = &cobra.Command{
	Use:   "set <name> <ticker>...",
	Short: "Replace the stored tickers of a configured watchlist",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cfg.Watchlist(args[0]); err != nil {
			return err
		}
		return withWatchlistStore(cmd.Context(), func(store *datafeed.WatchlistStore) error {
			if err := store.Save(cmd.Context(), args[0], args[1:]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s saved with %d tickers\n", args[0], len(args)-1)
			return nil
		})
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configEditCmd)
	watchlistCmd.AddCommand(watchlistListCmd, watchlistSetCmd)
	rootCmd.AddCommand(configCmd, watchlistCmd)
}

// editConfig runs the interactive editor on a copy and writes it to configPath. The loaded
// config, and any scanner built from it, keeps its values until the next start.
func editConfig(in io.Reader, out io.Writer) error {
	edited := *cfg
	save, err := config.ConfigureInteractive(&edited, in, out)
	if err != nil || !save {
		return err
	}
	if err := config.SaveConfig(&edited, configPath); err != nil {
		return err
	}
	fmt.Fprintf(out, "✅ Configuration saved to %s (restart to apply)\n", configPath)
	return nil
}

func withWatchlistStore(ctx context.Context, fn func(*datafeed.WatchlistStore) error) error {
	if env.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	store, err := datafeed.OpenWatchlistStore(ctx, env.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
