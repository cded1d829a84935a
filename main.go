package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fazecat/hpsscanner/Internal/handlers"
	"github.com/fazecat/hpsscanner/Internal/logger"
	"github.com/fazecat/hpsscanner/Internal/utils/config"
)

var (
	configPath string
	env        *config.Env
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hpsscanner",
	Short: "Intraday HPS advisory scanner",
	Long: `hpsscanner scores watchlists on 15-minute bars against the VIX gate,
relative strength, smart money position and session time, and tracks the
signals and golden-window entries that follow.

Run without a subcommand for the interactive menu.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := handlers.Bootstrap(cmd.Context(), cfg, env)
		if err != nil {
			return err
		}
		defer app.Close()
		return runMenu(cmd.Context(), app, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (defaults to SCANNER_CONFIG or the bundled file)")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	env, err = config.LoadEnv()
	if err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	logger.Setup(env.LogLevel, env.LogFormat, os.Stderr)

	if configPath == "" {
		configPath, err = config.ConfigPath()
		if err != nil {
			return err
		}
	}
	cfg, err = config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

func runMenu(ctx context.Context, app *handlers.App, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	names := app.Config.WatchlistNames()

	for {
		fmt.Fprintln(out, "\n--- HPS Scanner Menu ---")
		fmt.Fprintln(out, "1. Scan Watchlist")
		fmt.Fprintln(out, "2. Signal Log & Golden Window")
		fmt.Fprintln(out, "3. Configure Settings")
		fmt.Fprintln(out, "4. Reset Day")
		fmt.Fprintln(out, "5. Exit")
		fmt.Fprint(out, "Enter choice (1-5): ")

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return nil
		}

		switch strings.TrimSpace(line) {
		case "1":
			for i, name := range names {
				fmt.Fprintf(out, "%d. %s\n", i+1, name)
			}
			fmt.Fprint(out, "Select watchlist (number): ")
			choice, _ := reader.ReadString('\n')
			idx, err := strconv.Atoi(strings.TrimSpace(choice))
			if err != nil || idx < 1 || idx > len(names) {
				fmt.Fprintln(out, "Invalid selection.")
				continue
			}
			if err := handlers.HandleScan(ctx, app.Scanner, names[idx-1], out); err != nil {
				fmt.Fprintf(out, "Scan failed: %v\n", err)
			}
		case "2":
			handlers.HandleDisplayTrackers(app.Scanner, out)
		case "3":
			if err := editConfig(reader, out); err != nil {
				fmt.Fprintf(out, "Config not saved: %v\n", err)
			}
		case "4":
			if err := app.Scanner.Reset(); err != nil {
				fmt.Fprintf(out, "Reset failed: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "Trackers cleared.")
		case "5":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(out, "Invalid choice. Try again.")
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
