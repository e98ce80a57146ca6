// Command journey runs ParaBank customer journeys in a real browser and
// prints a run report.
//
// Usage:
//
//	journey run                          # register against an in-process demo bank
//	journey run --full --driver rod      # full register/login/summary journey on go-rod
//	journey run --journeys journeys.yaml --base-url https://parabank.parasoft.com
//	journey steps                        # list step names usable in a journey file
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kuitang/parabank-e2e/internal/obs"
)

var (
	baseURL     string
	driverName  string
	journeyFile string
	headed      bool
	parallelism int
	fullJourney bool
	reportFmt   string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "journey",
	Short: "Browser-driven ParaBank journey runner",
	Long: `journey drives a ParaBank site through Playwright or go-rod.

Each run resets the bank through the admin page, then runs every journey in
its own browser context with a freshly generated customer. Without a base URL
an in-process demo bank is started.

Settings come from the environment (PARABANK_BASE_URL, E2E_DRIVER, E2E_TIMEOUT,
E2E_ARTIFACTS_DIR, ...); flags override them.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		obs.Init()
		if verbose {
			obs.SetLevel(slog.LevelDebug)
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reset the bank and run journeys",
	Args:  cobra.NoArgs,
	RunE:  runJourneys,
}

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List known step names",
	Args:  cobra.NoArgs,
	RunE:  listSteps,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level (overrides LOG_LEVEL)")

	runCmd.Flags().StringVar(&baseURL, "base-url", "", "Target site root (overrides PARABANK_BASE_URL; empty starts the demo bank)")
	runCmd.Flags().StringVar(&driverName, "driver", "", "Browser driver: playwright or rod (overrides E2E_DRIVER)")
	runCmd.Flags().StringVarP(&journeyFile, "journeys", "f", "", "YAML journey file (overrides E2E_JOURNEY_FILE)")
	runCmd.Flags().BoolVar(&headed, "headed", false, "Show the browser window")
	runCmd.Flags().IntVarP(&parallelism, "parallel", "p", 0, "Journeys run at once (overrides E2E_PARALLELISM)")
	runCmd.Flags().BoolVar(&fullJourney, "full", false, "Without a journey file, run the full journey instead of registration only")
	runCmd.Flags().StringVar(&reportFmt, "format", "markdown", "Report printed to stdout: markdown or json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stepsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
