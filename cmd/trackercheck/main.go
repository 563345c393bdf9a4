package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dev/bravebird/tracker-check/pkg/browser"
	"dev/bravebird/tracker-check/pkg/config"
	"dev/bravebird/tracker-check/pkg/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Check flags
	domains   []string
	driver    string
	chromeBin string
	headless  bool
	waitFor   time.Duration

	logger *zap.Logger

	// Replaced in tests.
	newLoader = browser.New
)

var rootCmd = &cobra.Command{
	Use:   "trackercheck [domain...]",
	Short: "Detect analytics trackers loaded by a web page",
	Long: `Opens each domain over HTTPS in a headless browser, waits for client-side
scripts to run, and reports whether Google Analytics, Chartbeat and the
Facebook Pixel were loaded.

One JSON record is printed per domain, in the order given. Domains are
checked one at a time and the first failure stops the run.

Example:
  trackercheck --domains www.echobox.com
  trackercheck --domains example.com other.com`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runCheck,
}

var trackersCmd = &cobra.Command{
	Use:   "trackers",
	Short: "List the trackers that are checked for",
	Args:  cobra.NoArgs,
	RunE:  listTrackers,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Locate or download a browser and print its path",
	Args:  cobra.NoArgs,
	RunE:  installBrowser,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.Flags().StringSliceVar(&domains, "domains", nil, "Domains to check (without scheme)")
	rootCmd.Flags().StringVar(&driver, "driver", config.DriverRod, "Browser driver: rod or chromedp")
	rootCmd.Flags().StringVar(&chromeBin, "chrome-bin", "", "Path to the browser binary")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "Run the browser headless")
	rootCmd.Flags().DurationVar(&waitFor, "wait", config.DefaultWait, "Time to let page scripts run before reading resources")

	rootCmd.AddCommand(trackersCmd, installCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
