package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dev/bravebird/tracker-check/pkg/browser"
	"dev/bravebird/tracker-check/pkg/checker"
	"dev/bravebird/tracker-check/pkg/config"
	"dev/bravebird/tracker-check/pkg/models"
	"dev/bravebird/tracker-check/pkg/trackers"
)

// loadConfig layers changed flags over the file and environment settings.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Driver = driver
	}
	if flags.Changed("chrome-bin") {
		cfg.ChromeBin = chromeBin
	}
	if flags.Changed("headless") {
		cfg.Headless = headless
	}
	if flags.Changed("wait") {
		cfg.Wait = waitFor
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	targets := append(append([]string(nil), domains...), args...)
	if len(targets) == 0 {
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	loader, err := newLoader(cfg, logger)
	if err != nil {
		return err
	}
	c := checker.New(loader, checker.WithLogger(logger))

	logger.Debug("Starting checks",
		zap.Strings("domains", targets),
		zap.String("driver", cfg.Driver),
		zap.Duration("wait", cfg.Wait),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	return c.CheckAll(cmd.Context(), targets, func(r models.Result) error {
		return enc.Encode(r)
	})
}

func listTrackers(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPATTERN")
	for _, t := range trackers.Default() {
		fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Pattern)
	}
	return w.Flush()
}

func installBrowser(cmd *cobra.Command, args []string) error {
	path, err := browser.Provision(cmd.Context())
	if err != nil {
		return err
	}
	logger.Info("Browser available", zap.String("path", path))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
