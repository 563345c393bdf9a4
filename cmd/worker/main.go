package main

import (
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"dev/bravebird/tracker-check/pkg/browser"
	"dev/bravebird/tracker-check/pkg/checker"
	"dev/bravebird/tracker-check/pkg/config"
	"dev/bravebird/tracker-check/pkg/logging"
	"dev/bravebird/tracker-check/pkg/temporal/activities"
	"dev/bravebird/tracker-check/pkg/temporal/workflows"
)

func main() {
	logger, err := logging.New(os.Getenv("VERBOSE") != "")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Get Temporal host from environment
	temporalHost := getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")

	cfg, err := config.Load(os.Getenv("TRACKERCHECK_CONFIG"))
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: temporalHost,
		Logger:   logging.NewTemporalLogger(logger),
	})
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	loader, err := browser.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create browser loader", zap.Error(err))
	}
	acts := activities.NewActivities(checker.New(loader, checker.WithLogger(logger)))

	// One browser session at a time
	w := worker.New(c, workflows.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     1,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	w.RegisterWorkflow(workflows.TrackerCheckWorkflow)
	w.RegisterActivity(acts.CheckDomainActivity)

	logger.Info("Starting Temporal worker",
		zap.String("taskQueue", workflows.TaskQueue),
		zap.String("temporalHost", temporalHost),
		zap.String("driver", cfg.Driver),
		zap.Duration("wait", cfg.Wait),
	)

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("Worker failed", zap.Error(err))
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
