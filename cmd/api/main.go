package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dev/bravebird/tracker-check/pkg/api"
	"dev/bravebird/tracker-check/pkg/browser"
	"dev/bravebird/tracker-check/pkg/checker"
	"dev/bravebird/tracker-check/pkg/config"
	"dev/bravebird/tracker-check/pkg/logging"
)

func main() {
	logger, err := logging.New(os.Getenv("VERBOSE") != "")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting tracker check API server")

	// Get configuration from environment
	port := getEnvOrDefault("PORT", "8080")
	temporalHost := os.Getenv("TEMPORAL_HOST")

	cfg, err := config.Load(os.Getenv("TRACKERCHECK_CONFIG"))
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	loader, err := browser.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create browser loader", zap.Error(err))
	}
	c := checker.New(loader, checker.WithLogger(logger))

	// Temporal is optional; without it only synchronous checks are served
	var workflowClient api.WorkflowClient
	if temporalHost != "" {
		tc, err := client.Dial(client.Options{
			HostPort: temporalHost,
			Logger:   logging.NewTemporalLogger(logger),
		})
		if err != nil {
			logger.Warn("Failed to connect to Temporal, running without workflow checks", zap.Error(err))
		} else {
			defer tc.Close()
			workflowClient = tc
		}
	}

	handlers := api.NewHandlers(c, workflowClient, logger)

	// Setup CORS
	cr := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:        ":" + port,
		Handler:     cr.Handler(handlers.Router()),
		ReadTimeout: 15 * time.Second,
		// Checks hold the connection for the whole page wait.
		WriteTimeout: cfg.Wait + 2*time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("API server listening", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
