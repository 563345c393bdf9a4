// Package checker runs tracker detection for one or more domains.
package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"dev/bravebird/tracker-check/pkg/browser"
	"dev/bravebird/tracker-check/pkg/models"
	"dev/bravebird/tracker-check/pkg/trackers"
)

// ErrEmptyDomain is returned for a blank domain.
var ErrEmptyDomain = errors.New("domain must not be empty")

// Checker loads a page once per domain and tests its script resources
// against every tracker in its table.
type Checker struct {
	loader   browser.Loader
	trackers []trackers.Tracker
	logger   *zap.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithTrackers replaces the default tracker table.
func WithTrackers(t []trackers.Tracker) Option {
	return func(c *Checker) {
		c.trackers = append([]trackers.Tracker(nil), t...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Checker backed by loader.
func New(loader browser.Loader, opts ...Option) *Checker {
	c := &Checker{
		loader:   loader,
		trackers: trackers.Default(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Trackers returns the table the checker tests against.
func (c *Checker) Trackers() []trackers.Tracker {
	return append([]trackers.Tracker(nil), c.trackers...)
}

// Check loads domain and reports which trackers its scripts include.
func (c *Checker) Check(ctx context.Context, domain string) (models.Result, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return models.Result{}, ErrEmptyDomain
	}

	logger := c.logger.With(zap.String("domain", domain))
	logger.Info("Checking domain")
	start := time.Now()

	names, err := c.loader.ScriptResources(ctx, domain)
	if err != nil {
		return models.Result{}, fmt.Errorf("check %s: %w", domain, err)
	}

	result := models.Result{
		URL:      domain,
		Detected: make([]models.Detection, 0, len(c.trackers)),
	}
	for _, t := range c.trackers {
		result.Detected = append(result.Detected, models.Detection{
			Name:    t.Name,
			Present: trackers.Contains(names, t.Pattern),
		})
	}

	logger.Info("Domain checked",
		zap.Int("scripts", len(names)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// CheckAll checks domains one at a time, passing each result to emit. The
// first check or emit error stops the loop and is returned.
func (c *Checker) CheckAll(ctx context.Context, domains []string, emit func(models.Result) error) error {
	for _, domain := range domains {
		result, err := c.Check(ctx, domain)
		if err != nil {
			return err
		}
		if err := emit(result); err != nil {
			return fmt.Errorf("emit result for %s: %w", domain, err)
		}
	}
	return nil
}
