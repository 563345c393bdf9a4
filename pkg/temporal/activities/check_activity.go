package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"dev/bravebird/tracker-check/pkg/checker"
	"dev/bravebird/tracker-check/pkg/models"
)

// Activities holds activity implementations
type Activities struct {
	Checker *checker.Checker
}

// NewActivities creates new activities
func NewActivities(c *checker.Checker) *Activities {
	return &Activities{Checker: c}
}

// CheckDomainActivity loads one domain and reports its trackers
func (a *Activities) CheckDomainActivity(ctx context.Context, domain string) (models.Result, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Checking domain", "domain", domain)

	result, err := a.Checker.Check(ctx, domain)
	if err != nil {
		return models.Result{}, err
	}

	logger.Info("Domain checked", "domain", domain, "keys", len(result.Keys()))
	return result, nil
}
