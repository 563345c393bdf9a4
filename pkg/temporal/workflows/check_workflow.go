package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/tracker-check/pkg/config"
	"dev/bravebird/tracker-check/pkg/models"
)

// TaskQueue is the queue the tracker-check worker polls.
const TaskQueue = "tracker-check"

// ProgressQuery returns the results collected so far.
const ProgressQuery = "getProgress"

// pageLoadAllowance is added to the longest configurable script wait to
// bound a single check. The wait itself is set on the worker.
const pageLoadAllowance = 2 * time.Minute

// CheckInput is the input for TrackerCheckWorkflow
type CheckInput struct {
	CheckID string   `json:"check_id"`
	Domains []string `json:"domains"`
}

// CheckOutput holds one result per checked domain, in input order
type CheckOutput struct {
	CheckID string          `json:"check_id"`
	Results []models.Result `json:"results"`
}

// TrackerCheckWorkflow checks each domain in turn. A failed check fails the
// workflow; checks are never retried.
func TrackerCheckWorkflow(ctx workflow.Context, input CheckInput) (CheckOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting tracker check workflow", "checkID", input.CheckID, "domains", len(input.Domains))

	output := CheckOutput{
		CheckID: input.CheckID,
		Results: make([]models.Result, 0, len(input.Domains)),
	}

	// Register query handler for progress
	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (CheckOutput, error) {
		return output, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	ctx = workflow.WithActivityOptions(ctx, checkActivityOptions())

	for _, domain := range input.Domains {
		var result models.Result
		err := workflow.ExecuteActivity(ctx, "CheckDomainActivity", domain).Get(ctx, &result)
		if err != nil {
			logger.Error("Domain check failed", "domain", domain, "error", err)
			return output, err
		}
		output.Results = append(output.Results, result)
	}

	logger.Info("Tracker check workflow completed", "checkID", input.CheckID, "checked", len(output.Results))
	return output, nil
}

// checkActivityOptions covers any wait the worker may be configured with.
// Checks are never retried.
func checkActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: config.MaxWait + pageLoadAllowance,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
}
