package httpapi

import "fmt"

func errAlreadyRunning(runID string) error {
	return fmt.Errorf("run %s is already active", runID)
}

func errMissingWorkflowID() error {
	return fmt.Errorf("workflowId is required to resume")
}
