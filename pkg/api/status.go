package api

// Status is the state of a pipeline run or one of its stages.
type Status string

const (
	// StatusPending default status, the stage has not been dispatched yet.
	StatusPending Status = "PENDING"

	// StatusBlocked status for stages waiting on unfinished dependencies.
	StatusBlocked Status = "BLOCKED"

	// StatusReady status for stages whose dependencies are terminal and condition holds.
	StatusReady Status = "READY"

	// StatusRunning status for stages currently executing.
	StatusRunning Status = "RUNNING"

	// StatusSucceeded status for stages that completed successfully.
	StatusSucceeded Status = "SUCCEEDED"

	// StatusFailed status for stages that completed with an error.
	StatusFailed Status = "FAILED"

	// StatusSkipped status for stages not executed because of an upstream outcome or a false condition.
	StatusSkipped Status = "SKIPPED"

	// StatusCancelled status for stages stopped by an abort request or a fail-fast shutdown.
	StatusCancelled Status = "CANCELLED"
)

// Terminal returns true if the status is final.
func (s Status) Terminal() bool {
	for _, ts := range []Status{StatusSucceeded, StatusFailed, StatusSkipped, StatusCancelled} {
		if s == ts {
			return true
		}
	}
	return false
}
