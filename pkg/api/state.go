package api

import (
	"time"
)

// StageError is the structured error reported for a non-succeeded stage.
type StageError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e StageError) Error() string {
	return e.Message
}

// StageState is the runtime record of one stage during one pipeline run.
// It is owned exclusively by the orchestrator; executors report outcomes
// and never mutate it.
type StageState struct {
	ID        string                 `json:"id"`
	Status    Status                 `json:"status"`
	Outputs   map[string]interface{} `json:"outputs,omitempty"` // populated only on success
	Attempts  int                    `json:"attempts,omitempty"`
	StartedAt *time.Time             `json:"startedAt,omitempty"`
	EndedAt   *time.Time             `json:"endedAt,omitempty"`
	Error     *StageError            `json:"error,omitempty"` // present iff not succeeded
}

// RunResult aggregates the outcome of one pipeline run.
type RunResult struct {
	RunID     string       `json:"runId"`
	Name      string       `json:"name"`
	Verdict   Status       `json:"verdict"`
	Stages    []StageState `json:"stages"`
	StartedAt *time.Time   `json:"startedAt,omitempty"`
	EndedAt   *time.Time   `json:"endedAt,omitempty"`
}

// Succeeded reports whether every non-skipped stage succeeded.
func (r RunResult) Succeeded() bool {
	return r.Verdict == StatusSucceeded
}

// Stage returns the state of the stage with the given id, or nil.
func (r RunResult) Stage(id string) *StageState {
	for i := range r.Stages {
		if r.Stages[i].ID == id {
			return &r.Stages[i]
		}
	}
	return nil
}

// ComputeVerdict derives the pipeline-level verdict from the stage states:
// Succeeded only if every non-skipped stage succeeded, Cancelled if any stage
// was cancelled, Failed otherwise.
func ComputeVerdict(stages []StageState) Status {
	verdict := StatusSucceeded
	for _, s := range stages {
		switch s.Status {
		case StatusSucceeded, StatusSkipped:
		case StatusCancelled:
			if verdict != StatusFailed {
				verdict = StatusCancelled
			}
		default:
			verdict = StatusFailed
		}
	}
	return verdict
}
