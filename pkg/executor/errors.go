package executor

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ValidationError is returned when a stage spec fails executor validation.
// The stage fails before any external tool is invoked.
type ValidationError struct {
	StageID string
	Reason  string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid spec for stage %s: %s", e.StageID, e.Reason)
}

// ExecutionError is returned when the external tool fails. Transient errors
// (e.g. a transport error talking to the scanner) are eligible for retry on
// idempotent stages.
type ExecutionError struct {
	Message   string
	Transient bool
}

func (e ExecutionError) Error() string {
	return e.Message
}

// TimeoutError is returned when a stage exceeds its deadline. Never retried.
type TimeoutError struct {
	StageID string
	Timeout time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("stage %s exceeded its deadline of %s", e.StageID, e.Timeout)
}

// IsTransient returns true if the error is an ExecutionError marked transient.
func IsTransient(err error) bool {
	ee, ok := errors.Cause(err).(ExecutionError)
	return ok && ee.Transient
}

// Kind classifies an error for per-stage reporting.
func Kind(err error) string {
	switch errors.Cause(err).(type) {
	case ValidationError:
		return "ValidationError"
	case TimeoutError:
		return "TimeoutError"
	case ExecutionError:
		return "ExecutionError"
	}
	return "InternalError"
}
