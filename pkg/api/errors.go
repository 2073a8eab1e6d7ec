package api

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// CycleError is returned when the needs relation contains a cycle.
// Cycle holds the minimal cycle as a sequence of stage ids, first id repeated last.
type CycleError struct {
	Cycle []string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// UnknownReferenceError is returned when a stage references a stage id that
// does not exist in the pipeline.
type UnknownReferenceError struct {
	StageID   string
	Reference string
}

func (e UnknownReferenceError) Error() string {
	return fmt.Sprintf("stage %s references unknown stage %s", e.StageID, e.Reference)
}

// MalformedSpecError is returned for any other load-time specification violation.
type MalformedSpecError struct {
	StageID string
	Reason  string
}

func (e MalformedSpecError) Error() string {
	if e.StageID == "" {
		return e.Reason
	}
	return fmt.Sprintf("stage %s: %s", e.StageID, e.Reason)
}

// IsDefinitionError returns true if the error denotes an invalid pipeline
// definition, failing the run before any stage executes.
func IsDefinitionError(err error) bool {
	switch errors.Cause(err).(type) {
	case CycleError, UnknownReferenceError, MalformedSpecError:
		return true
	}
	return false
}
