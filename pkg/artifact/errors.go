package artifact

import (
	"fmt"

	"github.com/pkg/errors"
)

// NotFoundError is returned when the requested artifact does not exist.
type NotFoundError struct {
	RunID string
	Name  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("artifact %s not found in run %s", e.Name, e.RunID)
}

// AccessDeniedError is returned when the requesting stage is not a transitive
// dependent of the artifact's producer.
type AccessDeniedError struct {
	Consumer string
	Producer string
	Name     string
}

func (e AccessDeniedError) Error() string {
	return fmt.Sprintf("stage %s cannot read artifact %s: not a transitive dependent of producer %s", e.Consumer, e.Name, e.Producer)
}

// CorruptionError is returned when stored content no longer matches its
// recorded checksum. Always fatal to the requesting stage.
type CorruptionError struct {
	Name     string
	Expected string
	Actual   string
}

func (e CorruptionError) Error() string {
	return fmt.Sprintf("artifact %s is corrupted: checksum %s, expected %s", e.Name, e.Actual, e.Expected)
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(NotFoundError)
	return ok
}

// IsAccessDenied returns true if the error is an AccessDeniedError.
func IsAccessDenied(err error) bool {
	_, ok := errors.Cause(err).(AccessDeniedError)
	return ok
}

// IsCorruption returns true if the error is a CorruptionError.
func IsCorruption(err error) bool {
	_, ok := errors.Cause(err).(CorruptionError)
	return ok
}
