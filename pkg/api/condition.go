package api

import (
	"strings"

	"github.com/pkg/errors"
)

// Condition is a predicate guarding stage execution, evaluated once every
// dependency of the stage reached a terminal state.
type Condition struct {
	kind     conditionKind
	branch   string
	negated  bool
	original string
}

type conditionKind int

const (
	condDefault conditionKind = iota // all needs succeeded
	condAlways                       // run whatever the upstream outcome
	condOnFailure                    // run only if at least one need failed
	condBranch                       // branch predicate, needs must have succeeded
)

// ParseCondition parses the condition expression of a stage spec.
func ParseCondition(expr string) (Condition, error) {
	c := Condition{original: expr}
	switch trimmed := strings.TrimSpace(expr); trimmed {
	case "":
		c.kind = condDefault
	case "always":
		c.kind = condAlways
	case "on-failure":
		c.kind = condOnFailure
	default:
		op := "=="
		idx := strings.Index(trimmed, op)
		if idx < 0 {
			op = "!="
			idx = strings.Index(trimmed, op)
		}
		if idx < 0 || strings.TrimSpace(trimmed[:idx]) != "branch" {
			return Condition{}, errors.Errorf("unsupported condition %q", expr)
		}
		val := strings.TrimSpace(trimmed[idx+len(op):])
		val = strings.Trim(val, `"'`)
		if val == "" {
			return Condition{}, errors.Errorf("condition %q compares branch to an empty value", expr)
		}
		c.kind = condBranch
		c.branch = val
		c.negated = op == "!="
	}
	return c, nil
}

// Outcome summarizes the terminal statuses of a stage's dependencies.
type Outcome struct {
	AllSucceeded bool
	AnyFailed    bool
}

// Holds reports whether the condition allows the stage to run on the given
// branch with the given upstream outcome.
func (c Condition) Holds(branch string, up Outcome) bool {
	switch c.kind {
	case condAlways:
		return true
	case condOnFailure:
		return up.AnyFailed
	case condBranch:
		if !up.AllSucceeded {
			return false
		}
		if c.negated {
			return branch != c.branch
		}
		return branch == c.branch
	default:
		return up.AllSucceeded
	}
}

// RunsOnFailure reports whether the condition overrides the skip cascade
// triggered by a failed or skipped dependency.
func (c Condition) RunsOnFailure() bool {
	return c.kind == condAlways || c.kind == condOnFailure
}

func (c Condition) String() string {
	return c.original
}
