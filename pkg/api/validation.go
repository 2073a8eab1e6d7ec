package api

import (
	"fmt"
	"strings"
	"time"

	"conveyor/pkg/util/template"
)

// Validate validates the pipeline specification.
// Rules are:
// - Pipeline name is set and at least one stage is declared
// - Stage ids are unique, non-empty and not the reserved "args" keyword
// - Stage kinds are known
// - Needs refer to existing stages, never to the stage itself
// - The needs relation is acyclic (the minimal cycle is reported)
// - At least one stage has no dependencies
// - Input references point to pipeline args or to the transitive needs set
// - Conditions and timeouts parse
// - Publish stages are not declared idempotent
func (p PipelineSpec) Validate() error {
	if p.Name == "" {
		return MalformedSpecError{Reason: "pipeline name is required"}
	}
	if len(p.Stages) == 0 {
		return MalformedSpecError{Reason: "pipeline has no stages"}
	}

	byID := make(map[string]StageSpec, len(p.Stages))
	for _, s := range p.Stages {
		if s.ID == "" {
			return MalformedSpecError{Reason: "stage with empty id"}
		}
		if s.ID == InputPipelineArgs {
			return MalformedSpecError{StageID: s.ID, Reason: fmt.Sprintf("%q is a reserved id", InputPipelineArgs)}
		}
		if _, dup := byID[s.ID]; dup {
			return MalformedSpecError{StageID: s.ID, Reason: "duplicate stage id"}
		}
		byID[s.ID] = s
	}

	hasRoot := false
	for _, s := range p.Stages {
		if err := s.validate(p, byID); err != nil {
			return err
		}
		if len(s.Needs) == 0 {
			hasRoot = true
		}
	}
	if !hasRoot {
		return MalformedSpecError{Reason: "every stage has dependencies, at least one root stage is required"}
	}

	return p.detectCycle()
}

func (s StageSpec) validate(p PipelineSpec, byID map[string]StageSpec) error {
	known := false
	for _, k := range Kinds() {
		if s.Kind == k {
			known = true
			break
		}
	}
	if !known {
		return MalformedSpecError{StageID: s.ID, Reason: fmt.Sprintf("unknown kind %q", s.Kind)}
	}
	if s.Kind == KindPublish && s.Idempotent {
		return MalformedSpecError{StageID: s.ID, Reason: "publish stages cannot be idempotent, a failed publish requires manual remediation"}
	}
	for _, dep := range s.Needs {
		if dep == s.ID {
			return MalformedSpecError{StageID: s.ID, Reason: "stage depends on itself"}
		}
		if _, exists := byID[dep]; !exists {
			return UnknownReferenceError{StageID: s.ID, Reference: dep}
		}
	}
	if _, err := ParseCondition(s.Condition); err != nil {
		return MalformedSpecError{StageID: s.ID, Reason: err.Error()}
	}
	if s.Timeout != "" {
		if _, err := time.ParseDuration(s.Timeout); err != nil {
			return MalformedSpecError{StageID: s.ID, Reason: fmt.Sprintf("invalid timeout %q", s.Timeout)}
		}
	}

	// Input references are restricted to the transitive needs set. This is an
	// access-control invariant: a stage never reads data from unrelated or
	// downstream stages.
	closure := p.TransitiveNeeds(s.ID)
	for _, expr := range template.New(s.Inputs).FindAll() {
		ref := strings.Split(expr.Text, ".")[0]
		if ref == InputPipelineArgs {
			continue
		}
		if _, exists := byID[ref]; !exists {
			return UnknownReferenceError{StageID: s.ID, Reference: ref}
		}
		if !closure[ref] {
			return MalformedSpecError{StageID: s.ID, Reason: fmt.Sprintf("input references %s which is not in the transitive needs set", ref)}
		}
	}
	return nil
}

// detectCycle runs a DFS coloring over the needs relation and reports the
// minimal cycle found, as a sequence of stage ids.
func (p PipelineSpec) detectCycle() error {
	const (
		white = iota // unvisited
		grey         // on the current path
		black        // fully explored
	)
	color := make(map[string]int, len(p.Stages))
	byID := make(map[string]StageSpec, len(p.Stages))
	for _, s := range p.Stages {
		byID[s.ID] = s
	}

	var path []string
	var visit func(id string) *CycleError
	visit = func(id string) *CycleError {
		color[id] = grey
		path = append(path, id)
		for _, dep := range byID[id].Needs {
			switch color[dep] {
			case grey:
				// Slice the path from the first occurrence of dep to get the minimal cycle.
				start := 0
				for i, pid := range path {
					if pid == dep {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, path[start:]...), dep)
				return &CycleError{Cycle: cycle}
			case white:
				if ce := visit(dep); ce != nil {
					return ce
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return nil
	}

	for _, s := range p.Stages {
		if color[s.ID] == white {
			path = path[:0]
			if ce := visit(s.ID); ce != nil {
				return *ce
			}
		}
	}
	return nil
}
