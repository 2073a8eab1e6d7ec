package executor

import (
	"conveyor/pkg/api"
	"conveyor/pkg/artifact"
	"conveyor/pkg/secrets"
	"conveyor/pkg/util/context"

	"github.com/pkg/errors"
)

// Outputs is the mapping of output names to values a stage reports on success.
type Outputs map[string]interface{}

// StageContext carries everything one stage invocation may touch: resolved
// inputs, scoped secrets and an artifact accessor restricted to the stage's
// transitive needs set. Executors report outcomes through return values and
// never mutate shared pipeline state.
type StageContext struct {
	Spec      api.StageSpec
	Inputs    map[string]interface{}
	Secrets   secrets.Bindings
	Artifacts artifact.Accessor
	Branch    string
}

// Executor runs stages of one kind against an external tool family.
// The orchestrator never branches on kind, it dispatches through this
// interface.
type Executor interface {
	// Kind returns the stage kind this executor serves.
	Kind() api.Kind

	// Validate checks the kind specific payload of the spec at load time.
	Validate(spec api.StageSpec) error

	// Run executes the stage. Cancellation and deadlines arrive through ctx.
	Run(ctx context.Context, sc StageContext) (Outputs, error)
}

// Registry holds the executor for each stage kind.
type Registry struct {
	execs map[api.Kind]Executor
}

// NewRegistry returns a Registry serving the given executors.
func NewRegistry(execs ...Executor) Registry {
	r := Registry{execs: make(map[api.Kind]Executor, len(execs))}
	for _, e := range execs {
		r.execs[e.Kind()] = e
	}
	return r
}

// Default returns a Registry with the build, scan and publish executors.
func Default() Registry {
	return NewRegistry(NewBuild(), NewScan(), NewPublish())
}

// With returns a copy of the registry additionally serving the given
// executor, replacing any previous one of the same kind.
func (r Registry) With(e Executor) Registry {
	execs := make([]Executor, 0, len(r.execs)+1)
	for _, x := range r.execs {
		if x.Kind() != e.Kind() {
			execs = append(execs, x)
		}
	}
	return NewRegistry(append(execs, e)...)
}

// Len returns the number of registered executors.
func (r Registry) Len() int {
	return len(r.execs)
}

// Get returns the executor for the given kind.
func (r Registry) Get(kind api.Kind) (Executor, error) {
	e, exists := r.execs[kind]
	if !exists {
		return nil, errors.Errorf("no executor registered for kind %s", kind)
	}
	return e, nil
}

// Validate runs every stage spec through its executor's Validate.
func (r Registry) Validate(spec api.PipelineSpec) error {
	for _, s := range spec.Stages {
		e, err := r.Get(s.Kind)
		if err != nil {
			return ValidationError{StageID: s.ID, Reason: err.Error()}
		}
		if err := e.Validate(s); err != nil {
			return err
		}
	}
	return nil
}
