package api

const (
	// InputPipelineArgs is the keyword used to reference pipeline arguments in stage inputs.
	InputPipelineArgs = "args"
)

// Kind designates the executor family used to run a stage.
type Kind string

const (
	// KindBuild invokes an external toolchain to produce artifacts.
	KindBuild Kind = "build"

	// KindScan submits an artifact to a SAST/SCA endpoint.
	KindScan Kind = "scan"

	// KindPublish uploads artifacts to a repository manager. Never auto-retried.
	KindPublish Kind = "publish"

	// KindCustom runs a caller-provided function.
	KindCustom Kind = "custom"
)

// Kinds lists the known stage kinds.
func Kinds() []Kind {
	return []Kind{KindBuild, KindScan, KindPublish, KindCustom}
}

// PipelineSpec is the specification of a pipeline. Immutable once loaded.
type PipelineSpec struct {
	Name    string      `json:"name" yaml:"name"`
	Version string      `json:"version,omitempty" yaml:"version,omitempty"`
	Trigger TriggerSpec `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Stages  []StageSpec `json:"stages" yaml:"stages"`
}

// TriggerSpec carries metadata about what started the run.
type TriggerSpec struct {
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Commit string `json:"commit,omitempty" yaml:"commit,omitempty"`
}

// StageSpec is the specification of a single stage.
type StageSpec struct {
	// ID uniquely identifies the stage within the pipeline.
	ID string `json:"id" yaml:"id"`

	// Kind selects the executor used to run the stage.
	Kind Kind `json:"kind" yaml:"kind"`

	// Needs lists the ids of stages that must reach a terminal state before this one runs.
	Needs []string `json:"needs,omitempty" yaml:"needs,omitempty"`

	// Inputs maps input names to values. String values may contain ${stage.output}
	// references to outputs of stages in the transitive Needs set, or ${args.x}
	// references to pipeline arguments.
	Inputs map[string]interface{} `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Secrets lists the secret names the stage requires. Resolution is strict:
	// a missing secret fails the stage before its executor is invoked.
	Secrets []string `json:"secrets,omitempty" yaml:"secrets,omitempty"`

	// Condition guards execution, evaluated once all Needs are terminal.
	// Supported forms: "", "always", "on-failure", `branch == "x"`, `branch != "x"`.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Idempotent declares the stage safe to re-execute, making it eligible
	// for bounded retry on transient execution errors.
	Idempotent bool `json:"idempotent,omitempty" yaml:"idempotent,omitempty"`

	// Timeout is an optional per-stage deadline, e.g. "10m". Overrides the
	// run-level stage timeout.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Spec is the kind-specific payload, decoded by the stage executor.
	Spec map[string]interface{} `json:"spec,omitempty" yaml:"spec,omitempty"`
}

// TransitiveNeeds returns the set of stage ids the given stage transitively
// depends on. Unknown references are ignored; Validate reports them.
func (p PipelineSpec) TransitiveNeeds(id string) map[string]bool {
	byID := make(map[string]StageSpec, len(p.Stages))
	for _, s := range p.Stages {
		byID[s.ID] = s
	}
	closure := make(map[string]bool)
	var walk func(string)
	walk = func(sid string) {
		for _, dep := range byID[sid].Needs {
			if !closure[dep] {
				closure[dep] = true
				walk(dep)
			}
		}
	}
	walk(id)
	return closure
}

// Stage returns the spec of the stage with the given id.
func (p PipelineSpec) Stage(id string) (StageSpec, bool) {
	for _, s := range p.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return StageSpec{}, false
}
