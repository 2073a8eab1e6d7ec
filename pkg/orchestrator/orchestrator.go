package orchestrator

import (
	gocontext "context"
	"sync"
	"time"

	"conveyor/pkg/api"
	"conveyor/pkg/artifact"
	"conveyor/pkg/events"
	"conveyor/pkg/executor"
	"conveyor/pkg/graph"
	"conveyor/pkg/secrets"
	"conveyor/pkg/util/context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Policy selects the global failure behavior of a run.
type Policy string

const (
	// FailFast cancels running stages and skips pending ones on the first failure.
	FailFast Policy = "fail-fast"

	// BestEffort lets independent branches continue; only dependents of a
	// failed stage are skipped.
	BestEffort Policy = "best-effort"
)

const defaultParallelism = 4

// Options configures one pipeline run.
type Options struct {
	// Parallelism bounds the number of concurrently running stage executors.
	Parallelism int

	// Policy is the global failure policy. Defaults to FailFast.
	Policy Policy

	// StageTimeout is the default deadline per stage invocation, zero for none.
	// A stage spec timeout overrides it.
	StageTimeout time.Duration

	// Branch is the branch the run was triggered for, fed to conditions.
	Branch string

	// Args are the pipeline arguments referenced as ${args.x} in stage inputs.
	Args map[string]interface{}

	// Secrets is the injected secret environment. Stage logic never reads the
	// process environment; this map is the single boundary.
	Secrets map[string]string

	// Artifacts is the artifact store backend. Defaults to in-memory.
	Artifacts artifact.Store

	// Executors serves the stage kinds. Defaults to executor.Default().
	Executors executor.Registry

	// Emitter receives lifecycle events. Defaults to the log emitter.
	Emitter events.Emitter

	// Retry bounds re-execution of idempotent stages.
	Retry executor.RetryPolicy
}

// Orchestrator drives one pipeline run: it asks the dependency graph for
// ready stages, dispatches them to executors within the parallelism bound,
// applies terminal transitions and loops until every stage is terminal.
// Stage state is owned exclusively by the coordinating goroutine.
type Orchestrator struct {
	opts  Options
	spec  api.PipelineSpec
	g     *graph.Graph
	runID string

	mu     sync.Mutex // guards states and times for State()
	states map[string]*api.StageState

	startedAt *time.Time
	endedAt   *time.Time

	abortOnce sync.Once
	abort     chan struct{}
	aborted   bool
}

// stageDone is the completion record an executor goroutine reports back.
type stageDone struct {
	id        string
	outputs   executor.Outputs
	attempts  int
	errKind   string
	errMsg    string // redacted
	failed    bool
	cancelled bool
}

// New validates the definition and prepares a single-use Orchestrator.
// Definition errors fail here, before any stage run exists.
func New(spec api.PipelineSpec, opts Options) (*Orchestrator, error) {
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	if opts.Policy == "" {
		opts.Policy = FailFast
	}
	if opts.Policy != FailFast && opts.Policy != BestEffort {
		return nil, errors.Errorf("unknown policy %q", opts.Policy)
	}
	if opts.Artifacts == nil {
		opts.Artifacts = artifact.NewInMemoryStore()
	}
	if opts.Executors.Len() == 0 {
		opts.Executors = executor.Default()
	}
	if opts.Emitter == nil {
		opts.Emitter = events.NewLogEmitter()
	}
	if (opts.Retry == executor.RetryPolicy{}) {
		opts.Retry = executor.DefaultRetryPolicy()
	}

	branch := opts.Branch
	if branch == "" {
		branch = spec.Trigger.Branch
	}
	g, err := graph.Build(spec, branch)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		opts:   opts,
		spec:   spec,
		g:      g,
		states: make(map[string]*api.StageState, len(spec.Stages)),
		abort:  make(chan struct{}),
	}
	for _, s := range spec.Stages {
		o.states[s.ID] = &api.StageState{ID: s.ID, Status: api.StatusPending}
	}
	return o, nil
}

// RunID returns the id of the run, set once Run starts.
func (o *Orchestrator) RunID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runID
}

// Abort requests cancellation: running stages are asked to stop and marked
// Cancelled, pending stages are skipped, and the run's artifacts discarded.
func (o *Orchestrator) Abort() {
	o.abortOnce.Do(func() {
		close(o.abort)
	})
}

// Run drives the pipeline to completion and returns the aggregated result.
// The returned error reports internal failures only; stage failures are
// accounted for per stage in the RunResult.
func (o *Orchestrator) Run(ctx gocontext.Context) (api.RunResult, error) {
	cctx := context.FromContext(ctx)
	runID := cctx.RunID()
	if runID == "" {
		runID = uuid.New().String()
		cctx = context.WithRunID(cctx, runID)
	}
	o.mu.Lock()
	o.runID = runID
	now := time.Now()
	o.startedAt = &now
	o.mu.Unlock()

	runCtx, cancelRun := gocontext.WithCancel(cctx)
	defer cancelRun()
	base := context.Wrap(cctx, runCtx)

	cctx.Logger().Infof("starting pipeline %s", o.spec.Name)
	o.emit(cctx, events.Event{Type: events.TypeRunStarted, RunID: runID, Time: time.Now()})

	done := make(chan stageDone)
	sem := make(chan struct{}, o.opts.Parallelism)
	outstanding := 0
	failing := false
	abortCh := o.abort

	for {
		ready := o.g.Ready()
		o.recordSkips(base)
		for _, spec := range ready {
			if err := o.g.MarkRunning(spec.ID); err != nil {
				return o.result(), err
			}
			o.setRunning(spec.ID)
			o.emit(base, events.Event{Type: events.TypeStageStarted, RunID: runID, StageID: spec.ID, Status: api.StatusRunning, Time: time.Now()})
			outstanding++
			go o.execute(base, runCtx, spec, sem, done)
		}

		if o.g.Done() && outstanding == 0 {
			break
		}
		if outstanding == 0 && len(ready) == 0 {
			// Cannot happen for a valid acyclic graph; guard against a stall.
			return o.result(), errors.Errorf("pipeline %s stalled with no runnable stage", o.spec.Name)
		}

		select {
		case d := <-done:
			outstanding--
			status, err := o.apply(base, d)
			if err != nil {
				return o.result(), err
			}
			if status == api.StatusFailed && o.opts.Policy == FailFast && !failing {
				failing = true
				cancelRun()
				o.skipAll(base)
			}
		case <-abortCh:
			abortCh = nil
			o.mu.Lock()
			o.aborted = true
			o.mu.Unlock()
			cctx.Logger().Infof("aborting pipeline %s", o.spec.Name)
			cancelRun()
			o.skipAll(base)
		}
	}

	o.mu.Lock()
	end := time.Now()
	o.endedAt = &end
	aborted := o.aborted
	o.mu.Unlock()

	if aborted {
		// Artifacts of an aborted run are discarded.
		if err := o.opts.Artifacts.Discard(cctx, runID); err != nil {
			cctx.Logger().Error(errors.Wrapf(err, "cannot discard artifacts of run %s", runID))
		}
		o.emit(cctx, events.Event{Type: events.TypeRunAborted, RunID: runID, Status: api.StatusCancelled, Time: time.Now()})
	}

	res := o.result()
	cctx.Logger().Infof("pipeline %s finished with verdict %s", o.spec.Name, res.Verdict)
	o.emit(cctx, events.Event{Type: events.TypeRunFinished, RunID: runID, Status: res.Verdict, Time: time.Now()})
	return res, nil
}

// execute runs one stage in its own goroutine: acquire a parallelism slot,
// resolve secrets and inputs, invoke the executor with retry, classify the
// outcome. Results travel back on the done channel only.
func (o *Orchestrator) execute(base context.Context, runCtx gocontext.Context, spec api.StageSpec, sem chan struct{}, done chan<- stageDone) {
	sem <- struct{}{}
	defer func() { <-sem }()

	sctx := context.WithStageID(base, spec.ID)
	if runCtx.Err() != nil {
		done <- stageDone{id: spec.ID, cancelled: true}
		return
	}

	fail := func(err error) {
		done <- stageDone{id: spec.ID, failed: true, errKind: classify(err), errMsg: err.Error()}
	}

	exec, err := o.opts.Executors.Get(spec.Kind)
	if err != nil {
		fail(executor.ValidationError{StageID: spec.ID, Reason: err.Error()})
		return
	}
	if err := exec.Validate(spec); err != nil {
		fail(err)
		return
	}

	// Fail closed before the external tool is invoked.
	bindings, err := secrets.Resolve(spec, o.opts.Secrets)
	if err != nil {
		fail(err)
		return
	}
	inputs, err := o.resolveInputs(spec)
	if err != nil {
		fail(err)
		return
	}

	timeout := o.opts.StageTimeout
	if spec.Timeout != "" {
		if d, perr := time.ParseDuration(spec.Timeout); perr == nil {
			timeout = d
		}
	}
	stageCtx := gocontext.Context(runCtx)
	if timeout > 0 {
		var cancel gocontext.CancelFunc
		stageCtx, cancel = gocontext.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	ectx := context.Wrap(sctx, stageCtx)

	sc := executor.StageContext{
		Spec:      spec,
		Inputs:    inputs,
		Secrets:   bindings,
		Artifacts: artifact.ForStage(o.opts.Artifacts, o.runID, spec.ID, o.g.Reaches),
		Branch:    o.opts.Branch,
	}
	idempotent := spec.Idempotent && spec.Kind != api.KindPublish

	outputs, attempts, err := executor.Do(ectx, o.opts.Retry, idempotent, func() (executor.Outputs, error) {
		return exec.Run(ectx, sc)
	})
	if err != nil {
		if runCtx.Err() != nil {
			done <- stageDone{id: spec.ID, attempts: attempts, cancelled: true}
			return
		}
		if stageCtx.Err() == gocontext.DeadlineExceeded {
			err = executor.TimeoutError{StageID: spec.ID, Timeout: timeout}
		}
		// Secret material stays out of the per-stage error.
		done <- stageDone{
			id:       spec.ID,
			attempts: attempts,
			failed:   true,
			errKind:  classify(err),
			errMsg:   bindings.Redact(err.Error()),
		}
		return
	}
	done <- stageDone{id: spec.ID, outputs: outputs, attempts: attempts}
}
