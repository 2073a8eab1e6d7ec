package orchestrator

import (
	"time"

	"conveyor/pkg/api"
	"conveyor/pkg/artifact"
	"conveyor/pkg/events"
	"conveyor/pkg/executor"
	"conveyor/pkg/secrets"
	"conveyor/pkg/util/context"
	"conveyor/pkg/util/template"

	"github.com/pkg/errors"
)

// apply records a completion, transitions the graph and cascades skips.
// Returns the terminal status recorded for the stage.
func (o *Orchestrator) apply(ctx context.Context, d stageDone) (api.Status, error) {
	o.mu.Lock()
	aborted := o.aborted
	o.mu.Unlock()
	if aborted && !d.cancelled {
		// A stage running at abort time ends Cancelled even if its executor
		// ignored the cancellation and reported an outcome.
		d = stageDone{id: d.id, attempts: d.attempts, cancelled: true}
	}

	var status api.Status
	var serr *api.StageError
	switch {
	case d.cancelled:
		status = api.StatusCancelled
	case d.failed:
		status = api.StatusFailed
		serr = &api.StageError{Kind: d.errKind, Message: d.errMsg}
	default:
		status = api.StatusSucceeded
	}

	skipped, err := o.g.MarkTerminal(d.id, status)
	if err != nil {
		return status, errors.Wrapf(err, "cannot mark stage %s %s", d.id, status)
	}

	now := time.Now()
	o.mu.Lock()
	st := o.states[d.id]
	st.Status = status
	st.Attempts = d.attempts
	st.EndedAt = &now
	st.Error = serr
	if status == api.StatusSucceeded {
		st.Outputs = d.outputs
	}
	o.mu.Unlock()

	ctx.Logger().Infof("stage %s finished with status %s", d.id, status)
	o.emit(ctx, events.Event{
		Type:    events.TypeStageFinished,
		RunID:   o.runID,
		StageID: d.id,
		Status:  status,
		Time:    now,
		Message: errMessage(serr),
	})
	for _, id := range skipped {
		o.recordSkip(ctx, id)
	}
	return status, nil
}

// recordSkips mirrors condition-driven skips performed by the graph during
// Ready into the run states.
func (o *Orchestrator) recordSkips(ctx context.Context) {
	statuses := o.g.Statuses()
	o.mu.Lock()
	var newly []string
	for id, s := range statuses {
		if s == api.StatusSkipped && o.states[id].Status != api.StatusSkipped {
			newly = append(newly, id)
		}
	}
	o.mu.Unlock()
	for _, id := range newly {
		o.recordSkip(ctx, id)
	}
}

func (o *Orchestrator) recordSkip(ctx context.Context, id string) {
	now := time.Now()
	o.mu.Lock()
	st := o.states[id]
	st.Status = api.StatusSkipped
	st.EndedAt = &now
	o.mu.Unlock()
	o.emit(ctx, events.Event{
		Type:    events.TypeStageFinished,
		RunID:   o.runID,
		StageID: id,
		Status:  api.StatusSkipped,
		Time:    now,
	})
}

// skipAll skips every pending stage, for fail-fast shutdown and abort.
func (o *Orchestrator) skipAll(ctx context.Context) {
	for _, id := range o.g.SkipPending() {
		o.recordSkip(ctx, id)
	}
}

func (o *Orchestrator) setRunning(id string) {
	now := time.Now()
	o.mu.Lock()
	st := o.states[id]
	st.Status = api.StatusRunning
	st.StartedAt = &now
	o.mu.Unlock()
}

// resolveInputs resolves ${...} references in the stage inputs against the
// pipeline args and the outputs of the stage's terminal dependencies.
func (o *Orchestrator) resolveInputs(spec api.StageSpec) (map[string]interface{}, error) {
	if len(spec.Inputs) == 0 {
		return nil, nil
	}
	scope := map[string]interface{}{
		api.InputPipelineArgs: o.opts.Args,
	}
	o.mu.Lock()
	for _, dep := range spec.Needs {
		outputs := o.states[dep].Outputs
		m := make(map[string]interface{}, len(outputs))
		for k, v := range outputs {
			m[k] = v
		}
		scope[dep] = m
	}
	o.mu.Unlock()

	var in interface{} = spec.Inputs
	resolved, err := template.New(in).Resolve(template.ResolveWithMap(scope))
	if err != nil {
		return nil, executor.ValidationError{StageID: spec.ID, Reason: err.Error()}
	}
	asMap, isMap := resolved.(map[string]interface{})
	if !isMap {
		return nil, executor.ValidationError{StageID: spec.ID, Reason: "inputs did not resolve to a map"}
	}
	return asMap, nil
}

// result assembles the RunResult snapshot, stages in declaration order.
func (o *Orchestrator) result() api.RunResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	res := api.RunResult{
		RunID:     o.runID,
		Name:      o.spec.Name,
		StartedAt: o.startedAt,
		EndedAt:   o.endedAt,
	}
	for _, s := range o.spec.Stages {
		res.Stages = append(res.Stages, *o.states[s.ID])
	}
	res.Verdict = api.ComputeVerdict(res.Stages)
	if o.aborted && res.Verdict != api.StatusFailed {
		res.Verdict = api.StatusCancelled
	}
	if o.endedAt == nil {
		res.Verdict = api.StatusRunning
	}
	return res
}

// State returns a point-in-time snapshot of the run, safe to call while the
// run is in flight.
func (o *Orchestrator) State() api.RunResult {
	return o.result()
}

func (o *Orchestrator) emit(ctx context.Context, evt events.Event) {
	if ctx == nil {
		ctx = context.WithRunID(context.Background(), o.runID)
	}
	evt.CorrelationID = ctx.CorrelationID()
	if err := o.opts.Emitter.Emit(ctx, evt); err != nil {
		ctx.Logger().Error(errors.Wrapf(err, "cannot emit event %s", evt))
	}
}

// classify names the error kind reported in a StageError.
func classify(err error) string {
	switch errors.Cause(err).(type) {
	case secrets.MissingSecretError:
		return "MissingSecretError"
	case artifact.AccessDeniedError:
		return "AccessDeniedError"
	case artifact.NotFoundError:
		return "NotFoundError"
	case artifact.CorruptionError:
		return "CorruptionError"
	}
	return executor.Kind(err)
}

func errMessage(serr *api.StageError) string {
	if serr == nil {
		return ""
	}
	return serr.Message
}
