package graph

import (
	"conveyor/pkg/api"

	"github.com/pkg/errors"
)

// Graph is the runtime dependency graph of one pipeline run. It tracks the
// status of every stage and computes the set of stages ready for dispatch.
// Graph is not safe for concurrent use; the orchestrator owns it from its
// single coordinating goroutine.
type Graph struct {
	spec   api.PipelineSpec
	branch string
	order  []string // declaration order, the dispatch tie-break
	nodes  map[string]*node
}

type node struct {
	spec       api.StageSpec
	condition  api.Condition
	status     api.Status
	dependents []string
}

// Build constructs the graph for the given validated spec.
// The spec is re-validated so a graph can never exist for a cyclic or
// dangling needs relation.
func Build(spec api.PipelineSpec, branch string) (*Graph, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	g := &Graph{
		spec:   spec,
		branch: branch,
		nodes:  make(map[string]*node, len(spec.Stages)),
	}
	for _, s := range spec.Stages {
		cond, err := api.ParseCondition(s.Condition)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %s", s.ID)
		}
		g.order = append(g.order, s.ID)
		g.nodes[s.ID] = &node{
			spec:      s,
			condition: cond,
			status:    api.StatusPending,
		}
	}
	for _, s := range spec.Stages {
		for _, dep := range s.Needs {
			g.nodes[dep].dependents = append(g.nodes[dep].dependents, s.ID)
		}
	}
	return g, nil
}

// Ready returns the specs of the stages eligible for dispatch, in declaration
// order: still pending, every dependency terminal, condition true. Stages
// whose dependencies are terminal but whose condition is false transition to
// Skipped (cascading), so a stage returned here is the only way out of
// Pending besides a skip.
func (g *Graph) Ready() []api.StageSpec {
	// A skip can make further stages eligible, so scan until stable.
	for {
		var ready []api.StageSpec
		skippedAny := false
		for _, id := range g.order {
			n := g.nodes[id]
			if n.status != api.StatusPending || !g.needsTerminal(n) {
				continue
			}
			if n.condition.Holds(g.branch, g.upstreamOutcome(n)) {
				ready = append(ready, n.spec)
			} else {
				g.skip(id)
				skippedAny = true
			}
		}
		if !skippedAny {
			return ready
		}
	}
}

// MarkRunning transitions a dispatched stage to Running.
func (g *Graph) MarkRunning(id string) error {
	n, exists := g.nodes[id]
	if !exists {
		return errors.Errorf("unknown stage %s", id)
	}
	n.status = api.StatusRunning
	return nil
}

// MarkTerminal transitions a stage to the given terminal status and
// recomputes downstream reachability: dependents of a failed, cancelled or
// skipped stage are transitively skipped unless their condition overrides
// the cascade. Returns the ids of the newly skipped stages, in declaration
// order.
func (g *Graph) MarkTerminal(id string, status api.Status) ([]string, error) {
	n, exists := g.nodes[id]
	if !exists {
		return nil, errors.Errorf("unknown stage %s", id)
	}
	if !status.Terminal() {
		return nil, errors.Errorf("status %s is not terminal", status)
	}
	if n.status.Terminal() {
		return nil, errors.Errorf("stage %s is already %s", id, n.status)
	}
	n.status = status

	var skipped []string
	if status != api.StatusSucceeded {
		g.cascade(id, &skipped)
	}
	return g.inDeclarationOrder(skipped), nil
}

// SkipPending skips every pending stage, cascading. Used by fail-fast
// shutdown and abort. Returns the newly skipped ids in declaration order.
func (g *Graph) SkipPending() []string {
	var skipped []string
	for _, id := range g.order {
		if g.nodes[id].status == api.StatusPending {
			g.nodes[id].status = api.StatusSkipped
			skipped = append(skipped, id)
		}
	}
	return skipped
}

// cascade transitively skips the pending dependents of a non-succeeded stage,
// sparing those whose condition runs on failure.
func (g *Graph) cascade(id string, skipped *[]string) {
	for _, depID := range g.nodes[id].dependents {
		dep := g.nodes[depID]
		if dep.status != api.StatusPending || dep.condition.RunsOnFailure() {
			continue
		}
		dep.status = api.StatusSkipped
		*skipped = append(*skipped, depID)
		g.cascade(depID, skipped)
	}
}

// skip marks a condition-false stage Skipped and cascades.
func (g *Graph) skip(id string) {
	g.nodes[id].status = api.StatusSkipped
	var skipped []string
	g.cascade(id, &skipped)
}

func (g *Graph) needsTerminal(n *node) bool {
	for _, dep := range n.spec.Needs {
		if !g.nodes[dep].status.Terminal() {
			return false
		}
	}
	return true
}

func (g *Graph) upstreamOutcome(n *node) api.Outcome {
	out := api.Outcome{AllSucceeded: true}
	for _, dep := range n.spec.Needs {
		switch g.nodes[dep].status {
		case api.StatusSucceeded:
		case api.StatusFailed:
			out.AllSucceeded = false
			out.AnyFailed = true
		default:
			out.AllSucceeded = false
		}
	}
	return out
}

// Done reports whether every stage reached a terminal state.
func (g *Graph) Done() bool {
	for _, n := range g.nodes {
		if !n.status.Terminal() {
			return false
		}
	}
	return true
}

// Status returns the current status of a stage. Pending stages are reported
// as Blocked while their dependencies are unfinished, Ready once eligible.
func (g *Graph) Status(id string) api.Status {
	n, exists := g.nodes[id]
	if !exists {
		return ""
	}
	if n.status == api.StatusPending && !g.needsTerminal(n) {
		return api.StatusBlocked
	}
	if n.status == api.StatusPending {
		return api.StatusReady
	}
	return n.status
}

// Statuses returns the raw status of every stage.
func (g *Graph) Statuses() map[string]api.Status {
	res := make(map[string]api.Status, len(g.nodes))
	for id, n := range g.nodes {
		res[id] = n.status
	}
	return res
}

// Reaches reports whether consumer transitively depends on producer.
// This is the access-control relation of the artifact store.
func (g *Graph) Reaches(consumer, producer string) bool {
	return g.spec.TransitiveNeeds(consumer)[producer]
}

// Spec returns the pipeline spec the graph was built from.
func (g *Graph) Spec() api.PipelineSpec {
	return g.spec
}

func (g *Graph) inDeclarationOrder(ids []string) []string {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var ordered []string
	for _, id := range g.order {
		if set[id] {
			ordered = append(ordered, id)
		}
	}
	return ordered
}
