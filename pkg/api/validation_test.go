package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() PipelineSpec {
	return PipelineSpec{
		Name: "pipe",
		Stages: []StageSpec{
			{ID: "build", Kind: KindBuild},
			{ID: "scan", Kind: KindScan, Needs: []string{"build"}},
			{ID: "publish", Kind: KindPublish, Needs: []string{"scan"}},
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, validSpec().Validate())
	})

	t.Run("missing_name", func(t *testing.T) {
		p := validSpec()
		p.Name = ""
		err := p.Validate()
		require.Error(t, err)
		assert.True(t, IsDefinitionError(err))
	})

	t.Run("no_stages", func(t *testing.T) {
		p := PipelineSpec{Name: "pipe"}
		require.Error(t, p.Validate())
	})

	t.Run("duplicate_id", func(t *testing.T) {
		p := validSpec()
		p.Stages = append(p.Stages, StageSpec{ID: "build", Kind: KindBuild})
		err := p.Validate()
		require.IsType(t, MalformedSpecError{}, err)
		assert.Equal(t, "build", err.(MalformedSpecError).StageID)
	})

	t.Run("reserved_id", func(t *testing.T) {
		p := validSpec()
		p.Stages = append(p.Stages, StageSpec{ID: InputPipelineArgs, Kind: KindBuild})
		require.IsType(t, MalformedSpecError{}, p.Validate())
	})

	t.Run("unknown_kind", func(t *testing.T) {
		p := validSpec()
		p.Stages[0].Kind = "compile"
		require.IsType(t, MalformedSpecError{}, p.Validate())
	})

	t.Run("publish_idempotent", func(t *testing.T) {
		p := validSpec()
		p.Stages[2].Idempotent = true
		err := p.Validate()
		require.IsType(t, MalformedSpecError{}, err)
		assert.Equal(t, "publish", err.(MalformedSpecError).StageID)
	})

	t.Run("self_dependency", func(t *testing.T) {
		p := validSpec()
		p.Stages[1].Needs = []string{"build", "scan"}
		require.IsType(t, MalformedSpecError{}, p.Validate())
	})

	t.Run("unknown_need", func(t *testing.T) {
		p := validSpec()
		p.Stages[1].Needs = []string{"compile"}
		err := p.Validate()
		require.IsType(t, UnknownReferenceError{}, err)
		assert.Equal(t, "compile", err.(UnknownReferenceError).Reference)
	})

	t.Run("no_root", func(t *testing.T) {
		p := PipelineSpec{
			Name: "pipe",
			Stages: []StageSpec{
				{ID: "a", Kind: KindCustom, Needs: []string{"b"}},
				{ID: "b", Kind: KindCustom, Needs: []string{"a"}},
			},
		}
		require.IsType(t, MalformedSpecError{}, p.Validate())
	})

	t.Run("minimal_cycle_reported", func(t *testing.T) {
		p := PipelineSpec{
			Name: "pipe",
			Stages: []StageSpec{
				{ID: "root", Kind: KindCustom},
				{ID: "b", Kind: KindCustom, Needs: []string{"c"}},
				{ID: "c", Kind: KindCustom, Needs: []string{"d"}},
				{ID: "d", Kind: KindCustom, Needs: []string{"b", "root"}},
			},
		}
		err := p.Validate()
		require.IsType(t, CycleError{}, err)
		assert.Equal(t, []string{"b", "c", "d", "b"}, err.(CycleError).Cycle)
	})

	t.Run("bad_condition", func(t *testing.T) {
		p := validSpec()
		p.Stages[1].Condition = "commit == abc"
		require.IsType(t, MalformedSpecError{}, p.Validate())
	})

	t.Run("bad_timeout", func(t *testing.T) {
		p := validSpec()
		p.Stages[1].Timeout = "soon"
		require.IsType(t, MalformedSpecError{}, p.Validate())
	})

	t.Run("input_ref_args_ok", func(t *testing.T) {
		p := validSpec()
		p.Stages[0].Inputs = map[string]interface{}{"version": "${args.version}"}
		assert.NoError(t, p.Validate())
	})

	t.Run("input_ref_transitive_need_ok", func(t *testing.T) {
		p := validSpec()
		p.Stages[2].Inputs = map[string]interface{}{"sum": "${build.checksum}"}
		assert.NoError(t, p.Validate())
	})

	t.Run("input_ref_outside_needs", func(t *testing.T) {
		p := validSpec()
		p.Stages[0].Inputs = map[string]interface{}{"sum": "${scan.verdict}"}
		err := p.Validate()
		require.IsType(t, MalformedSpecError{}, err)
		assert.Equal(t, "build", err.(MalformedSpecError).StageID)
	})

	t.Run("input_ref_unknown_stage", func(t *testing.T) {
		p := validSpec()
		p.Stages[2].Inputs = map[string]interface{}{"sum": "${compile.checksum}"}
		require.IsType(t, UnknownReferenceError{}, p.Validate())
	})
}

func TestTransitiveNeeds(t *testing.T) {
	p := PipelineSpec{
		Name: "pipe",
		Stages: []StageSpec{
			{ID: "a", Kind: KindCustom},
			{ID: "b", Kind: KindCustom, Needs: []string{"a"}},
			{ID: "c", Kind: KindCustom, Needs: []string{"b"}},
			{ID: "d", Kind: KindCustom},
		},
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, p.TransitiveNeeds("c"))
	assert.Empty(t, p.TransitiveNeeds("a"))
	assert.Empty(t, p.TransitiveNeeds("d"))
}

func TestComputeVerdict(t *testing.T) {
	t.Run("all_succeeded", func(t *testing.T) {
		stages := []StageState{{Status: StatusSucceeded}, {Status: StatusSkipped}}
		assert.Equal(t, StatusSucceeded, ComputeVerdict(stages))
	})

	t.Run("failure_wins", func(t *testing.T) {
		stages := []StageState{{Status: StatusSucceeded}, {Status: StatusFailed}, {Status: StatusCancelled}}
		assert.Equal(t, StatusFailed, ComputeVerdict(stages))
	})

	t.Run("cancelled_without_failure", func(t *testing.T) {
		stages := []StageState{{Status: StatusSucceeded}, {Status: StatusCancelled}}
		assert.Equal(t, StatusCancelled, ComputeVerdict(stages))
	})
}
