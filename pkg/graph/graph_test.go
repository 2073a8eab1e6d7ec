package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conveyor/pkg/api"
)

// build -> {scanA, scanB} -> publish
func diamond() api.PipelineSpec {
	return api.PipelineSpec{
		Name: "diamond",
		Stages: []api.StageSpec{
			{ID: "build", Kind: api.KindBuild},
			{ID: "scanA", Kind: api.KindScan, Needs: []string{"build"}},
			{ID: "scanB", Kind: api.KindScan, Needs: []string{"build"}},
			{ID: "publish", Kind: api.KindPublish, Needs: []string{"scanA", "scanB"}},
		},
	}
}

func ids(specs []api.StageSpec) []string {
	var out []string
	for _, s := range specs {
		out = append(out, s.ID)
	}
	return out
}

func TestBuild(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		g, err := Build(diamond(), "main")
		require.NoError(t, err)
		assert.Equal(t, api.StatusReady, g.Status("build"))
		assert.Equal(t, api.StatusBlocked, g.Status("publish"))
	})

	t.Run("invalid_spec_rejected", func(t *testing.T) {
		p := diamond()
		p.Stages[1].Needs = []string{"missing"}
		_, err := Build(p, "main")
		require.Error(t, err)
		assert.True(t, api.IsDefinitionError(err))
	})
}

func TestReady(t *testing.T) {
	t.Run("initial_roots_in_declaration_order", func(t *testing.T) {
		p := diamond()
		p.Stages = append(p.Stages, api.StageSpec{ID: "lint", Kind: api.KindCustom})
		g, err := Build(p, "main")
		require.NoError(t, err)
		assert.Equal(t, []string{"build", "lint"}, ids(g.Ready()))
	})

	t.Run("fanout_after_success", func(t *testing.T) {
		g, err := Build(diamond(), "main")
		require.NoError(t, err)
		require.NoError(t, g.MarkRunning("build"))
		_, err = g.MarkTerminal("build", api.StatusSucceeded)
		require.NoError(t, err)
		assert.Equal(t, []string{"scanA", "scanB"}, ids(g.Ready()))
	})

	t.Run("dispatched_stage_not_returned_twice", func(t *testing.T) {
		g, err := Build(diamond(), "main")
		require.NoError(t, err)
		require.NoError(t, g.MarkRunning("build"))
		assert.Empty(t, g.Ready())
	})

	t.Run("branch_condition_skip_cascades", func(t *testing.T) {
		p := diamond()
		p.Stages[2].Condition = `branch == "main"`
		g, err := Build(p, "dev")
		require.NoError(t, err)
		require.NoError(t, g.MarkRunning("build"))
		_, err = g.MarkTerminal("build", api.StatusSucceeded)
		require.NoError(t, err)

		assert.Equal(t, []string{"scanA"}, ids(g.Ready()))
		assert.Equal(t, api.StatusSkipped, g.Status("scanB"))
		assert.Equal(t, api.StatusSkipped, g.Status("publish"))
	})

	t.Run("condition_skip_unblocks_on_failure_dependent", func(t *testing.T) {
		p := api.PipelineSpec{
			Name: "pipe",
			Stages: []api.StageSpec{
				{ID: "build", Kind: api.KindBuild},
				{ID: "canary", Kind: api.KindCustom, Needs: []string{"build"}, Condition: `branch == "main"`},
				{ID: "cleanup", Kind: api.KindCustom, Needs: []string{"canary"}, Condition: "always"},
			},
		}
		g, err := Build(p, "dev")
		require.NoError(t, err)
		require.NoError(t, g.MarkRunning("build"))
		_, err = g.MarkTerminal("build", api.StatusSucceeded)
		require.NoError(t, err)

		// canary is skipped for the branch, cleanup becomes ready in the same scan.
		assert.Equal(t, []string{"cleanup"}, ids(g.Ready()))
		assert.Equal(t, api.StatusSkipped, g.Status("canary"))
	})
}

func TestMarkTerminal(t *testing.T) {
	t.Run("failure_skips_dependents", func(t *testing.T) {
		g, err := Build(diamond(), "main")
		require.NoError(t, err)
		require.NoError(t, g.MarkRunning("build"))
		skipped, err := g.MarkTerminal("build", api.StatusFailed)
		require.NoError(t, err)
		assert.Equal(t, []string{"scanA", "scanB", "publish"}, skipped)
		assert.True(t, g.Done())
	})

	t.Run("cascade_spares_on_failure_stages", func(t *testing.T) {
		p := diamond()
		p.Stages = append(p.Stages, api.StageSpec{
			ID: "notify", Kind: api.KindCustom, Needs: []string{"build"}, Condition: "on-failure",
		})
		g, err := Build(p, "main")
		require.NoError(t, err)
		require.NoError(t, g.MarkRunning("build"))
		skipped, err := g.MarkTerminal("build", api.StatusFailed)
		require.NoError(t, err)
		assert.Equal(t, []string{"scanA", "scanB", "publish"}, skipped)
		assert.Equal(t, []string{"notify"}, ids(g.Ready()))
	})

	t.Run("double_terminal_rejected", func(t *testing.T) {
		g, err := Build(diamond(), "main")
		require.NoError(t, err)
		require.NoError(t, g.MarkRunning("build"))
		_, err = g.MarkTerminal("build", api.StatusSucceeded)
		require.NoError(t, err)
		_, err = g.MarkTerminal("build", api.StatusFailed)
		require.Error(t, err)
	})

	t.Run("non_terminal_status_rejected", func(t *testing.T) {
		g, err := Build(diamond(), "main")
		require.NoError(t, err)
		_, err = g.MarkTerminal("build", api.StatusRunning)
		require.Error(t, err)
	})
}

func TestSkipPending(t *testing.T) {
	g, err := Build(diamond(), "main")
	require.NoError(t, err)
	require.NoError(t, g.MarkRunning("build"))
	skipped := g.SkipPending()
	assert.Equal(t, []string{"scanA", "scanB", "publish"}, skipped)
	// Running stages are untouched.
	assert.Equal(t, api.StatusRunning, g.Status("build"))
	assert.False(t, g.Done())
}

func TestReaches(t *testing.T) {
	g, err := Build(diamond(), "main")
	require.NoError(t, err)
	assert.True(t, g.Reaches("publish", "build"))
	assert.True(t, g.Reaches("scanA", "build"))
	assert.False(t, g.Reaches("scanA", "scanB"))
	assert.False(t, g.Reaches("build", "publish"))
}
