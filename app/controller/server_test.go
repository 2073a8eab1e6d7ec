package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conveyor/pkg/api"
	"conveyor/pkg/executor"
	"conveyor/pkg/util/context"
)

func testServer(t *testing.T, f executor.RunFunc) *httptest.Server {
	s := New(context.Background(), Options{
		Secrets:   map[string]string{"TOKEN": "s3cret"},
		Executors: executor.NewRegistry(executor.NewCustom(f)),
	})
	srv := httptest.NewServer(s.Echo())
	t.Cleanup(srv.Close)
	return srv
}

func submit(t *testing.T, srv *httptest.Server, req SubmitRequest) (*http.Response, SubmitResponse) {
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/runs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var sr SubmitResponse
	if resp.StatusCode == http.StatusAccepted {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&sr))
	}
	resp.Body.Close()
	return resp, sr
}

func waitTerminal(t *testing.T, srv *httptest.Server, runID string) api.RunResult {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/runs/" + runID)
		require.NoError(t, err)
		var res api.RunResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		resp.Body.Close()
		if res.Verdict != api.StatusRunning {
			return res
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", runID)
	return api.RunResult{}
}

func pipeline() api.PipelineSpec {
	return api.PipelineSpec{
		Name: "remote-pipe",
		Stages: []api.StageSpec{
			{ID: "build", Kind: api.KindCustom},
			{ID: "deploy", Kind: api.KindCustom, Needs: []string{"build"}, Secrets: []string{"TOKEN"}},
		},
	}
}

func TestSubmit(t *testing.T) {
	t.Run("runs_to_completion", func(t *testing.T) {
		srv := testServer(t, func(ctx context.Context, sc executor.StageContext) (executor.Outputs, error) {
			return executor.Outputs{"stage": sc.Spec.ID}, nil
		})

		resp, sr := submit(t, srv, SubmitRequest{Spec: pipeline(), Branch: "main"})
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.NotEmpty(t, sr.RunID)

		res := waitTerminal(t, srv, sr.RunID)
		assert.Equal(t, api.StatusSucceeded, res.Verdict)
		assert.Equal(t, sr.RunID, res.RunID)
	})

	t.Run("invalid_definition_rejected", func(t *testing.T) {
		srv := testServer(t, func(ctx context.Context, sc executor.StageContext) (executor.Outputs, error) {
			return executor.Outputs{}, nil
		})

		p := pipeline()
		p.Stages[1].Needs = []string{"missing"}
		resp, _ := submit(t, srv, SubmitRequest{Spec: p})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown_policy_rejected", func(t *testing.T) {
		srv := testServer(t, func(ctx context.Context, sc executor.StageContext) (executor.Outputs, error) {
			return executor.Outputs{}, nil
		})

		for _, policy := range []string{"fail_fast", "besteffort", "never"} {
			resp, _ := submit(t, srv, SubmitRequest{Spec: pipeline(), Policy: policy})
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "policy %q", policy)
		}
	})
}

func TestRunStateNotFound(t *testing.T) {
	srv := testServer(t, func(ctx context.Context, sc executor.StageContext) (executor.Outputs, error) {
		return executor.Outputs{}, nil
	})
	resp, err := http.Get(srv.URL + "/runs/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRuns(t *testing.T) {
	srv := testServer(t, func(ctx context.Context, sc executor.StageContext) (executor.Outputs, error) {
		return executor.Outputs{}, nil
	})

	_, sr1 := submit(t, srv, SubmitRequest{Spec: pipeline()})
	_, sr2 := submit(t, srv, SubmitRequest{Spec: pipeline()})
	waitTerminal(t, srv, sr1.RunID)
	waitTerminal(t, srv, sr2.RunID)

	resp, err := http.Get(srv.URL + "/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	var summaries []RunSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	assert.Equal(t, 2, len(summaries))
}

func TestAbortRun(t *testing.T) {
	blocked := make(chan struct{})
	srv := testServer(t, func(ctx context.Context, sc executor.StageContext) (executor.Outputs, error) {
		if sc.Spec.ID == "deploy" {
			close(blocked)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return executor.Outputs{}, nil
	})

	_, sr := submit(t, srv, SubmitRequest{Spec: pipeline()})
	<-blocked

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/runs/"+sr.RunID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	res := waitTerminal(t, srv, sr.RunID)
	assert.Equal(t, api.StatusCancelled, res.Verdict)
}
