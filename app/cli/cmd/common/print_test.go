package common

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"conveyor/pkg/api"
)

func TestPrintRun(t *testing.T) {
	start := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	stageEnd := start.Add(42 * time.Second)

	res := api.RunResult{
		RunID:     "2f1c9e7a",
		Name:      "service-pipeline",
		Verdict:   api.StatusFailed,
		StartedAt: &start,
		EndedAt:   &end,
		Stages: []api.StageState{
			{ID: "build", Status: api.StatusSucceeded, StartedAt: &start, EndedAt: &stageEnd, Outputs: map[string]interface{}{"checksum": "abc123"}},
			{ID: "scan", Status: api.StatusFailed, Attempts: 3, StartedAt: &stageEnd, EndedAt: &end, Error: &api.StageError{Kind: "ExecutionError", Message: "scan reported verdict fail"}},
			{ID: "publish", Status: api.StatusSkipped},
		},
	}

	var buf bytes.Buffer
	PrintRun(&buf, res, PrintOptions{ShowOutputs: true})
	out := buf.String()

	assert.Contains(t, out, "service-pipeline")
	assert.Contains(t, out, "2f1c9e7a")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "build")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "ExecutionError: scan reported verdict fail")
	assert.Contains(t, out, "(attempts: 3)")
	assert.Contains(t, out, "3/3")
}

func TestDuration(t *testing.T) {
	start := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	seconds := start.Add(42 * time.Second)
	assert.Equal(t, "42s", duration(&start, &seconds))

	minutes := start.Add(2*time.Minute + 5*time.Second)
	assert.Equal(t, "2m 5s", duration(&start, &minutes))

	hours := start.Add(3*time.Hour + 4*time.Minute + 5*time.Second)
	assert.Equal(t, "3h 4m 5s", duration(&start, &hours))

	assert.Equal(t, "", duration(nil, &seconds))
}

func TestProgression(t *testing.T) {
	terminal := []api.StageState{
		{Status: api.StatusSucceeded},
		{Status: api.StatusSkipped},
	}
	assert.Equal(t, "2/2", progression(terminal))

	inflight := []api.StageState{
		{Status: api.StatusSucceeded},
		{Status: api.StatusRunning},
		{Status: api.StatusPending},
		{Status: api.StatusPending},
	}
	assert.Contains(t, progression(inflight), "1/4")

	assert.Equal(t, "", progression(nil))
}
