package controller

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"conveyor/pkg/api"
	"conveyor/pkg/orchestrator"
	"conveyor/pkg/util/context"
)

// SubmitRequest is the payload of POST /runs.
type SubmitRequest struct {
	Spec   api.PipelineSpec       `json:"spec"`
	Branch string                 `json:"branch,omitempty"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Policy string                 `json:"policy,omitempty"`
}

// SubmitResponse is the response of POST /runs.
type SubmitResponse struct {
	RunID string `json:"run_id"`
}

// Submit validates the submitted pipeline and starts it in the background.
func (s *Server) Submit(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())
	ctx = context.WithCorrelationID(ctx, uuid.New().String())

	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	switch orchestrator.Policy(req.Policy) {
	case "", orchestrator.FailFast, orchestrator.BestEffort:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown policy %q", req.Policy))
	}

	opts := orchestrator.Options{
		Parallelism: s.opts.Parallelism,
		Branch:      req.Branch,
		Args:        req.Args,
		Secrets:     s.opts.Secrets,
		Artifacts:   s.opts.Artifacts,
		Executors:   s.opts.Executors,
		Emitter:     s.opts.Emitter,
		Retry:       s.opts.Retry,
	}
	if req.Policy != "" {
		opts.Policy = orchestrator.Policy(req.Policy)
	}

	orch, err := orchestrator.New(req.Spec, opts)
	if err != nil {
		if api.IsDefinitionError(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	runID := uuid.New().String()
	rctx := context.WithRunID(ctx, runID)
	s.mu.Lock()
	s.runs[runID] = orch
	s.mu.Unlock()

	go func() {
		if _, err := orch.Run(rctx); err != nil {
			rctx.Logger().Errorf("run %s failed: %s", runID, err)
		}
	}()

	return c.JSON(http.StatusAccepted, SubmitResponse{RunID: runID})
}
