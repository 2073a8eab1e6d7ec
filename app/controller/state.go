package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"conveyor/pkg/api"
)

// RunSummary is one entry of the GET /runs listing.
type RunSummary struct {
	RunID   string     `json:"run_id"`
	Name    string     `json:"name"`
	Verdict api.Status `json:"verdict"`
}

// RunState returns the state of a single run, final or in flight.
func (s *Server) RunState(c echo.Context) error {
	runID := c.Param(runIDParam)
	orch, exists := s.get(runID)
	if !exists {
		return echo.NewHTTPError(http.StatusNotFound, "no run with id "+runID)
	}
	return c.JSON(http.StatusOK, orch.State())
}

// ListRuns lists all runs known to the controller.
func (s *Server) ListRuns(c echo.Context) error {
	s.mu.Lock()
	summaries := make([]RunSummary, 0, len(s.runs))
	for id, orch := range s.runs {
		res := orch.State()
		summaries = append(summaries, RunSummary{RunID: id, Name: res.Name, Verdict: res.Verdict})
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, summaries)
}
