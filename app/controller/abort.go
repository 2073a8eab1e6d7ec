package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AbortRun requests cancellation of a run. Abort is asynchronous, the final
// state is available through RunState once running stages have stopped.
func (s *Server) AbortRun(c echo.Context) error {
	runID := c.Param(runIDParam)
	orch, exists := s.get(runID)
	if !exists {
		return echo.NewHTTPError(http.StatusNotFound, "no run with id "+runID)
	}
	orch.Abort()
	return c.NoContent(http.StatusAccepted)
}
