package controller

import (
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/neko-neko/echo-logrus/v2/log"

	"conveyor/pkg/artifact"
	"conveyor/pkg/events"
	"conveyor/pkg/executor"
	"conveyor/pkg/orchestrator"
	"conveyor/pkg/util/context"
)

const runIDParam = "id"

// Options configures the controller server. Secret values are held server
// side, clients never send them over the wire.
type Options struct {
	Parallelism int
	Secrets     map[string]string
	Artifacts   artifact.Store
	Executors   executor.Registry
	Emitter     events.Emitter
	Retry       executor.RetryPolicy
}

// Server exposes pipeline runs over HTTP. Runs are kept in memory for the
// lifetime of the process.
type Server struct {
	ctx  context.Context
	opts Options

	mu   sync.Mutex
	runs map[string]*orchestrator.Orchestrator
}

// New returns a new controller server.
func New(ctx context.Context, opts Options) *Server {
	return &Server{
		ctx:  ctx,
		opts: opts,
		runs: make(map[string]*orchestrator.Orchestrator),
	}
}

// Echo builds the echo instance with all routes registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	l := log.MyLogger{Logger: s.ctx.Logger().Logger}
	e.Logger = &l
	e.HideBanner = true
	e.HidePort = true

	e.POST("/runs", s.Submit)
	e.GET("/runs", s.ListRuns)
	e.GET("/runs/:"+runIDParam, s.RunState)
	e.DELETE("/runs/:"+runIDParam, s.AbortRun)
	return e
}

// Start runs the HTTP server on the given address until it fails.
func (s *Server) Start(addr string) error {
	e := s.Echo()
	e.Logger.Infof("http server started on %s", addr)
	return e.Start(addr)
}

func (s *Server) get(runID string) (*orchestrator.Orchestrator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, exists := s.runs[runID]
	return o, exists
}
