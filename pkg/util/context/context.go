package context

import (
	gocontext "context"

	"github.com/sirupsen/logrus"
)

// Context extends the regular golang context.Context with access to run
// scoped identifiers and a preconfigured logger.
type Context interface {
	gocontext.Context
	Logger() *logrus.Entry
	RunID() string
	StageID() string
	CorrelationID() string
}

// Background returns a non-nil, empty Context.
func Background() Context {
	return ctx{
		Context: gocontext.Background(),
	}
}

// FromContext returns a new Context from the given go context.
func FromContext(c gocontext.Context) Context {
	if cc, ok := c.(Context); ok {
		return cc
	}
	return ctx{
		Context: c,
	}
}

// WithRunID returns a copy of the context with a run id.
func WithRunID(c Context, runID string) Context {
	return ctx{
		c,
		runID,
		c.StageID(),
		c.CorrelationID(),
	}
}

// WithStageID returns a copy of the context with a stage id.
func WithStageID(c Context, stageID string) Context {
	return ctx{
		c,
		c.RunID(),
		stageID,
		c.CorrelationID(),
	}
}

// WithCorrelationID returns a copy of the context with a correlation id.
func WithCorrelationID(c Context, correlationID string) Context {
	return ctx{
		c,
		c.RunID(),
		c.StageID(),
		correlationID,
	}
}

// Wrap returns a copy of the context backed by the given go context,
// preserving identifiers. Used to carry cancellation and deadlines.
func Wrap(c Context, gc gocontext.Context) Context {
	return ctx{
		gc,
		c.RunID(),
		c.StageID(),
		c.CorrelationID(),
	}
}

type ctx struct {
	gocontext.Context
	runID         string
	stageID       string
	correlationID string
}

func (c ctx) Logger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	e := logrus.NewEntry(l)
	if c.RunID() != "" {
		e = e.WithField("run_id", c.RunID())
	}
	if c.StageID() != "" {
		e = e.WithField("stage_id", c.StageID())
	}
	return e
}

func (c ctx) RunID() string {
	return c.runID
}

func (c ctx) StageID() string {
	return c.stageID
}

func (c ctx) CorrelationID() string {
	return c.correlationID
}
