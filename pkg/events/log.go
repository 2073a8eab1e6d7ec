package events

import (
	"conveyor/pkg/util/context"
)

// LogType is the emitter type writing events to the structured log.
const LogType Type = "log"

func init() {
	f := func(ctx context.Context, _ interface{}) (Emitter, error) {
		return NewLogEmitter(), nil
	}
	register(LogType, f, nil)
}

// NewLogEmitter returns an Emitter writing every event to the context logger.
func NewLogEmitter() Emitter {
	return logEmitter{}
}

type logEmitter struct{}

func (logEmitter) Emit(ctx context.Context, evt Event) error {
	e := ctx.Logger().WithField("event", string(evt.Type))
	if evt.StageID != "" {
		e = e.WithField("stage_id", evt.StageID)
	}
	if evt.Status != "" {
		e = e.WithField("status", string(evt.Status))
	}
	if evt.Message != "" {
		e = e.WithField("detail", evt.Message)
	}
	e.Info(evt.String())
	return nil
}

func (logEmitter) Close() error {
	return nil
}
