package executor

import (
	"conveyor/pkg/api"
	"conveyor/pkg/util/context"

	"github.com/pkg/errors"
)

// RunFunc is the function backing a custom stage.
type RunFunc func(ctx context.Context, sc StageContext) (Outputs, error)

// NewCustom returns an executor for custom stages backed by the given
// function. This is the extension point for embedders, and the test seam.
func NewCustom(f RunFunc) Executor {
	return customExecutor{f: f}
}

type customExecutor struct {
	f RunFunc
}

func (customExecutor) Kind() api.Kind {
	return api.KindCustom
}

func (e customExecutor) Validate(spec api.StageSpec) error {
	if e.f == nil {
		return ValidationError{StageID: spec.ID, Reason: "no function registered for custom stages"}
	}
	return nil
}

func (e customExecutor) Run(ctx context.Context, sc StageContext) (Outputs, error) {
	if e.f == nil {
		return nil, errors.New("no function registered for custom stages")
	}
	return e.f(ctx, sc)
}
