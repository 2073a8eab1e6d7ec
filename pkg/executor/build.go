package executor

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"

	"conveyor/pkg/api"
	"conveyor/pkg/util/context"
	"conveyor/pkg/util/maps"

	"github.com/pkg/errors"
)

// BuildSpec is the kind specific payload of a build stage: the external
// toolchain command to run and the files to capture as artifacts.
type BuildSpec struct {
	Command   string            `mapstructure:"command"`
	Args      []string          `mapstructure:"args"`
	Dir       string            `mapstructure:"dir"`
	Env       map[string]string `mapstructure:"env"`
	Artifacts map[string]string `mapstructure:"artifacts"` // artifact name -> produced file path
}

// NewBuild returns the executor for build stages. The toolchain is a
// collaborator: the executor spawns it, captures declared outputs into the
// artifact store and reports the outcome.
func NewBuild() Executor {
	return buildExecutor{}
}

type buildExecutor struct{}

func (buildExecutor) Kind() api.Kind {
	return api.KindBuild
}

func (buildExecutor) Validate(spec api.StageSpec) error {
	var s BuildSpec
	if err := maps.Decode(spec.Spec, &s); err != nil {
		return ValidationError{StageID: spec.ID, Reason: err.Error()}
	}
	if s.Command == "" {
		return ValidationError{StageID: spec.ID, Reason: "build command is required"}
	}
	return nil
}

func (buildExecutor) Run(ctx context.Context, sc StageContext) (Outputs, error) {
	var s BuildSpec
	if err := maps.Decode(sc.Spec.Spec, &s); err != nil {
		return nil, ValidationError{StageID: sc.Spec.ID, Reason: err.Error()}
	}

	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Dir = s.Dir
	// The tool sees only the declared env and the stage's secrets, never the
	// orchestrator's own environment.
	env := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = append(env, sc.Secrets.AsEnv()...)

	var out bytes.Buffer
	w := sc.Secrets.RedactingWriter(&out)
	cmd.Stdout = w
	cmd.Stderr = w

	ctx.Logger().Infof("running build command %s", s.Command)
	runErr := cmd.Run()
	if out.Len() > 0 {
		ctx.Logger().Debugf("build output:\n%s", out.String())
	}
	if ctx.Err() != nil {
		// Deadline or cancellation, classified by the orchestrator.
		return nil, ctx.Err()
	}
	if runErr != nil {
		return nil, ExecutionError{
			Message: errors.Wrapf(runErr, "build command %s failed", s.Command).Error(),
		}
	}

	outputs := Outputs{}
	var names []interface{}
	for name, path := range s.Artifacts {
		if s.Dir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(s.Dir, path)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, ExecutionError{
				Message: errors.Wrapf(err, "build did not produce declared artifact %s", name).Error(),
			}
		}
		a, err := sc.Artifacts.Put(ctx, name, f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "cannot store artifact %s", name)
		}
		outputs[name] = a.Checksum
		names = append(names, name)
	}
	outputs["artifacts"] = names
	return outputs, nil
}
