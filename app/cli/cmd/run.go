package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tm "github.com/buger/goterm"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"conveyor/app/cli/cmd/common"
	"conveyor/pkg/api"
	"conveyor/pkg/artifact"
	"conveyor/pkg/definition"
	"conveyor/pkg/events"
	"conveyor/pkg/executor"
	"conveyor/pkg/orchestrator"
	"conveyor/pkg/secrets"
	cvctx "conveyor/pkg/util/context"
)

// Exit codes of the run command.
const (
	ExitOK         = 0
	ExitStageFail  = 1
	ExitDefinition = 2
	ExitInternal   = 70
)

type runOpts struct {
	parallelism  int
	failFast     bool
	bestEffort   bool
	secretsFile  string
	envSecrets   []string
	branch       string
	stageTimeout time.Duration
	artifactDir  string
	args         []string
	quiet        bool
}

// NewRunCommand returns a new instance of the run command.
func NewRunCommand() *cobra.Command {
	var opts runOpts
	command := &cobra.Command{
		Use:   "run <definition-file>",
		Short: "run a pipeline to completion",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(run(args[0], opts))
		},
	}
	command.Flags().IntVarP(&opts.parallelism, "parallelism", "p", 4, "max number of concurrently running stages")
	command.Flags().BoolVar(&opts.failFast, "fail-fast", false, "cancel the whole run on the first stage failure (default)")
	command.Flags().BoolVar(&opts.bestEffort, "best-effort", false, "let independent branches continue after a failure")
	command.Flags().StringVarP(&opts.secretsFile, "secrets-file", "s", "", "file with secret values (JSON object or NAME=value lines)")
	command.Flags().StringSliceVar(&opts.envSecrets, "env-secrets", nil, "names of environment variables imported as secrets")
	command.Flags().StringVarP(&opts.branch, "branch", "b", "", "branch the run is triggered for")
	command.Flags().DurationVar(&opts.stageTimeout, "stage-timeout", 0, "default per-stage deadline, e.g. 10m")
	command.Flags().StringVar(&opts.artifactDir, "artifact-dir", "", "persist artifacts under this directory instead of in memory")
	command.Flags().StringArrayVar(&opts.args, "arg", nil, "pipeline argument as key=value, repeatable")
	command.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "no live progress rendering")

	return command
}

func run(path string, opts runOpts) int {
	ctx := cvctx.Background()

	spec, err := definition.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if api.IsDefinitionError(err) {
			return ExitDefinition
		}
		return ExitInternal
	}

	orchOpts, err := buildOptions(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitInternal
	}
	defer orchOpts.Emitter.Close()

	orch, err := orchestrator.New(spec, orchOpts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if api.IsDefinitionError(err) {
			return ExitDefinition
		}
		return ExitInternal
	}

	// An interrupt aborts the run instead of killing the process outright.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		orch.Abort()
	}()
	defer signal.Stop(sig)

	stop := make(chan struct{})
	if !opts.quiet {
		go watch(orch, stop)
	}

	res, err := orch.Run(context.Background())
	close(stop)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitInternal
	}

	common.PrintRun(os.Stdout, res, common.PrintOptions{ShowOutputs: true})
	if res.Succeeded() {
		return ExitOK
	}
	return ExitStageFail
}

func buildOptions(ctx cvctx.Context, opts runOpts) (orchestrator.Options, error) {
	policy := orchestrator.FailFast
	if opts.bestEffort {
		if opts.failFast {
			return orchestrator.Options{}, errors.New("--fail-fast and --best-effort are mutually exclusive")
		}
		policy = orchestrator.BestEffort
	}

	env := map[string]string{}
	if opts.secretsFile != "" {
		loaded, err := secrets.FromFile(opts.secretsFile)
		if err != nil {
			return orchestrator.Options{}, err
		}
		env = loaded
	}
	for name, value := range secrets.FromEnviron(opts.envSecrets, os.Environ()) {
		env[name] = value
	}

	args := make(map[string]interface{}, len(opts.args))
	for _, kv := range opts.args {
		idx := strings.Index(kv, "=")
		if idx <= 0 {
			return orchestrator.Options{}, errors.Errorf("argument %q is not key=value", kv)
		}
		args[kv[:idx]] = kv[idx+1:]
	}

	var store artifact.Store
	if opts.artifactDir != "" {
		s, err := artifact.NewFilesystemStore(opts.artifactDir)
		if err != nil {
			return orchestrator.Options{}, err
		}
		store = s
	}

	emitter, err := events.NewFromConfig(ctx, "events")
	if err != nil {
		return orchestrator.Options{}, err
	}

	return orchestrator.Options{
		Parallelism:  opts.parallelism,
		Policy:       policy,
		StageTimeout: opts.stageTimeout,
		Branch:       opts.branch,
		Args:         args,
		Secrets:      env,
		Artifacts:    store,
		Executors:    executor.Default(),
		Emitter:      emitter,
	}, nil
}

// watch renders live progress until the run finishes.
func watch(orch *orchestrator.Orchestrator, stop <-chan struct{}) {
	tm.Clear()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			tm.MoveCursor(1, 1)
			common.PrintRun(tm.Screen, orch.State(), common.PrintOptions{})
			tm.Flush()
		}
	}
}
