package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"conveyor/app/controller"
	"conveyor/pkg/artifact"
	"conveyor/pkg/events"
	"conveyor/pkg/secrets"
	cvctx "conveyor/pkg/util/context"
)

type serveOpts struct {
	addr        string
	parallelism int
	secretsFile string
	envSecrets  []string
	artifactDir string
}

// NewServeCommand returns a new instance of the serve command.
func NewServeCommand() *cobra.Command {
	var opts serveOpts
	command := &cobra.Command{
		Use:   "serve",
		Short: "start the controller HTTP API",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(serve(opts))
		},
	}
	command.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	command.Flags().IntVarP(&opts.parallelism, "parallelism", "p", 4, "max number of concurrently running stages per run")
	command.Flags().StringVarP(&opts.secretsFile, "secrets-file", "s", "", "file with secret values (JSON object or NAME=value lines)")
	command.Flags().StringSliceVar(&opts.envSecrets, "env-secrets", nil, "names of environment variables imported as secrets")
	command.Flags().StringVar(&opts.artifactDir, "artifact-dir", "", "persist artifacts under this directory instead of in memory")

	return command
}

func serve(opts serveOpts) int {
	ctx := cvctx.Background()

	env := map[string]string{}
	if opts.secretsFile != "" {
		loaded, err := secrets.FromFile(opts.secretsFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return ExitInternal
		}
		env = loaded
	}
	for name, value := range secrets.FromEnviron(opts.envSecrets, os.Environ()) {
		env[name] = value
	}

	var store artifact.Store
	if opts.artifactDir != "" {
		s, err := artifact.NewFilesystemStore(opts.artifactDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return ExitInternal
		}
		store = s
	}

	emitter, err := events.NewFromConfig(ctx, "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitInternal
	}
	defer emitter.Close()

	srv := controller.New(ctx, controller.Options{
		Parallelism: opts.parallelism,
		Secrets:     env,
		Artifacts:   store,
		Emitter:     emitter,
	})
	if err := srv.Start(opts.addr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitInternal
	}
	return ExitOK
}
