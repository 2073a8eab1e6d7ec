package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"conveyor/pkg/api"
	"conveyor/pkg/definition"
)

// NewLintCommand returns a new instance of the lint command.
func NewLintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <definition-file>",
		Short: "validate a pipeline definition without running it",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(lint(args[0]))
		},
	}
}

func lint(path string) int {
	spec, err := definition.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if api.IsDefinitionError(err) {
			return ExitDefinition
		}
		return ExitInternal
	}
	fmt.Printf("%s: %d stages, OK\n", spec.Name, len(spec.Stages))
	return ExitOK
}
