package cmd

import (
	"github.com/spf13/cobra"

	"conveyor/pkg/util/config"
)

// NewRootCommand returns a new instance of the conveyor command.
func NewRootCommand() *cobra.Command {
	var configFile string
	rootCmd := &cobra.Command{
		Use:   "conveyor",
		Short: "conveyor runs build/scan/publish pipelines described as a graph of stages",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				config.SetConfigFile(configFile)
			}
			return config.ReadInConfig()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to the configuration file")

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewLintCommand())
	rootCmd.AddCommand(NewServeCommand())
	return rootCmd
}
