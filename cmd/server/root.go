package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command of the bookshelf CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bookshelf",
		Short:        "Bookshelf - authenticated book catalogue API",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML config file")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHashPasswordCmd())

	return cmd
}
