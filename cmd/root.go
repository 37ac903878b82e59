// Package cmd assembles the examforge command-line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/examforge/examforge/internal/conf"
)

// RootCommand creates the root command and registers subcommands.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "examforge",
		Short: "Data-access backend for the exam-authoring platform",
	}

	rootCmd.AddCommand(
		validateCommand(settings),
		archiveCommand(settings),
	)
	return rootCmd
}
