package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	cctx := &commandContext{configPath: &configFlag}

	rootCmd := &cobra.Command{
		Use:   "veille",
		Short: "Social post enrichment pipeline",
		Long: "veille ingests raw social posts, enriches them with normalized text,\n" +
			"tokens, language and sentiment, and exports the result to a search index.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newInitCommand(cctx))
	rootCmd.AddCommand(newIngestCommand(cctx))
	rootCmd.AddCommand(newEnrichCommand(cctx))
	rootCmd.AddCommand(newExportCommand(cctx))
	rootCmd.AddCommand(newRunCommand(cctx))
	rootCmd.AddCommand(newReprocessCommand(cctx))
	rootCmd.AddCommand(newExportCSVCommand(cctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
