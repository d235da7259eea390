package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newReprocessCommand(cctx *commandContext) *cobra.Command {
	var urls []string
	var all bool

	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Flag documents so the next enrich run redoes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(urls) > 0 {
				return errors.New("--all and --url are mutually exclusive")
			}
			if !all && len(urls) == 0 {
				return errors.New("either --all or at least one --url is required")
			}

			p, _, err := cctx.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			var n int64
			if all {
				n, err = p.ReprocessAll(cmd.Context())
			} else {
				n, err = p.Reprocess(cmd.Context(), urls)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Flagged %d documents for reprocessing\n", n)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&urls, "url", nil, "Document URL to flag (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "Flag every stored document")
	return cmd
}
