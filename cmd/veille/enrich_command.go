package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newEnrichCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Enrich every pending document in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := cctx.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Enrich(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Run %s: %d processed, %d enriched, %d failed, %d already done in %s\n",
				res.RunID, res.Processed, res.Enriched, res.Failed, res.Skipped,
				res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
}
