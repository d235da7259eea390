package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newExportCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export enriched documents to the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := cctx.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Export(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Indexed %d documents (%d rejected) in %d batches over %s\n",
				res.Indexed, res.Failed, res.Batches, res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
}
