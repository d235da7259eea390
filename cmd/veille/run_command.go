package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/veille-labs/veille/pkg/veille"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	var feeds []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: ingest (optional), enrich, export",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, logger, err := cctx.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			var posts []veille.RawPost
			if len(feeds) > 0 {
				posts, err = loadFeeds(feeds, logger)
				if err != nil {
					return err
				}
			}

			sum, err := p.Run(cmd.Context(), posts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(feeds) > 0 {
				fmt.Fprintf(out, "Ingested %d documents (%d new, %d updated)\n",
					sum.Ingested.Total(), sum.Ingested.Inserted, sum.Ingested.Updated)
			}
			fmt.Fprintf(out, "Enriched %d of %d pending documents (%d failed) in %s\n",
				sum.Enrich.Enriched, sum.Enrich.Processed, sum.Enrich.Failed,
				sum.Enrich.Elapsed.Round(time.Millisecond))
			fmt.Fprintf(out, "Indexed %d documents (%d rejected) in %d batches over %s\n",
				sum.Export.Indexed, sum.Export.Failed, sum.Export.Batches,
				sum.Export.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&feeds, "feed", nil, "JSONL feed file to ingest first (repeatable)")
	return cmd
}
