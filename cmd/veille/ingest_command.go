package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCommand(cctx *commandContext) *cobra.Command {
	var feeds []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load raw documents from JSONL feed files into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(feeds) == 0 {
				return errors.New("at least one --feed file is required")
			}

			p, logger, err := cctx.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			posts, err := loadFeeds(feeds, logger)
			if err != nil {
				return err
			}

			res, err := p.Ingest(cmd.Context(), posts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents (%d new, %d updated)\n",
				res.Total(), res.Inserted, res.Updated)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&feeds, "feed", nil, "JSONL feed file (repeatable)")
	return cmd
}
