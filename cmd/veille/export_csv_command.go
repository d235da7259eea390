package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCSVCommand(cctx *commandContext) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export-csv",
		Short: "Dump every enriched document as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := cctx.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			if out == "" || out == "-" {
				_, err := p.ExportCSV(cmd.Context(), cmd.OutOrStdout())
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}

			rows, err := p.ExportCSV(cmd.Context(), f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d enriched documents to %s\n", rows, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file (defaults to stdout)")
	return cmd
}
