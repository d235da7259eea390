package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veille-labs/veille/pkg/veille"
	"github.com/veille-labs/veille/pkg/veille/config"
)

func newInitCommand(cctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file and create the store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := *cctx.configPath
			if target == "" {
				target = "veille.toml"
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)

			cfg, err := config.Load(target)
			if err != nil {
				return err
			}

			p, err := veille.Open(cmd.Context(), cfg, newLogger(cfg.Logging))
			if err != nil {
				return err
			}
			defer p.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s store at %s\n", cfg.Store.Driver, cfg.Store.DSN)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing configuration file")
	return cmd
}
