package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docmapper/internal/config"
	"docmapper/internal/logging"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			logging.Info("configuration check", logging.Fields{"event": "config_only"})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration check: ok")
			fmt.Fprintln(out, config.FormatRedacted(cfg))
			return nil
		},
	}
}
