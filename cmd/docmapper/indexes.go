package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the indexes declared by every domain schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := connect()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.syncIndexes(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, model := range rt.registry.Models() {
				fmt.Fprintf(out, "%s: %d index(es)\n", model.CollectionName(), len(model.Schema().Indexes()))
			}
			return nil
		},
	}
}
