package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docmapper/internal/odm"
)

func newResolveCmd() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "resolve NAME",
		Short: "Print the collection a model name maps to",
		Long: `Resolve a logical model name to its physical collection name. --collection
simulates a schema that pins the collection explicitly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []odm.SchemaOption
			if collection != "" {
				opts = append(opts, odm.WithCollection(collection))
			}
			fmt.Fprintln(cmd.OutOrStdout(), odm.ResolveCollectionName(args[0], odm.NewSchema(nil, opts...)))
			return nil
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "explicit collection name from the schema options")
	return cmd
}
