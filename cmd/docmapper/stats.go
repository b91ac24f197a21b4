package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"docmapper/internal/store"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [MODEL]",
		Short: "Print document counts per collection, or for one model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := connect()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
			defer cancel()

			provider := store.NewStatsProvider(rt.counters()...)
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				count, err := provider.Count(ctx, args[0])
				if err != nil {
					return fmt.Errorf("collect stats: %w", err)
				}
				fmt.Fprintln(out, count)
				return nil
			}

			counts, err := provider.Counts(ctx)
			if err != nil {
				return fmt.Errorf("collect stats: %w", err)
			}

			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				fmt.Fprintf(out, "%s: %d\n", name, counts[name])
			}
			return nil
		},
	}
}
