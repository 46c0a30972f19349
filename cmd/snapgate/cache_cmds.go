package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/snapgate/cache"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print entry counts and sizes for every namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(ctx) }()

			stats, err := a.cache.Stats(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}

func newClearCmd(root *rootOptions) *cobra.Command {
	var (
		namespace string
		subject   string
		scope     string
		asOf      string
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cache entries matching a filter",
		Long:  "Delete cache entries in one namespace. Without filters the whole namespace is cleared.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			day, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, root)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(ctx) }()

			target := a.cache
			if namespace != "" {
				if target, err = a.cache.WithScenario(namespace); err != nil {
					return err
				}
			}
			n, err := target.Clear(ctx, cache.Filter{SubjectID: subject, SubScope: scope, AsOf: day})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d entries from %s\n", n, target.Namespace())
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace or scenario to clear (default cache.namespace)")
	cmd.Flags().StringVar(&subject, "subject", "", "only entries for this subject")
	cmd.Flags().StringVar(&scope, "scope", "", "only entries with this sub-scope")
	cmd.Flags().StringVar(&asOf, "as-of", "", "only entries for this date (YYYY-MM-DD)")
	return cmd
}

func newFreezeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "freeze SCENARIO",
		Short: "Copy the live namespace into a named scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(ctx) }()

			n, err := a.cache.Freeze(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "froze %d entries from %s into %s\n", n, a.cache.Namespace(), args[0])
			return nil
		},
	}
}
