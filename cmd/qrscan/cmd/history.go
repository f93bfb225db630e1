package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var errHistoryDisabled = errors.New("history is disabled (set history.enabled)")

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the scan history",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded scans, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			if store == nil {
				return errHistoryDisabled
			}
			defer closeHistory(store)

			entries, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}

			format := a.cfg.Output.Format
			if cmd.Flags().Changed("format") {
				format, _ = cmd.Flags().GetString("format")
			}
			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No scans recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "TIME\tTYPE\tDATA")
			for _, e := range entries {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Timestamp.Local().Format(time.DateTime), e.Type, e.Data)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringP("format", "f", "", "output format (text, json)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all recorded scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			if store == nil {
				return errHistoryDisabled
			}
			defer closeHistory(store)

			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}

	cmd.AddCommand(list, clearCmd)
	return cmd
}
