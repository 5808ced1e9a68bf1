package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/harliandi/go-convert/internal/history"
	"github.com/harliandi/go-convert/internal/storage"
	"github.com/spf13/cobra"
)

type historyOptions struct {
	limit  int
	asJSON bool
}

func newHistoryCmd(a *app) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent conversions and storage usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := history.Open(a.opts.historyFile, a.logger)
			if err != nil {
				return err
			}

			var usage history.UsageFunc
			if _, err := os.Stat(a.opts.uploadDir); err == nil {
				store, err := storage.New(a.opts.uploadDir)
				if err != nil {
					return err
				}
				usage = store.Usage
			}

			stats, err := log.Stats(usage)
			if err != nil {
				return err
			}
			entries, err := log.Load()
			if err != nil {
				return err
			}
			if opts.limit > 0 && len(entries) > opts.limit {
				entries = entries[:opts.limit]
			}

			out := cmd.OutOrStdout()
			if opts.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Stats   history.Stats   `json:"stats"`
					Entries []history.Entry `json:"entries"`
				}{stats, entries})
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "  Total conversions: %d\n", stats.TotalConversions)
			fmt.Fprintf(out, "  Stored files:      %d\n", stats.FileCount)
			fmt.Fprintf(out, "  Storage used:      %s\n", history.FormatMB(stats.StorageBytes))
			fmt.Fprintln(out)
			for _, e := range entries {
				fmt.Fprintf(out, "  %s  %-20s %s -> %s\n", e.Timestamp, e.Action, e.OriginalName, e.Filename)
			}
			if len(entries) > 0 {
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "number of entries to show (0 for all)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")
	return cmd
}
