package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"oxygencrate/internal/config"
	"oxygencrate/internal/store"
)

func openLedger(cfg *config.Config) (*store.Store, error) {
	path := cfg.StoragePath()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no import ledger at %s", path)
	}
	return store.OpenWithTimeout(path, cfg.BusyTimeout())
}

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit   int
		outcome string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent imports from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			var imports []store.Import
			if outcome != "" {
				imports, err = st.ByOutcome(cmd.Context(), outcome, limit)
			} else {
				imports, err = st.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), imports)
			}
			printHistory(cmd.OutOrStdout(), imports)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries")
	cmd.Flags().StringVar(&outcome, "outcome", "", "only show imported, failed or canceled requests")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printHistory(w io.Writer, imports []store.Import) {
	if len(imports) == 0 {
		fmt.Fprintln(w, "No imports recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOKEN\tOUTCOME\tSIZE\tDIGEST\tPATH")
	for _, imp := range imports {
		digest := "-"
		if len(imp.Digest) >= 6 {
			digest = hex.EncodeToString(imp.Digest[:6])
		}
		target := imp.Path
		if target == "" {
			target = imp.Error
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s\n",
			imp.CreatedAt.Local().Format(time.DateTime),
			imp.RequestToken,
			imp.Outcome,
			imp.Size,
			digest,
			target,
		)
	}
	tw.Flush()
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the import ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Ledger:    %s\n", cfg.StoragePath())
			fmt.Fprintf(w, "Requests:  %d\n", stats.Total)
			outcomes := make([]string, 0, len(stats.ByOutcome))
			for o := range stats.ByOutcome {
				outcomes = append(outcomes, o)
			}
			sort.Strings(outcomes)
			for _, o := range outcomes {
				fmt.Fprintf(w, "  %-9s %d\n", o+":", stats.ByOutcome[o])
			}
			fmt.Fprintf(w, "Imported:  %d bytes\n", stats.ImportedBytes)
			if !stats.Last.IsZero() {
				fmt.Fprintf(w, "Last:      %s\n", stats.Last.Local().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
