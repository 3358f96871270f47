package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"geosnap/store"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		clearAll bool
		limit    int64
		offset   int64
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous runs and the files they produced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.setup(cmd, false)
			if err != nil {
				return err
			}
			ledger, err := store.Open(e.cfg.Ledger)
			if err != nil {
				return fmt.Errorf("failed to open history %s: %w", e.cfg.Ledger, err)
			}
			defer ledger.Close()

			out := cmd.OutOrStdout()
			if clearAll {
				if err := ledger.Clear(); err != nil {
					return fmt.Errorf("failed to clear history: %w", err)
				}
				fmt.Fprintln(out, "History cleared.")
				return nil
			}

			runs, err := ledger.ListRuns(offset, limit)
			if err != nil {
				return fmt.Errorf("failed to list history: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tMODE\tSTATUS\tPHOTOS\tINPUT\tOUTPUTS")
			for _, r := range runs {
				outputs := strings.Join(r.Outputs, ", ")
				if r.Error != "" {
					outputs = r.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04"), r.Mode, r.Status, r.Processed, r.Input, outputs)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all recorded runs and exit")
	cmd.Flags().Int64Var(&limit, "limit", 20, "Number of runs to show")
	cmd.Flags().Int64Var(&offset, "offset", 0, "Number of newest runs to skip")
	return cmd
}
