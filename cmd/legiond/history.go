package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"legioncraft.ai/internal/persistence/indexdb"
)

type historyFlags struct {
	limit   int
	asJSON  bool
	details bool
}

func (a *app) historyCmd() *cobra.Command {
	f := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent legions and outcome counts from the history index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.history(cmd, f)
		},
	}
	cmd.Flags().IntVar(&f.limit, "limit", 20, "legions to list")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&f.details, "transitions", false, "list each legion's state transitions")
	return cmd
}

func (a *app) history(cmd *cobra.Command, f *historyFlags) error {
	if _, err := os.Stat(a.indexPath()); err != nil {
		return fmt.Errorf("no history index at %s: %w", a.indexPath(), err)
	}
	idx, err := indexdb.OpenSQLite(a.indexPath())
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx := cmd.Context()
	rows, err := idx.RecentLegions(ctx, f.limit)
	if err != nil {
		return err
	}
	outcomes, err := idx.OutcomeCounts(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Legions  []indexdb.LegionRow `json:"legions"`
			Outcomes indexdb.Outcomes    `json:"outcomes"`
		}{rows, outcomes})
	}
	writeHistory(out, rows, outcomes, f.details, time.Now())
	return nil
}

func writeHistory(out io.Writer, rows []indexdb.LegionRow, o indexdb.Outcomes, details bool, now time.Time) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTARGET\tSIZE\tCREATED\tOUTCOME\tKILLS\tDEATHS")
	for _, r := range rows {
		outcome := "active"
		if !r.Active() {
			outcome = r.RetireReason
		}
		fmt.Fprintf(tw, "%d\t%s\t%d/%d\t%s\t%s\t%d\t%d\n",
			r.ID, r.Target, r.Spawned, r.Requested, humanize.RelTime(r.CreatedAt, now, "ago", "from now"), outcome, r.Kills, r.Deaths)
		if details {
			for _, t := range r.Transitions {
				fmt.Fprintf(tw, "\t  tick %d\t%s -> %s\t(%d members)\t\t\t\n", t.Tick, t.From, t.To, t.Size)
			}
		}
	}
	_ = tw.Flush()

	fmt.Fprintf(out, "\nactive: %d\n", o.Active)
	writeCounts(out, "retired by reason", o.Retired)
	writeCounts(out, "warnings by outcome", o.Warnings)
	writeCounts(out, "spawn failures", o.Failures)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
