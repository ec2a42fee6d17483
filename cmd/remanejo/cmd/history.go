package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"remanejo/internal/services"
	"remanejo/internal/storage"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.HistoryEnabled() {
				return fmt.Errorf("run history is disabled: SQLITE_DB_PATH is empty")
			}
			_, res, err := a.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Cleanup()

			runs, err := res.Service.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a recorded run with its deficits and transfers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.HistoryEnabled() {
				return fmt.Errorf("run history is disabled: SQLITE_DB_PATH is empty")
			}
			_, res, err := a.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Cleanup()

			run, err := res.Service.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func printRuns(w io.Writer, runs []storage.RunRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSOURCE\tUNITS\tDEFICITS\tINTERNAL\tEXTERNAL\tNO NEGATIVE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%t\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.SourceName,
			r.Stats.Units, r.Stats.Deficits, r.Stats.InternalTransfers, r.Stats.ExternalTransfers,
			r.NoNegativeBalance)
	}
	tw.Flush()
}

func printRun(w io.Writer, run *services.StoredRun) {
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  source:   %s\n", run.SourceName)
	fmt.Fprintf(w, "  created:  %s\n", run.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  checksum: %s\n", run.Checksum)
	fmt.Fprintf(w, "  units %d, deficits %d, internal %d, external %d, no negative %t\n",
		run.Stats.Units, run.Stats.Deficits, run.Stats.InternalTransfers, run.Stats.ExternalTransfers,
		run.NoNegativeBalance)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if len(run.Deficits) > 0 {
		fmt.Fprintln(w, "\nDeficits")
		fmt.Fprintln(tw, "UNIT\tFUND\tNATURE\tNAME\tAMOUNT\t")
		for _, d := range run.Deficits {
			note := ""
			if d.Prohibited {
				note = "prohibited"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", d.UnitCode, d.Fund, d.NatureCode, d.NatureName, d.Amount.StringFixed(2), note)
		}
		tw.Flush()
	}
	if len(run.Transfers) > 0 {
		fmt.Fprintln(w, "\nTransfers")
		fmt.Fprintln(tw, "KIND\tFUND\tFROM\tTO\tAMOUNT")
		for _, t := range run.Transfers {
			fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%s/%s\t%s\n",
				t.Kind, t.Fund, t.SourceUnitCode, t.SourceNatureCode, t.DestUnitCode, t.DestNatureCode, t.Amount.StringFixed(2))
		}
		tw.Flush()
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
