package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"remanejo/internal/realloc"
	"remanejo/internal/services"
	"remanejo/internal/sheets/xlsx"
)

type runOptions struct {
	outDir     string
	fund       string
	natures    string
	jsonOut    bool
	transcript bool
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run FILE...",
		Short: "Reallocate one or more budget workbooks",
		Long: `Run the reallocation over each workbook and write the adjusted budget
next to it (or into --out) as orcamento_ajustado_<name>.xlsx.

Workbooks are processed in parallel; each run is independent.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := a.rules(cmd, opts.fund, opts.natures)
			if err != nil {
				return err
			}
			_, res, err := a.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := res.Cleanup(); err != nil {
					a.logger.Error("Backend cleanup error", "error", err)
				}
			}()

			outcomes, err := runAll(cmd.Context(), res.Service, args, rules, opts.outDir)
			if err != nil {
				return err
			}
			return printOutcomes(cmd.OutOrStdout(), outcomes, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory (default: next to each input)")
	addRuleFlags(cmd, &opts.fund, &opts.natures)
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the results as JSON")
	cmd.Flags().BoolVar(&opts.transcript, "transcript", false, "print the diagnostic transcript of each run")
	return cmd
}

// runAll executes every file and writes its output workbook. Outcomes keep
// the order of paths; the first failure cancels the remaining runs.
func runAll(ctx context.Context, svc *services.RunService, paths []string, rules realloc.Config, outDir string) ([]*services.RunOutcome, error) {
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	outcomes := make([]*services.RunOutcome, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			src, err := xlsx.Open(path)
			if err != nil {
				return err
			}
			out, err := svc.Execute(ctx, src, "", rules)
			if err != nil {
				return err
			}
			dir := outDir
			if dir == "" {
				dir = filepath.Dir(path)
			}
			dest := filepath.Join(dir, out.OutputName())
			if err := os.WriteFile(dest, out.Workbook, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", dest, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func printOutcomes(w io.Writer, outcomes []*services.RunOutcome, opts *runOptions) error {
	if opts.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	}
	for _, out := range outcomes {
		res := out.Result
		fmt.Fprintf(w, "%s -> %s\n", out.SourceName, out.OutputName())
		fmt.Fprintf(w, "  run:                %s\n", out.ID)
		fmt.Fprintf(w, "  units:              %d\n", res.Stats.Units)
		fmt.Fprintf(w, "  deficits:           %d\n", res.Stats.Deficits)
		fmt.Fprintf(w, "  internal transfers: %d\n", res.Stats.InternalTransfers)
		fmt.Fprintf(w, "  external transfers: %d\n", res.Stats.ExternalTransfers)
		fmt.Fprintf(w, "  no negative:        %t\n", res.Validation.NoNegativeBalance)
		for _, f := range res.Validation.StillNegative {
			fmt.Fprintf(w, "  still negative:     %s %s %s\n", f.UnitCode, f.NatureCode, f.Current.StringFixed(2))
		}
		if opts.transcript {
			fmt.Fprintln(w)
			fmt.Fprint(w, res.Transcript)
		}
	}
	return nil
}
