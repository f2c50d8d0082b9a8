package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/playtest/internal/baseline"
	"github.com/roach88/playtest/internal/fuzz"
	"github.com/roach88/playtest/internal/store"
)

// BaselineCompareResult is the JSON payload of baseline compare.
type BaselineCompareResult struct {
	BatchID     string                `json:"batch_id"`
	Comparisons []baseline.Comparison `json:"comparisons"`
	Regressed   bool                  `json:"regressed"`
}

// NewBaselineCommand creates the baseline command group.
func NewBaselineCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Inspect and compare stored baselines",
		Long: `Baselines are aggregate metrics keyed by
world:adventure:core_version:locale:variation. They are written by
"playtest run --save-baseline" and read by the subcommands here.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List stored baselines",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, dbPath, cmd, runBaselineList)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "show <key>",
		Short:         "Show one baseline's metrics",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, dbPath, cmd, func(ctx context.Context, f *OutputFormatter, st *store.Store) error {
				return runBaselineShow(ctx, f, st, args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "compare <batch-id>",
		Short: "Compare a stored batch against the baselines",
		Long: `Aggregate the stored runs of a batch and compare each aggregate against
its baseline. Exits 1 if any baseline regressed. Keys without a baseline
pass.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, dbPath, cmd, func(ctx context.Context, f *OutputFormatter, st *store.Store) error {
				return runBaselineCompare(ctx, f, st, args[0])
			})
		},
	})

	return cmd
}

// withStore opens the database named by dbPath, or by the config when
// dbPath is empty, and hands it to fn.
func withStore(opts *RootOptions, dbPath string, cmd *cobra.Command, fn func(context.Context, *OutputFormatter, *store.Store) error) error {
	formatter := newFormatter(opts, cmd)

	if dbPath == "" {
		cfg, err := loadConfig(opts, formatter)
		if err != nil {
			return err
		}
		dbPath = cfg.Database
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	formatter.VerboseLog("Using database %s", dbPath)
	return fn(cmd.Context(), formatter, st)
}

func runBaselineList(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	recs, err := baseline.NewManager(st).List(ctx)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to list baselines", err)
	}
	if formatter.JSON() {
		return formatter.Success(recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(formatter.Writer, "No baselines stored")
		return nil
	}
	for _, rec := range recs {
		fmt.Fprintf(formatter.Writer, "%s\t%d run(s)\t%s\n", rec.Key, rec.Runs, rec.SavedAt.Format(time.RFC3339))
	}
	return nil
}

func runBaselineShow(ctx context.Context, formatter *OutputFormatter, st *store.Store, key string) error {
	rec, ok, err := baseline.NewManager(st).Load(ctx, key)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to load baseline", err)
	}
	if !ok {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no baseline for key %q", key), nil)
	}
	if formatter.JSON() {
		return formatter.Success(rec)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Baseline %s\n", rec.Key)
	fmt.Fprintf(w, "  runs:  %d\n", rec.Runs)
	fmt.Fprintf(w, "  saved: %s\n", rec.SavedAt.Format(time.RFC3339))
	writeFamily(w, "coverage", rec.Metrics.Coverage)
	writeFamily(w, "performance", rec.Metrics.Performance)
	writeFamily(w, "oracle_rates", rec.Metrics.OracleRates)
	writeFamily(w, "behavior_rates", rec.Metrics.BehaviorRates)
	return nil
}

func runBaselineCompare(ctx context.Context, formatter *OutputFormatter, st *store.Store, batchID string) error {
	batch, err := st.LoadBatch(ctx, batchID)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no batch %q", batchID), nil)
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to load batch", err)
	}

	aggregates := fuzz.AggregateResults(batch.Results, batch.CoreVersion)
	comparisons, regressed, err := compareAggregates(ctx, baseline.NewManager(st), aggregates)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to compare baselines", err)
	}
	result := BaselineCompareResult{BatchID: batch.ID, Comparisons: comparisons, Regressed: regressed}

	if formatter.JSON() {
		if regressed {
			_ = formatter.Error(ErrCodeRegression, "baseline regression detected", result)
			return NewExitError(ExitFailure, "baseline regression detected")
		}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "Batch %s\n", batch.ID)
	writeComparisonsText(formatter.Writer, comparisons)
	if regressed {
		fmt.Fprintln(formatter.Writer, "✗ baseline regression detected")
		return NewExitError(ExitFailure, "baseline regression detected")
	}
	fmt.Fprintln(formatter.Writer, "✓ No regressions")
	return nil
}

// compareAggregates compares every aggregate against its baseline and
// reports whether any regressed.
func compareAggregates(ctx context.Context, m *baseline.Manager, aggregates []fuzz.Aggregate) ([]baseline.Comparison, bool, error) {
	out := make([]baseline.Comparison, 0, len(aggregates))
	regressed := false
	for _, agg := range aggregates {
		cmp, err := m.Compare(ctx, agg.Key, agg.Metrics)
		if err != nil {
			return nil, false, fmt.Errorf("compare %s: %w", agg.Key, err)
		}
		if cmp.Verdict == baseline.VerdictFail {
			regressed = true
		}
		out = append(out, cmp)
	}
	return out, regressed, nil
}

func writeComparisonsText(w io.Writer, comparisons []baseline.Comparison) {
	for _, cmp := range comparisons {
		switch {
		case cmp.NoBaseline:
			fmt.Fprintf(w, "  baseline %s: no baseline\n", cmp.Key)
		case cmp.Verdict == baseline.VerdictFail:
			fmt.Fprintf(w, "  baseline %s: FAIL\n", cmp.Key)
			for _, d := range cmp.Deltas {
				if d.Exceeded {
					fmt.Fprintf(w, "    %s: %.4f -> %.4f (tolerance %.4f)\n", d.Field, d.Baseline, d.Current, d.Tolerance)
				}
			}
		default:
			fmt.Fprintf(w, "  baseline %s: pass\n", cmp.Key)
		}
	}
}

func writeFamily(w io.Writer, name string, values map[string]float64) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s:\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "    %-24s %.4f\n", k, values[k])
	}
}
