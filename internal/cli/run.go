package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/playtest/internal/baseline"
	"github.com/roach88/playtest/internal/config"
	"github.com/roach88/playtest/internal/fuzz"
	"github.com/roach88/playtest/internal/matrix"
	"github.com/roach88/playtest/internal/metrics"
	"github.com/roach88/playtest/internal/store"
)

// RunFlags holds the run command flags. Set flags override the config.
type RunFlags struct {
	Database        string
	Modes           []string
	Shards          int
	MaxConcurrent   int
	Artifacts       bool
	ArtifactDir     string
	Resume          bool
	Strict          bool
	BatchID         string
	CoreVersion     string
	SaveBaseline    bool
	CompareBaseline bool
	MetricsFile     string
}

// RunReport is the JSON payload of the run command.
type RunReport struct {
	BatchID     string                `json:"batch_id"`
	CoreVersion string                `json:"core_version"`
	Summary     fuzz.Summary          `json:"summary"`
	Gates       fuzz.GateResult       `json:"gates"`
	Baselines   []baseline.Comparison `json:"baselines,omitempty"`
	Saved       []string              `json:"saved_baselines,omitempty"`
	Report      string                `json:"report,omitempty"`
	Cancelled   bool                  `json:"cancelled,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &RunFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a playtest batch",
		Long: `Expand the matrix, run every scenario under every configured bot mode,
persist results to SQLite and evaluate the batch gates.

Exit codes:
  0  batch passed its gates and no baseline regressed
  1  gates failed or a baseline regressed
  2  configuration, storage or runner error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(rootOpts, flags, cmd)
		},
	}

	cmd.Flags().StringVar(&flags.Database, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().StringSliceVar(&flags.Modes, "modes", nil, "bot modes to run (overrides config)")
	cmd.Flags().IntVar(&flags.Shards, "shards", 0, "number of scenario shards (overrides config)")
	cmd.Flags().IntVar(&flags.MaxConcurrent, "max-concurrent", 0, "maximum shards running at once (overrides config)")
	cmd.Flags().BoolVar(&flags.Artifacts, "artifacts", false, "write per-run and batch reports")
	cmd.Flags().StringVar(&flags.ArtifactDir, "artifact-dir", "", "artifact output directory (overrides config)")
	cmd.Flags().BoolVar(&flags.Resume, "resume", false, "resume runs from their last checkpoint")
	cmd.Flags().BoolVar(&flags.Strict, "strict", false, "fail the batch on persistence errors")
	cmd.Flags().StringVar(&flags.BatchID, "batch-id", "", "pin the batch id (required to resume a batch)")
	cmd.Flags().StringVar(&flags.CoreVersion, "core-version", "", "core version recorded on the batch (overrides config)")
	cmd.Flags().BoolVar(&flags.SaveBaseline, "save-baseline", false, "store this batch's metrics as the new baselines")
	cmd.Flags().BoolVar(&flags.CompareBaseline, "compare-baseline", false, "compare this batch against stored baselines")
	cmd.Flags().StringVar(&flags.MetricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")

	return cmd
}

// apply overlays set flags onto cfg.
func (fl *RunFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if fl.Database != "" {
		cfg.Database = fl.Database
	}
	if changed("modes") {
		cfg.Run.Modes = fl.Modes
	}
	if changed("shards") {
		cfg.Run.Shards = fl.Shards
	}
	if changed("max-concurrent") {
		cfg.Run.MaxConcurrent = fl.MaxConcurrent
	}
	if changed("artifacts") {
		cfg.Run.Artifacts = fl.Artifacts
	}
	if fl.ArtifactDir != "" {
		cfg.Run.ArtifactDir = fl.ArtifactDir
	}
	if changed("resume") {
		cfg.Run.Resume = fl.Resume
	}
	if changed("strict") {
		cfg.Run.Strict = fl.Strict
	}
	if fl.CoreVersion != "" {
		cfg.CoreVersion = fl.CoreVersion
	}
}

func runBatch(opts *RootOptions, flags *RunFlags, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts, formatter)
	if err != nil {
		return err
	}
	flags.apply(cmd, &cfg)

	logger, closer, err := newLogger(opts, cfg, cmd.ErrOrStderr())
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to set up logging", err)
	}
	defer closer.Close()

	scenarios, err := matrix.Generate(cfg.MatrixConfig())
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeMatrix, "invalid matrix", err)
	}
	runOpts, err := cfg.Options()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeRun, "invalid run options", err)
	}
	runOpts.BatchID = flags.BatchID

	st, err := store.Open(cfg.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pinResumedEpoch(ctx, st, &runOpts, formatter); err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	engine := newEngine(cfg)
	runner, err := fuzz.NewRunner(engine, runOpts,
		fuzz.WithStore(st),
		fuzz.WithLogger(logger),
		fuzz.WithRecorder(recorder))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeRun, "invalid run options", err)
	}

	formatter.VerboseLog("Running %d scenario(s) x %d mode(s)", len(scenarios), len(runner.Options().Modes))
	batch, err := runner.Run(ctx, scenarios)
	if batch == nil {
		return formatter.fail(ExitCommandError, ErrCodeRun, "batch did not start", err)
	}
	if err != nil {
		code := ErrCodeRun
		if fuzz.IsPersistError(err) {
			code = ErrCodeStore
		}
		return formatter.fail(ExitCommandError, code, "batch aborted", err)
	}

	// Reporting and baseline writes still happen after an interrupt.
	cancelled := ctx.Err() != nil
	ctx = context.WithoutCancel(ctx)

	result := RunReport{
		BatchID:     batch.ID,
		CoreVersion: batch.CoreVersion,
		Summary:     batch.Summary,
		Gates:       cfg.Gates.Evaluate(batch.Summary),
		Cancelled:   cancelled,
	}

	// Checkpoints only serve an interrupted batch.
	if !result.Cancelled {
		n, err := st.DeleteCheckpoints(ctx, batch.ID)
		if err != nil {
			logger.Warn("clear checkpoints failed", "batch_id", batch.ID, "error", err)
		}
		formatter.VerboseLog("Cleared %d checkpoint(s)", n)
	}

	if runOpts.Artifacts {
		art, err := fuzz.WriteBatchReport(runOpts.ArtifactDir, batch)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeRun, "failed to write batch report", err)
		}
		result.Report = art.Path
	}

	aggregates := fuzz.AggregateResults(batch.Results, batch.CoreVersion)
	manager := baseline.NewManager(st, baseline.WithLogger(logger))
	regressed := false
	if flags.CompareBaseline {
		result.Baselines, regressed, err = compareAggregates(ctx, manager, aggregates)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to compare baselines", err)
		}
	}
	if flags.SaveBaseline && !result.Cancelled {
		for _, agg := range aggregates {
			if err := manager.Save(ctx, agg.Key, agg.Metrics, agg.Runs); err != nil {
				return formatter.fail(ExitCommandError, ErrCodeStore, "failed to save baseline", err)
			}
			result.Saved = append(result.Saved, agg.Key)
		}
	}

	if flags.MetricsFile != "" {
		if err := recorder.WriteTextfile(flags.MetricsFile); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to write metrics", err)
		}
	}

	logger.Info("batch complete",
		"batch_id", batch.ID,
		"gates_passed", result.Gates.Passed,
		"regressed", regressed)

	switch {
	case !result.Gates.Passed:
		return outputRunFailure(formatter, result, ErrCodeGates, "batch gates failed: "+strings.Join(result.Gates.Violations, "; "))
	case regressed:
		return outputRunFailure(formatter, result, ErrCodeRegression, "baseline regression detected")
	}
	return outputRunSuccess(formatter, result)
}

// pinResumedEpoch reuses the stored batch start time when resuming a pinned
// batch, so run ids match the checkpoints already written.
func pinResumedEpoch(ctx context.Context, st *store.Store, runOpts *fuzz.Options, formatter *OutputFormatter) error {
	if !runOpts.Resume || runOpts.BatchID == "" {
		return nil
	}
	prior, err := st.LoadBatch(ctx, runOpts.BatchID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		formatter.VerboseLog("No stored batch %s, starting fresh", runOpts.BatchID)
		return nil
	case err != nil:
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to load batch", err)
	}
	runOpts.Epoch = prior.StartedAt
	formatter.VerboseLog("Resuming batch %s started %s", prior.ID, prior.StartedAt)
	return nil
}

func outputRunSuccess(formatter *OutputFormatter, result RunReport) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}
	writeRunText(formatter.Writer, result)
	fmt.Fprintln(formatter.Writer, "✓ Batch passed")
	return nil
}

func outputRunFailure(formatter *OutputFormatter, result RunReport, code, message string) error {
	if formatter.JSON() {
		_ = formatter.Error(code, message, result)
	} else {
		writeRunText(formatter.Writer, result)
		fmt.Fprintf(formatter.Writer, "✗ %s\n", message)
	}
	return NewExitError(ExitFailure, message)
}

func writeRunText(w io.Writer, result RunReport) {
	s := result.Summary
	fmt.Fprintf(w, "Batch %s (core %s)\n", result.BatchID, result.CoreVersion)
	if result.Cancelled {
		fmt.Fprintln(w, "  interrupted: partial results")
	}
	fmt.Fprintf(w, "  runs:             %d (%d passed)\n", s.Total, s.Passed)
	for _, status := range []fuzz.Status{fuzz.StatusCompleted, fuzz.StatusFailed, fuzz.StatusTimeout, fuzz.StatusCancelled} {
		if n := s.ByStatus[status]; n > 0 {
			fmt.Fprintf(w, "    %-10s %d\n", status, n)
		}
	}
	fmt.Fprintf(w, "  failure rate:     %.3f\n", s.FailureRate)
	fmt.Fprintf(w, "  avg coverage:     %.3f\n", s.AvgCoverage)
	fmt.Fprintf(w, "  p95 latency:      %.1fms\n", s.P95LatencyMS)
	fmt.Fprintf(w, "  success fraction: %.3f\n", s.SuccessFraction)
	for _, v := range result.Gates.Violations {
		fmt.Fprintf(w, "  gate: %s\n", v)
	}
	writeComparisonsText(w, result.Baselines)
	for _, key := range result.Saved {
		fmt.Fprintf(w, "  saved baseline %s\n", key)
	}
	if result.Report != "" {
		fmt.Fprintf(w, "  report: %s\n", result.Report)
	}
}
