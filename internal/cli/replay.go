package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/playtest/internal/bot"
	"github.com/roach88/playtest/internal/config"
	"github.com/roach88/playtest/internal/fuzz"
	"github.com/roach88/playtest/internal/matrix"
	"github.com/roach88/playtest/internal/sim"
	"github.com/roach88/playtest/internal/store"
)

// ReplayFlags holds the replay command flags.
type ReplayFlags struct {
	Scenario int
	Mode     string
	RunID    string
	Database string
}

// ReplayResult is the JSON payload of the replay command.
type ReplayResult struct {
	Scenario      int      `json:"scenario"`
	Seed          string   `json:"seed"`
	Mode          string   `json:"mode"`
	Digests       []string `json:"digests"`
	StoredRunID   string   `json:"stored_run_id,omitempty"`
	StoredDigest  string   `json:"stored_digest,omitempty"`
	Turns         int      `json:"turns"`
	Deterministic bool     `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &ReplayFlags{}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Check that a run replays deterministically",
		Long: `Run one (scenario, mode) pair twice and compare decision digests.

The pair is chosen either by --scenario and --mode from the config's
matrix, or by --run-id from a stored run, whose recorded digest must match
as well. Exits 1 if any digest differs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, flags, cmd)
		},
	}

	cmd.Flags().IntVar(&flags.Scenario, "scenario", 0, "scenario index from the matrix listing")
	cmd.Flags().StringVar(&flags.Mode, "mode", string(bot.ModeExplorer), "bot mode to replay")
	cmd.Flags().StringVar(&flags.RunID, "run-id", "", "replay a stored run instead of a matrix scenario")
	cmd.Flags().StringVar(&flags.Database, "db", "", "SQLite database path for --run-id (overrides config)")

	return cmd
}

func runReplay(opts *RootOptions, flags *ReplayFlags, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts, formatter)
	if err != nil {
		return err
	}
	if flags.Database != "" {
		cfg.Database = flags.Database
	}
	ctx := cmd.Context()

	var (
		scenario sim.Scenario
		mode     bot.Mode
		stored   *fuzz.RunResult
	)
	if flags.RunID != "" {
		rec, err := loadStoredRun(ctx, cfg.Database, flags.RunID)
		if errors.Is(err, store.ErrNotFound) {
			return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no run %q", flags.RunID), nil)
		}
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to load run", err)
		}
		scenario, mode, stored = rec.Scenario, rec.Mode, &rec
	} else {
		if mode, err = bot.ParseMode(flags.Mode); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeRun, "invalid mode", err)
		}
		scenarios, err := matrix.Generate(cfg.MatrixConfig())
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeMatrix, "invalid matrix", err)
		}
		if flags.Scenario < 0 || flags.Scenario >= len(scenarios) {
			return formatter.fail(ExitCommandError, ErrCodeMatrix,
				fmt.Sprintf("scenario %d out of range [0, %d)", flags.Scenario, len(scenarios)), nil)
		}
		scenario = scenarios[flags.Scenario]
	}

	logger, closer, err := newLogger(opts, cfg, cmd.ErrOrStderr())
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to set up logging", err)
	}
	defer closer.Close()

	runner, err := newReplayRunner(cfg, mode, logger)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeRun, "invalid run options", err)
	}

	result := ReplayResult{
		Scenario: scenario.Index,
		Seed:     scenario.Seed,
		Mode:     string(mode),
		Digests:  make([]string, 0, 2),
	}
	for i := 0; i < 2; i++ {
		res, err := runner.RunOne(ctx, scenario, mode)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeRun, "replay failed", err)
		}
		formatter.VerboseLog("Replay %d: %s after %d turn(s) digest %s", i+1, res.Status, res.Turns, res.DecisionDigest)
		result.Digests = append(result.Digests, res.DecisionDigest)
		result.Turns = res.Turns
	}
	result.Deterministic = result.Digests[0] == result.Digests[1]
	if stored != nil {
		result.StoredRunID = stored.RunID
		result.StoredDigest = stored.DecisionDigest
		result.Deterministic = result.Deterministic && stored.DecisionDigest == result.Digests[0]
	}

	if !result.Deterministic {
		message := "replay diverged"
		if formatter.JSON() {
			_ = formatter.Error(ErrCodeDivergence, message, result)
		} else {
			writeReplayText(formatter, result)
			fmt.Fprintf(formatter.Writer, "✗ %s\n", message)
		}
		return NewExitError(ExitFailure, message)
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	writeReplayText(formatter, result)
	fmt.Fprintln(formatter.Writer, "✓ Replay is deterministic")
	return nil
}

func loadStoredRun(ctx context.Context, dbPath, runID string) (fuzz.RunResult, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return fuzz.RunResult{}, err
	}
	defer st.Close()
	return st.LoadRun(ctx, runID)
}

// newReplayRunner builds an unpersisted single-mode runner. Replays never
// resume or write artifacts.
func newReplayRunner(cfg config.Config, mode bot.Mode, logger *slog.Logger) (*fuzz.Runner, error) {
	runOpts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	runOpts.Modes = []bot.Mode{mode}
	runOpts.Resume = false
	runOpts.Artifacts = false

	engine := newEngine(cfg)
	return fuzz.NewRunner(engine, runOpts, fuzz.WithLogger(logger))
}

func writeReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Scenario %d (%s) mode %s, %d turn(s)\n", result.Scenario, result.Seed, result.Mode, result.Turns)
	for i, d := range result.Digests {
		fmt.Fprintf(w, "  replay %d: %s\n", i+1, d)
	}
	if result.StoredRunID != "" {
		fmt.Fprintf(w, "  stored %s: %s\n", result.StoredRunID, result.StoredDigest)
	}
}
