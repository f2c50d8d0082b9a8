package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/playtest/internal/fuzz"
	"github.com/roach88/playtest/internal/store"
)

// BatchDetail is the JSON payload of batches show.
type BatchDetail struct {
	ID          string        `json:"id"`
	CoreVersion string        `json:"core_version"`
	StartedAt   string        `json:"started_at"`
	Summary     fuzz.Summary  `json:"summary"`
	Runs        []RunOverview `json:"runs"`
}

// RunOverview is one stored run as listed by batches show.
type RunOverview struct {
	RunID    string      `json:"run_id"`
	Scenario int         `json:"scenario"`
	Mode     string      `json:"mode"`
	Status   fuzz.Status `json:"status"`
	Turns    int         `json:"turns"`
	Coverage float64     `json:"coverage"`
	Passed   bool        `json:"passed"`
	Digest   string      `json:"decision_digest"`
}

// NewBatchesCommand creates the batches command group.
func NewBatchesCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "batches",
		Short:         "Inspect stored batches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List stored batches, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, dbPath, cmd, runBatchesList)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "show <batch-id>",
		Short:         "Show a stored batch and its runs",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, dbPath, cmd, func(ctx context.Context, f *OutputFormatter, st *store.Store) error {
				return runBatchesShow(ctx, f, st, args[0])
			})
		},
	})

	return cmd
}

func runBatchesList(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	batches, err := st.ListBatches(ctx)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to list batches", err)
	}
	if formatter.JSON() {
		return formatter.Success(batches)
	}
	if len(batches) == 0 {
		fmt.Fprintln(formatter.Writer, "No batches stored")
		return nil
	}
	for _, b := range batches {
		fmt.Fprintf(formatter.Writer, "%s\t%s\tcore %s\t%d/%d passed\n",
			b.ID, b.StartedAt, b.CoreVersion, b.Summary.Passed, b.Summary.Total)
	}
	return nil
}

func runBatchesShow(ctx context.Context, formatter *OutputFormatter, st *store.Store, id string) error {
	batch, err := st.LoadBatch(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no batch %q", id), nil)
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to load batch", err)
	}

	detail := BatchDetail{
		ID:          batch.ID,
		CoreVersion: batch.CoreVersion,
		StartedAt:   batch.StartedAt.UTC().Format(time.RFC3339),
		Summary:     batch.Summary,
		Runs:        make([]RunOverview, 0, len(batch.Results)),
	}
	for _, r := range batch.Results {
		detail.Runs = append(detail.Runs, RunOverview{
			RunID:    r.RunID,
			Scenario: r.Scenario.Index,
			Mode:     string(r.Mode),
			Status:   r.Status,
			Turns:    r.Turns,
			Coverage: r.Coverage.Overall,
			Passed:   r.Passed,
			Digest:   r.DecisionDigest,
		})
	}

	if formatter.JSON() {
		return formatter.Success(detail)
	}
	fmt.Fprintf(formatter.Writer, "Batch %s (core %s) started %s\n", detail.ID, detail.CoreVersion, detail.StartedAt)
	for _, r := range detail.Runs {
		verdict := "pass"
		if !r.Passed {
			verdict = "FAIL"
		}
		fmt.Fprintf(formatter.Writer, "  %s\t%s\t%d turns\tcoverage %.3f\t%s\n", r.RunID, r.Status, r.Turns, r.Coverage, verdict)
	}
	return nil
}
