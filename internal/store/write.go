package store

import (
	"context"
	"fmt"

	"github.com/roach88/playtest/internal/baseline"
	"github.com/roach88/playtest/internal/fuzz"
)

var (
	_ fuzz.Store     = (*Store)(nil)
	_ baseline.Store = (*Store)(nil)
)

// SaveBatch upserts a batch header and summary. Results are stored
// separately by SaveRun.
func (s *Store) SaveBatch(ctx context.Context, b fuzz.Batch) error {
	summaryJSON, err := marshalJSON("summary", b.Summary)
	if err != nil {
		return fmt.Errorf("save batch: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batches (id, core_version, started_at, ended_at, scenarios, summary)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			core_version = excluded.core_version,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			scenarios = excluded.scenarios,
			summary = excluded.summary
	`,
		b.ID,
		b.CoreVersion,
		formatTime(b.StartedAt),
		formatTime(b.EndedAt),
		b.Scenarios,
		summaryJSON,
	)
	if err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	return nil
}

// SaveRun upserts a finalized run result. A resumed run overwrites the row
// written by the interrupted attempt.
func (s *Store) SaveRun(ctx context.Context, r fuzz.RunResult) error {
	payloads := []struct {
		field string
		value any
	}{
		{"scenario", r.Scenario},
		{"coverage", r.Coverage},
		{"oracle", r.Oracle},
		{"failures", r.Failures},
		{"flag_counts", r.FlagCounts},
		{"performance", r.Performance},
	}
	encoded := make([]any, 0, len(payloads))
	for _, p := range payloads {
		text, err := marshalJSON(p.field, p.value)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		encoded = append(encoded, text)
	}

	args := []any{
		r.RunID,
		r.BatchID,
		r.Scenario.Index,
		r.Scenario.World,
		r.Scenario.Adventure,
		r.Scenario.Locale,
		string(r.Mode),
		string(r.Status),
		r.Turns,
		boolToInt(r.Passed),
		r.EarlyTermination,
		r.Error,
		r.DecisionDigest,
	}
	args = append(args, encoded...)
	args = append(args, formatTime(r.StartedAt), formatTime(r.EndedAt))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, batch_id, scenario_index, world, adventure, locale, mode, status, turns, passed,
		 early_termination, error, decision_digest,
		 scenario, coverage, oracle, failures, flag_counts, performance,
		 started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			batch_id = excluded.batch_id,
			status = excluded.status,
			turns = excluded.turns,
			passed = excluded.passed,
			early_termination = excluded.early_termination,
			error = excluded.error,
			decision_digest = excluded.decision_digest,
			scenario = excluded.scenario,
			coverage = excluded.coverage,
			oracle = excluded.oracle,
			failures = excluded.failures,
			flag_counts = excluded.flag_counts,
			performance = excluded.performance,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at
	`, args...)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// SaveArtifact upserts artifact metadata for a run. The run must already be
// stored (foreign key constraint).
func (s *Store) SaveArtifact(ctx context.Context, runID string, a fuzz.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, kind, path, bytes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, kind) DO UPDATE SET
			path = excluded.path,
			bytes = excluded.bytes
	`, runID, a.Kind, a.Path, a.Bytes)
	if err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return nil
}

// SaveCheckpoint replaces the run's checkpoint. Only the latest one is kept.
func (s *Store) SaveCheckpoint(ctx context.Context, cp fuzz.Checkpoint) error {
	payload, err := marshalJSON("checkpoint", cp)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, batch_id, turn, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			batch_id = excluded.batch_id,
			turn = excluded.turn,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, cp.RunID, cp.BatchID, cp.Turn, payload, formatTime(cp.CreatedAt))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// SaveBaseline upserts a baseline record by key.
func (s *Store) SaveBaseline(ctx context.Context, rec baseline.Record) error {
	metricsJSON, err := marshalJSON("metrics", rec.Metrics)
	if err != nil {
		return fmt.Errorf("save baseline: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO baselines (key, metrics, runs, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			metrics = excluded.metrics,
			runs = excluded.runs,
			saved_at = excluded.saved_at
	`, rec.Key, metricsJSON, rec.Runs, formatTime(rec.SavedAt))
	if err != nil {
		return fmt.Errorf("save baseline: %w", err)
	}
	return nil
}
