package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/playtest/internal/baseline"
	"github.com/roach88/playtest/internal/bot"
	"github.com/roach88/playtest/internal/fuzz"
)

// ErrNotFound is returned by lookups for ids that are not stored.
var ErrNotFound = errors.New("not found")

// LoadCheckpoint returns the latest checkpoint for runID. ok is false when
// the run has none.
func (s *Store) LoadCheckpoint(ctx context.Context, runID string) (fuzz.Checkpoint, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM checkpoints WHERE run_id = ?
	`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fuzz.Checkpoint{}, false, nil
	}
	if err != nil {
		return fuzz.Checkpoint{}, false, fmt.Errorf("load checkpoint: %w", err)
	}

	var cp fuzz.Checkpoint
	if err := unmarshalJSON("checkpoint", payload, &cp); err != nil {
		return fuzz.Checkpoint{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, true, nil
}

// DeleteCheckpoints removes every checkpoint of a batch and reports how many
// were removed.
func (s *Store) DeleteCheckpoints(ctx context.Context, batchID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE batch_id = ?`, batchID)
	if err != nil {
		return 0, fmt.Errorf("delete checkpoints: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete checkpoints: %w", err)
	}
	return n, nil
}

// LoadBaseline returns the baseline stored under key. ok is false when none
// exists.
func (s *Store) LoadBaseline(ctx context.Context, key string) (baseline.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, metrics, runs, saved_at FROM baselines WHERE key = ?
	`, key)
	rec, err := scanBaseline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return baseline.Record{}, false, nil
	}
	if err != nil {
		return baseline.Record{}, false, fmt.Errorf("load baseline: %w", err)
	}
	return rec, true, nil
}

// ListBaselines returns every baseline ordered by key.
func (s *Store) ListBaselines(ctx context.Context) ([]baseline.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, metrics, runs, saved_at FROM baselines
		ORDER BY key ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	defer rows.Close()

	recs := []baseline.Record{}
	for rows.Next() {
		rec, err := scanBaseline(rows)
		if err != nil {
			return nil, fmt.Errorf("list baselines: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	return recs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBaseline(sc scanner) (baseline.Record, error) {
	var rec baseline.Record
	var metricsJSON, savedAt string
	if err := sc.Scan(&rec.Key, &metricsJSON, &rec.Runs, &savedAt); err != nil {
		return baseline.Record{}, err
	}
	if err := unmarshalJSON("metrics", metricsJSON, &rec.Metrics); err != nil {
		return baseline.Record{}, err
	}
	t, err := parseTime("saved_at", savedAt)
	if err != nil {
		return baseline.Record{}, err
	}
	rec.SavedAt = t
	return rec, nil
}

// LoadBatch returns a batch with its stored runs attached. Decision traces
// are not stored, so results carry only their digests.
func (s *Store) LoadBatch(ctx context.Context, id string) (fuzz.Batch, error) {
	var b fuzz.Batch
	var startedAt, endedAt, summaryJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, core_version, started_at, ended_at, scenarios, summary
		FROM batches WHERE id = ?
	`, id).Scan(&b.ID, &b.CoreVersion, &startedAt, &endedAt, &b.Scenarios, &summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return fuzz.Batch{}, fmt.Errorf("load batch %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fuzz.Batch{}, fmt.Errorf("load batch: %w", err)
	}

	if b.StartedAt, err = parseTime("started_at", startedAt); err != nil {
		return fuzz.Batch{}, fmt.Errorf("load batch: %w", err)
	}
	if b.EndedAt, err = parseTime("ended_at", endedAt); err != nil {
		return fuzz.Batch{}, fmt.Errorf("load batch: %w", err)
	}
	if err := unmarshalJSON("summary", summaryJSON, &b.Summary); err != nil {
		return fuzz.Batch{}, fmt.Errorf("load batch: %w", err)
	}

	if b.Results, err = s.ListRuns(ctx, id); err != nil {
		return fuzz.Batch{}, err
	}
	return b, nil
}

// ListRuns returns a batch's runs ordered by scenario index, then run id.
func (s *Store) ListRuns(ctx context.Context, batchID string) ([]fuzz.RunResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ` + runColumns + `
		FROM runs
		WHERE batch_id = ?
		ORDER BY scenario_index ASC, run_id ASC COLLATE BINARY
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []fuzz.RunResult{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	for i := range runs {
		arts, err := s.ListArtifacts(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].Artifacts = arts
	}
	return runs, nil
}

// LoadRun returns one stored run with its artifacts.
func (s *Store) LoadRun(ctx context.Context, runID string) (fuzz.RunResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ` + runColumns + `
		FROM runs WHERE run_id = ?
	`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fuzz.RunResult{}, fmt.Errorf("load run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return fuzz.RunResult{}, fmt.Errorf("load run: %w", err)
	}
	if r.Artifacts, err = s.ListArtifacts(ctx, runID); err != nil {
		return fuzz.RunResult{}, err
	}
	return r, nil
}

// runColumns is the column list scanRun expects.
const runColumns = `run_id, batch_id, mode, status, turns, passed, early_termination, error,
		       decision_digest, scenario, coverage, oracle, failures, flag_counts, performance,
		       started_at, ended_at`

func scanRun(sc scanner) (fuzz.RunResult, error) {
	var r fuzz.RunResult
	var mode, status string
	var passed int
	var scenarioJSON, coverageJSON, oracleJSON, failuresJSON, flagsJSON, perfJSON string
	var startedAt, endedAt string
	err := sc.Scan(&r.RunID, &r.BatchID, &mode, &status, &r.Turns, &passed, &r.EarlyTermination, &r.Error,
		&r.DecisionDigest, &scenarioJSON, &coverageJSON, &oracleJSON, &failuresJSON, &flagsJSON, &perfJSON,
		&startedAt, &endedAt)
	if err != nil {
		return fuzz.RunResult{}, err
	}
	r.Mode = bot.Mode(mode)
	r.Status = fuzz.Status(status)
	r.Passed = passed != 0

	payloads := []struct {
		field string
		data  string
		dest  any
	}{
		{"scenario", scenarioJSON, &r.Scenario},
		{"coverage", coverageJSON, &r.Coverage},
		{"oracle", oracleJSON, &r.Oracle},
		{"failures", failuresJSON, &r.Failures},
		{"flag_counts", flagsJSON, &r.FlagCounts},
		{"performance", perfJSON, &r.Performance},
	}
	for _, p := range payloads {
		if err := unmarshalJSON(p.field, p.data, p.dest); err != nil {
			return fuzz.RunResult{}, err
		}
	}

	if r.StartedAt, err = parseTime("started_at", startedAt); err != nil {
		return fuzz.RunResult{}, err
	}
	if r.EndedAt, err = parseTime("ended_at", endedAt); err != nil {
		return fuzz.RunResult{}, err
	}
	return r, nil
}

// ListArtifacts returns a run's artifacts ordered by kind.
func (s *Store) ListArtifacts(ctx context.Context, runID string) ([]fuzz.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, path, bytes FROM artifacts
		WHERE run_id = ?
		ORDER BY kind ASC COLLATE BINARY
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	arts := []fuzz.Artifact{}
	for rows.Next() {
		var a fuzz.Artifact
		if err := rows.Scan(&a.Kind, &a.Path, &a.Bytes); err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
		arts = append(arts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return arts, nil
}

// BatchInfo is a batch header without its runs.
type BatchInfo struct {
	ID          string       `json:"id"`
	CoreVersion string       `json:"core_version"`
	StartedAt   string       `json:"started_at"`
	Summary     fuzz.Summary `json:"summary"`
}

// ListBatches returns batch headers, newest first.
func (s *Store) ListBatches(ctx context.Context) ([]BatchInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, core_version, started_at, summary FROM batches
		ORDER BY started_at DESC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	out := []BatchInfo{}
	for rows.Next() {
		var info BatchInfo
		var summaryJSON string
		if err := rows.Scan(&info.ID, &info.CoreVersion, &info.StartedAt, &summaryJSON); err != nil {
			return nil, fmt.Errorf("list batches: %w", err)
		}
		if err := unmarshalJSON("summary", summaryJSON, &info.Summary); err != nil {
			return nil, fmt.Errorf("list batches: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return out, nil
}
