// Package store provides SQLite-backed storage for batch results,
// checkpoints and baselines.
//
// Tables:
//   - batches: one row per Run call, rewritten with its summary at the end
//   - runs: one finalized run result per (scenario, mode)
//   - artifacts: report files produced for a run
//   - checkpoints: the latest resumable state per run
//   - baselines: aggregated metrics keyed by world:adventure:core_version:locale:variation
//
// Every write is an upsert keyed by its natural id, so re-running a batch or
// resuming one overwrites rather than duplicates. Every read that returns
// more than one row has an explicit ORDER BY.
//
// Structured payloads (coverage, oracle, performance, checkpoint state,
// baseline metrics) are stored as JSON TEXT columns.
//
// Open sets WAL journaling, synchronous=NORMAL, a 5s busy timeout and
// foreign key enforcement, then upgrades PRAGMA user_version one migration
// at a time.
package store
