package fuzz

import "context"

// Store persists batch output. Implementations must be safe for concurrent
// use by all shards.
type Store interface {
	SaveBatch(ctx context.Context, b Batch) error
	SaveRun(ctx context.Context, r RunResult) error
	SaveArtifact(ctx context.Context, runID string, a Artifact) error
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	LoadCheckpoint(ctx context.Context, runID string) (Checkpoint, bool, error)
}

// Recorder receives run metrics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveTurn(seconds float64)
	ObserveOracle(category string)
	ObserveRun(mode, status string, overallCoverage float64)
	ObservePersistFailure()
}

type nopStore struct{}

func (nopStore) SaveBatch(context.Context, Batch) error { return nil }
func (nopStore) SaveRun(context.Context, RunResult) error { return nil }
func (nopStore) SaveArtifact(context.Context, string, Artifact) error { return nil }
func (nopStore) SaveCheckpoint(context.Context, Checkpoint) error { return nil }
func (nopStore) LoadCheckpoint(context.Context, string) (Checkpoint, bool, error) {
	return Checkpoint{}, false, nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveTurn(float64) {}
func (nopRecorder) ObserveOracle(string) {}
func (nopRecorder) ObserveRun(string, string, float64) {}
func (nopRecorder) ObservePersistFailure() {}
