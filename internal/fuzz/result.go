package fuzz

import (
	"time"

	"github.com/roach88/playtest/internal/bot"
	"github.com/roach88/playtest/internal/coverage"
	"github.com/roach88/playtest/internal/oracle"
	"github.com/roach88/playtest/internal/sim"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// Performance holds run timing stats.
type Performance struct {
	DurationMS       float64 `json:"duration_ms"`
	TurnsPerSecond   float64 `json:"turns_per_second"`
	AvgTurnLatencyMS float64 `json:"avg_turn_latency_ms"`
}

// Artifact is one generated report file.
type Artifact struct {
	Kind  string `json:"kind"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// RunResult is the finalized outcome of one (scenario, mode) pair.
type RunResult struct {
	RunID    string       `json:"run_id"`
	BatchID  string       `json:"batch_id"`
	Scenario sim.Scenario `json:"scenario"`
	Mode     bot.Mode     `json:"mode"`
	Status   Status       `json:"status"`
	Turns    int          `json:"turns"`

	Coverage coverage.Summary   `json:"coverage"`
	Snapshot *coverage.Snapshot `json:"snapshot,omitempty"`
	Oracle   oracle.Result      `json:"oracle"`
	Failures oracle.Summary     `json:"failures"`

	// FlagCounts is the number of turns that raised each oracle category.
	FlagCounts map[string]int `json:"flag_counts"`

	Performance Performance `json:"performance"`
	Artifacts   []Artifact  `json:"artifacts"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Passed    bool      `json:"passed"`

	// EarlyTermination names the oracle category that ended the run.
	EarlyTermination string `json:"early_termination,omitempty"`

	Error string `json:"error,omitempty"`

	// DecisionDigest is the SHA-256 over the canonical decision trace.
	DecisionDigest string `json:"decision_digest"`

	Decisions []sim.Decision `json:"-"`
}

// Checkpoint is the resumable state of a run at a turn boundary.
type Checkpoint struct {
	RunID     string      `json:"run_id"`
	BatchID   string      `json:"batch_id"`
	Turn      int         `json:"turn"`
	Bundle    sim.Bundle  `json:"bundle"`
	Context   sim.Context `json:"context"`
	Memory    *bot.Memory `json:"memory"`
	CreatedAt time.Time   `json:"created_at"`

	// RNGStates holds each policy's RNG position so a resumed run continues
	// the same random sequence.
	RNGStates map[bot.Mode]uint32 `json:"rng_states,omitempty"`
}

// Batch is the outcome of one Run call.
type Batch struct {
	ID          string      `json:"id"`
	CoreVersion string      `json:"core_version"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     time.Time   `json:"ended_at"`
	Scenarios   int         `json:"scenarios"`
	Results     []RunResult `json:"results"`
	Summary     Summary     `json:"summary"`
}
