package fuzz

import (
	"time"

	"github.com/roach88/playtest/internal/bot"
	"github.com/roach88/playtest/internal/coverage"
	"github.com/roach88/playtest/internal/oracle"
)

// DefaultCheckpointInterval is the number of turns between checkpoints.
const DefaultCheckpointInterval = 10

// PassLatencyMS is the average-turn latency a passing run must stay under.
const PassLatencyMS = 5000

// Options configures a batch.
type Options struct {
	// Modes run for every scenario, in order. Empty means bot.AllModes.
	Modes []bot.Mode `json:"modes"`

	Shards             int `json:"shards" validate:"gt=0"`
	MaxConcurrent      int `json:"max_concurrent" validate:"gt=0"`
	CheckpointInterval int `json:"checkpoint_interval" validate:"gt=0"`

	// Artifacts enables per-run JSON, HTML and SVG reports under ArtifactDir.
	Artifacts   bool   `json:"artifacts"`
	ArtifactDir string `json:"artifact_dir" validate:"required_if=Artifacts true"`

	// Resume loads each run's last checkpoint before starting it.
	Resume bool `json:"resume"`

	// Strict propagates persistence errors instead of swallowing them.
	Strict bool `json:"strict"`

	// CallTimeout bounds every content engine call. Zero disables it.
	CallTimeout time.Duration `json:"call_timeout" validate:"gte=0"`

	// CoreVersion is recorded on the batch and used in baseline keys.
	CoreVersion string `json:"core_version"`

	// BatchID and Epoch pin the batch identity. When empty they are
	// generated, which makes run ids unique to this invocation.
	BatchID string    `json:"batch_id,omitempty"`
	Epoch   time.Time `json:"epoch,omitempty"`

	Oracle   oracle.Thresholds  `json:"oracle"`
	Coverage coverage.Estimates `json:"coverage"`
}

// DefaultOptions returns single-shard defaults over all modes.
func DefaultOptions() Options {
	return Options{
		Modes:              append([]bot.Mode(nil), bot.AllModes...),
		Shards:             1,
		MaxConcurrent:      1,
		CheckpointInterval: DefaultCheckpointInterval,
		ArtifactDir:        "artifacts",
		CoreVersion:        "dev",
		Oracle:             oracle.DefaultThresholds(),
		Coverage:           coverage.DefaultEstimates(),
	}
}

// Clock supplies wall-clock time to the runner.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
