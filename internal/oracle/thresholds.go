package oracle

// Thresholds configures the oracle checks.
type Thresholds struct {
	// SoftLockTurns is the number of consecutive no-progress turns that
	// constitutes a soft lock.
	SoftLockTurns int `json:"soft_lock_turns" yaml:"soft_lock_turns"`

	// BudgetFraction is the share of max tokens that may be used before the
	// budget check fires.
	BudgetFraction float64 `json:"budget_fraction" yaml:"budget_fraction"`

	// RepairLoopTokens flags a single turn that used more tokens than this.
	RepairLoopTokens int `json:"repair_loop_tokens" yaml:"repair_loop_tokens"`

	// MaxValidatorRetries applies per turn; twice this applies cumulatively.
	MaxValidatorRetries int `json:"max_validator_retries" yaml:"max_validator_retries"`

	MaxFallbacks int `json:"max_fallbacks" yaml:"max_fallbacks"`

	LatencyMS       float64 `json:"latency_ms" yaml:"latency_ms"`
	P95LatencyMS    float64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	AssemblerTimeMS float64 `json:"assembler_time_ms" yaml:"assembler_time_ms"`

	// SafetyKeywords are matched case-insensitively as substrings of content flags.
	SafetyKeywords []string `json:"safety_keywords" yaml:"safety_keywords"`
}

// DefaultSafetyKeywords is the built-in safety keyword list.
var DefaultSafetyKeywords = []string{
	"nsfw",
	"explicit",
	"gore",
	"self-harm",
	"hate",
	"harassment",
	"minor",
	"non-consensual",
}

// DefaultThresholds returns the default oracle configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SoftLockTurns:       10,
		BudgetFraction:      0.95,
		RepairLoopTokens:    16000,
		MaxValidatorRetries: 5,
		MaxFallbacks:        3,
		LatencyMS:           5000,
		P95LatencyMS:        10000,
		AssemblerTimeMS:     2000,
		SafetyKeywords:      append([]string(nil), DefaultSafetyKeywords...),
	}
}
