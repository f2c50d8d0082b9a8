package oracle

// Category names, as reported by FailureSummary and recorded in run results.
const (
	CategorySoftLock           = "soft_lock"
	CategoryBudgetViolation    = "budget_violation"
	CategoryValidatorRetries   = "validator_retries_exceeded"
	CategoryFallbackEngagement = "fallback_engagements"
	CategorySafetyViolation    = "safety_violation"
	CategoryPerformance        = "performance_violation"
	CategoryIntegrity          = "integrity_violation"
)

// Categories lists every category in report order.
var Categories = []string{
	CategorySoftLock,
	CategoryBudgetViolation,
	CategoryValidatorRetries,
	CategoryFallbackEngagement,
	CategorySafetyViolation,
	CategoryPerformance,
	CategoryIntegrity,
}

// criticalCategories end a run or fail it outright.
var criticalCategories = map[string]bool{
	CategorySoftLock:        true,
	CategorySafetyViolation: true,
	CategoryIntegrity:       true,
	CategoryBudgetViolation: true,
}

// Result holds one flag per category plus details.
type Result struct {
	SoftLock           bool    `json:"soft_lock"`
	BudgetViolation    bool    `json:"budget_violation"`
	ValidatorRetries   bool    `json:"validator_retries_exceeded"`
	FallbackEngagement bool    `json:"fallback_engagements"`
	SafetyViolation    bool    `json:"safety_violation"`
	Performance        bool    `json:"performance_violation"`
	Integrity          bool    `json:"integrity_violation"`
	Details            Details `json:"details"`
}

// Details explains the values behind each flag.
type Details struct {
	StalledTurns       int      `json:"stalled_turns"`
	Unreachable        bool     `json:"unreachable,omitempty"`
	TokensUsed         int      `json:"tokens_used"`
	TurnTokens         int      `json:"turn_tokens"`
	MaxTokens          int      `json:"max_tokens,omitempty"`
	TurnRetries        int      `json:"turn_retries"`
	CumulativeRetries  int      `json:"cumulative_retries"`
	Fallbacks          int      `json:"fallbacks"`
	SafetyMatches      []string `json:"safety_matches,omitempty"`
	LatencyMS          float64  `json:"latency_ms"`
	P95LatencyMS       float64  `json:"p95_latency_ms"`
	AssemblerTimeMS    float64  `json:"assembler_time_ms"`
	IntegrityViolation []string `json:"integrity_violations,omitempty"`
}

// Flags returns each category's flag keyed by category name.
func (r Result) Flags() map[string]bool {
	return map[string]bool{
		CategorySoftLock:           r.SoftLock,
		CategoryBudgetViolation:    r.BudgetViolation,
		CategoryValidatorRetries:   r.ValidatorRetries,
		CategoryFallbackEngagement: r.FallbackEngagement,
		CategorySafetyViolation:    r.SafetyViolation,
		CategoryPerformance:        r.Performance,
		CategoryIntegrity:          r.Integrity,
	}
}

// Failures returns the names of raised categories in report order.
func (r Result) Failures() []string {
	flags := r.Flags()
	var out []string
	for _, c := range Categories {
		if flags[c] {
			out = append(out, c)
		}
	}
	return out
}

// Any reports whether any category is raised.
func (r Result) Any() bool {
	return len(r.Failures()) > 0
}

// ShouldTerminate reports whether the run must end after this turn.
func (r Result) ShouldTerminate() bool {
	return r.SoftLock || r.BudgetViolation
}

// Summary lists raised categories and the critical subset.
type Summary struct {
	Failures []string `json:"failures"`
	Critical []string `json:"critical"`
}

// Summarize builds a Summary for r.
func (r Result) Summarize() Summary {
	s := Summary{Failures: []string{}, Critical: []string{}}
	for _, f := range r.Failures() {
		s.Failures = append(s.Failures, f)
		if criticalCategories[f] {
			s.Critical = append(s.Critical, f)
		}
	}
	return s
}

// IsCritical reports whether category is in the critical subset.
func IsCritical(category string) bool {
	return criticalCategories[category]
}
