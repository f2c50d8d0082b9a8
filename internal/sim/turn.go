package sim

// SkillCheck is one skill roll resolved during a turn.
type SkillCheck struct {
	Skill   string `json:"skill"`
	Success bool   `json:"success,omitempty"`
}

// LootDrop is an item gained during a turn.
type LootDrop struct {
	ID   string `json:"id,omitempty"`
	Tier string `json:"tier"`
}

// CraftAttempt is one crafting action.
type CraftAttempt struct {
	Recipe  string `json:"recipe"`
	Success bool   `json:"success,omitempty"`
}

// VendorInteraction is a trade with a vendor.
type VendorInteraction struct {
	Vendor string `json:"vendor"`
	Kind   string `json:"kind"` // "buy" | "sell" | "browse"
	Amount int    `json:"amount,omitempty"`
}

// WorldEvent is a world-simulation event triggered during a turn.
type WorldEvent struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// TokenUsage is the model token spend for a single turn.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// TurnResult is what the content engine reports after executing a decision.
// Every field is optional.
type TurnResult struct {
	NewNodes []string `json:"new_nodes,omitempty"`

	// ObjectiveProgress is the absolute objective progress after the turn.
	// Nil means the engine did not report it.
	ObjectiveProgress *float64 `json:"objective_progress,omitempty"`

	SkillChecks        []SkillCheck        `json:"skill_checks,omitempty"`
	Conditions         []string            `json:"conditions,omitempty"`
	ResourceChanges    map[string]int      `json:"resource_changes,omitempty"`
	LootGained         []LootDrop          `json:"loot_gained,omitempty"`
	CraftAttempts      []CraftAttempt      `json:"craft_attempts,omitempty"`
	VendorInteractions []VendorInteraction `json:"vendor_interactions,omitempty"`
	WorldEvents        []WorldEvent        `json:"world_events,omitempty"`
	WeatherChanges     []string            `json:"weather_changes,omitempty"`
	ModHooks           []string            `json:"mod_hooks,omitempty"`
	ModViolations      []string            `json:"mod_violations,omitempty"`
	ModQuarantines     []string            `json:"mod_quarantines,omitempty"`

	TokenUsage            TokenUsage `json:"token_usage"`
	ValidatorRetries      int        `json:"validator_retries,omitempty"`
	FallbackEngagements   int        `json:"fallback_engagements,omitempty"`
	FallbackRuleViolation bool       `json:"fallback_rule_violation,omitempty"`

	ContentFlags       []string `json:"content_flags,omitempty"`
	ConsentViolation   bool     `json:"consent_violation,omitempty"`
	AgeRatingViolation bool     `json:"age_rating_violation,omitempty"`

	LatencyMS       float64 `json:"latency_ms,omitempty"`
	AssemblerTimeMS float64 `json:"assembler_time,omitempty"`

	ActsSchemaViolation bool `json:"acts_schema_violation,omitempty"`
	StateDivergence     bool `json:"state_divergence,omitempty"`
	InvalidTransition   bool `json:"invalid_transition,omitempty"`
	DataCorruption      bool `json:"data_corruption,omitempty"`

	// UpdatedBundle replaces the current bundle for the next turn when set.
	UpdatedBundle *Bundle `json:"updatedBundle,omitempty"`
}

// Progress returns the reported objective progress and whether it was reported.
func (r TurnResult) Progress() (float64, bool) {
	if r.ObjectiveProgress == nil {
		return 0, false
	}
	return *r.ObjectiveProgress, true
}

// ProgressPtr is a helper for building TurnResults in code.
func ProgressPtr(v float64) *float64 {
	return &v
}

// MadeProgress reports whether a turn advanced the run: either objective
// progress rose above last, or the engine reported newly reached nodes.
func MadeProgress(r TurnResult, last float64) bool {
	if p, ok := r.Progress(); ok && p > last {
		return true
	}
	return len(r.NewNodes) > 0
}
