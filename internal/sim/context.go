package sim

// BudgetUsage tracks cumulative token spend against a ceiling.
// MaxTokens == 0 means unlimited.
type BudgetUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	MaxTokens    int `json:"max_tokens"`
}

// Used returns input plus output tokens.
func (b BudgetUsage) Used() int {
	return b.InputTokens + b.OutputTokens
}

// Context is the simulation state handed to policies, the tracker and the
// oracle detector each turn. It reflects state before the current turn.
type Context struct {
	RunID   string          `json:"run_id"`
	Seed    string          `json:"seed"`
	Mode    string          `json:"mode"`
	Locale  string          `json:"locale,omitempty"`
	Toggles map[string]bool `json:"toggles,omitempty"`
	Turn    int             `json:"turn"`

	CurrentNode          string  `json:"current_node,omitempty"`
	ObjectiveProgress    float64 `json:"objective_progress"`
	TurnsWithoutProgress int     `json:"turns_without_progress"`

	Budget BudgetUsage `json:"budget_usage"`

	// VisitedNodes is a read-only view of the bot's visited set.
	VisitedNodes map[string]bool `json:"visited_nodes,omitempty"`
}

// Clone returns a deep copy of the context.
func (c Context) Clone() Context {
	out := c
	if c.Toggles != nil {
		out.Toggles = make(map[string]bool, len(c.Toggles))
		for k, v := range c.Toggles {
			out.Toggles[k] = v
		}
	}
	if c.VisitedNodes != nil {
		out.VisitedNodes = make(map[string]bool, len(c.VisitedNodes))
		for k, v := range c.VisitedNodes {
			out.VisitedNodes[k] = v
		}
	}
	return out
}
