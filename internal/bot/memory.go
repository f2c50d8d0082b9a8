package bot

import "github.com/roach88/playtest/internal/sim"

// Memory is the per-run state owned by one Engine.
// Only the Engine writes it; policies receive it read-only.
type Memory struct {
	VisitedNodes map[string]bool `json:"visited_nodes"`
	SeenDialogue map[string]bool `json:"seen_dialogue"`
	SkillChecks  map[string]int  `json:"skill_checks"`
	LootTiers    map[string]bool `json:"loot_tiers"`
	WorldEvents  map[string]bool `json:"world_events"`
	HookCounts   map[string]int  `json:"hook_counts"`

	Turn            int             `json:"turn"`
	LastProgress    float64         `json:"last_progress"`
	NoProgressTurns int             `json:"no_progress_turns"`
	Budget          sim.BudgetUsage `json:"budget_usage"`
}

func newMemory(turn, maxTokens int) *Memory {
	return &Memory{
		VisitedNodes: make(map[string]bool),
		SeenDialogue: make(map[string]bool),
		SkillChecks:  make(map[string]int),
		LootTiers:    make(map[string]bool),
		WorldEvents:  make(map[string]bool),
		HookCounts:   make(map[string]int),
		Turn:         turn,
		Budget:       sim.BudgetUsage{MaxTokens: maxTokens},
	}
}

// Visited reports whether the bot has been at node.
func (m *Memory) Visited(node string) bool {
	return m.VisitedNodes[node]
}

// SawDialogue reports whether the bot has selected dialogue id.
func (m *Memory) SawDialogue(id string) bool {
	return m.SeenDialogue[id]
}

// Clone returns a deep copy.
func (m *Memory) Clone() *Memory {
	out := *m
	out.VisitedNodes = copyBools(m.VisitedNodes)
	out.SeenDialogue = copyBools(m.SeenDialogue)
	out.SkillChecks = copyCounts(m.SkillChecks)
	out.LootTiers = copyBools(m.LootTiers)
	out.WorldEvents = copyBools(m.WorldEvents)
	out.HookCounts = copyCounts(m.HookCounts)
	return &out
}

func copyBools(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
