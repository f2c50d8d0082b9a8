package coverage

import (
	"sort"
	"time"
)

// Set is a string set. JSON encodes it as an object with sorted keys.
type Set map[string]bool

func (s Set) add(v string) {
	if v != "" {
		s[v] = true
	}
}

func (s Set) clone() Set {
	out := make(Set, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// QuestCoverage tracks traversed nodes and edges of the quest graph.
type QuestCoverage struct {
	Nodes      Set     `json:"nodes"`
	Edges      Set     `json:"edges"`
	TotalNodes int     `json:"total_nodes"`
	TotalEdges int     `json:"total_edges"`
	Percentage float64 `json:"percentage"`
}

// DialogueCoverage tracks which dialogue candidates were selected.
type DialogueCoverage struct {
	Seen       Set     `json:"seen"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// MechanicsCoverage tracks skill checks, conditions and crafting recipes.
type MechanicsCoverage struct {
	SkillChecks map[string]int `json:"skill_checks"`
	Conditions  Set            `json:"conditions"`
	Recipes     Set            `json:"recipes"`
	Total       int            `json:"total"`
	Percentage  float64        `json:"percentage"`
}

// EconomyCoverage tracks loot tiers, vendors and resource kinds touched.
type EconomyCoverage struct {
	LootTiers  Set     `json:"loot_tiers"`
	Vendors    Set     `json:"vendors"`
	Resources  Set     `json:"resources"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// WorldCoverage tracks triggered world-event types and weather states.
type WorldCoverage struct {
	EventTypes Set     `json:"event_types"`
	Weather    Set     `json:"weather"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ExtensionCoverage tracks invoked mod hooks. Violations and quarantines are
// counted for reporting but do not affect the percentage.
type ExtensionCoverage struct {
	Hooks       Set     `json:"hooks"`
	Violations  int     `json:"violations"`
	Quarantines int     `json:"quarantines"`
	Total       int     `json:"total"`
	Percentage  float64 `json:"percentage"`
}

// Metrics holds all six dimensions.
type Metrics struct {
	Quest      QuestCoverage     `json:"quest"`
	Dialogue   DialogueCoverage  `json:"dialogue"`
	Mechanics  MechanicsCoverage `json:"mechanics"`
	Economy    EconomyCoverage   `json:"economy"`
	World      WorldCoverage     `json:"world"`
	Extensions ExtensionCoverage `json:"extensions"`
}

func newMetrics() Metrics {
	return Metrics{
		Quest:      QuestCoverage{Nodes: Set{}, Edges: Set{}},
		Dialogue:   DialogueCoverage{Seen: Set{}},
		Mechanics:  MechanicsCoverage{SkillChecks: map[string]int{}, Conditions: Set{}, Recipes: Set{}},
		Economy:    EconomyCoverage{LootTiers: Set{}, Vendors: Set{}, Resources: Set{}},
		World:      WorldCoverage{EventTypes: Set{}, Weather: Set{}},
		Extensions: ExtensionCoverage{Hooks: Set{}},
	}
}

// Clone returns a deep copy.
func (m Metrics) Clone() Metrics {
	out := m
	out.Quest.Nodes = m.Quest.Nodes.clone()
	out.Quest.Edges = m.Quest.Edges.clone()
	out.Dialogue.Seen = m.Dialogue.Seen.clone()
	out.Mechanics.SkillChecks = cloneCounts(m.Mechanics.SkillChecks)
	out.Mechanics.Conditions = m.Mechanics.Conditions.clone()
	out.Mechanics.Recipes = m.Mechanics.Recipes.clone()
	out.Economy.LootTiers = m.Economy.LootTiers.clone()
	out.Economy.Vendors = m.Economy.Vendors.clone()
	out.Economy.Resources = m.Economy.Resources.clone()
	out.World.EventTypes = m.World.EventTypes.clone()
	out.World.Weather = m.World.Weather.clone()
	out.Extensions.Hooks = m.Extensions.Hooks.clone()
	return out
}

// Summary returns the six percentages and their mean.
func (m Metrics) Summary() Summary {
	s := Summary{
		Quest:      m.Quest.Percentage,
		Dialogue:   m.Dialogue.Percentage,
		Mechanics:  m.Mechanics.Percentage,
		Economy:    m.Economy.Percentage,
		World:      m.World.Percentage,
		Extensions: m.Extensions.Percentage,
	}
	s.Overall = (s.Quest + s.Dialogue + s.Mechanics + s.Economy + s.World + s.Extensions) / 6
	return s
}

// Summary is the percentage view of Metrics.
type Summary struct {
	Quest      float64 `json:"quest"`
	Dialogue   float64 `json:"dialogue"`
	Mechanics  float64 `json:"mechanics"`
	Economy    float64 `json:"economy"`
	World      float64 `json:"world"`
	Extensions float64 `json:"extensions"`
	Overall    float64 `json:"overall"`
}

// Dimensions returns the six percentages keyed by dimension name.
func (s Summary) Dimensions() map[string]float64 {
	return map[string]float64{
		"quest":      s.Quest,
		"dialogue":   s.Dialogue,
		"mechanics":  s.Mechanics,
		"economy":    s.Economy,
		"world":      s.World,
		"extensions": s.Extensions,
	}
}

// Snapshot is an immutable copy of Metrics taken after one update.
type Snapshot struct {
	Turn      int       `json:"turn"`
	Timestamp time.Time `json:"timestamp"`
	Metrics   Metrics   `json:"metrics"`
	Summary   Summary   `json:"summary"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	s.Metrics = s.Metrics.Clone()
	return s
}

// percentage implements min(covered/total, 1) with total 0 meaning full.
func percentage(covered, total int) float64 {
	if total <= 0 {
		return 1
	}
	p := float64(covered) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}
