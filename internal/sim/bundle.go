package sim

// Choice is one option the content engine offers the player this turn.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`

	// Target is the quest node the choice leads to, if known.
	Target string `json:"target,omitempty"`

	// DialogueID links the choice to a dialogue candidate.
	DialogueID string `json:"dialogue_id,omitempty"`

	Tags []string `json:"tags,omitempty"`
}

// NodeID returns the node the choice leads to, falling back to the choice id.
func (c Choice) NodeID() string {
	if c.Target != "" {
		return c.Target
	}
	return c.ID
}

// Edge is a directed quest-graph transition.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Key returns "from->to".
func (e Edge) Key() string {
	return e.From + "->" + e.To
}

// QuestGraph is the quest structure as declared by the content engine.
type QuestGraph struct {
	Nodes []string `json:"nodes,omitempty"`
	Edges []Edge   `json:"edges,omitempty"`
}

// Neighbors builds an adjacency list from the declared edges.
func (g QuestGraph) Neighbors() map[string][]string {
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	return adj
}

// DialogueCandidate is a line the engine could surface this turn.
type DialogueCandidate struct {
	ID      string `json:"id"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Economy describes economic content available in the bundle.
type Economy struct {
	LootTiers []string `json:"loot_tiers,omitempty"`
	Vendors   []string `json:"vendors,omitempty"`
}

// WorldState describes world-simulation content.
type WorldState struct {
	EventTypes []string `json:"event_types,omitempty"`
	Weather    string   `json:"weather,omitempty"`
}

// ModState describes the extension hooks registered in the bundle.
type ModState struct {
	Hooks []string `json:"hooks,omitempty"`
}

// Totals are the denominators a bundle declares for coverage.
// A zero field means "derive from the bundle's lists".
type Totals struct {
	Nodes              int `json:"nodes,omitempty"`
	Edges              int `json:"edges,omitempty"`
	DialogueCandidates int `json:"dialogue_candidates,omitempty"`
	LootTiers          int `json:"loot_tiers,omitempty"`
	EventTypes         int `json:"event_types,omitempty"`
	Hooks              int `json:"hooks,omitempty"`
}

// Bundle is the per-turn content payload produced by the content engine.
type Bundle struct {
	Turn          int                 `json:"turn"`
	CurrentNode   string              `json:"current_node,omitempty"`
	Choices       []Choice            `json:"choices,omitempty"`
	AllowFreeText bool                `json:"allow_free_text,omitempty"`
	QuestGraph    QuestGraph          `json:"quest_graph"`
	Dialogue      []DialogueCandidate `json:"dialogue,omitempty"`
	Economy       Economy             `json:"economy"`
	World         WorldState          `json:"world"`
	Mods          ModState            `json:"mods"`
	Totals        Totals              `json:"totals"`
}

// DeclaredTotals resolves coverage denominators for this bundle.
func (b Bundle) DeclaredTotals() Totals {
	t := b.Totals
	if t.Nodes == 0 {
		t.Nodes = len(b.QuestGraph.Nodes)
	}
	if t.Edges == 0 {
		t.Edges = len(b.QuestGraph.Edges)
	}
	if t.DialogueCandidates == 0 {
		t.DialogueCandidates = len(b.Dialogue)
	}
	if t.LootTiers == 0 {
		t.LootTiers = len(b.Economy.LootTiers)
	}
	if t.EventTypes == 0 {
		t.EventTypes = len(b.World.EventTypes)
	}
	if t.Hooks == 0 {
		t.Hooks = len(b.Mods.Hooks)
	}
	return t
}

// Clone returns a deep copy so checkpoints never alias live state.
func (b Bundle) Clone() Bundle {
	out := b
	out.Choices = make([]Choice, len(b.Choices))
	for i, c := range b.Choices {
		c.Tags = append([]string(nil), c.Tags...)
		out.Choices[i] = c
	}
	out.QuestGraph.Nodes = append([]string(nil), b.QuestGraph.Nodes...)
	out.QuestGraph.Edges = append([]Edge(nil), b.QuestGraph.Edges...)
	out.Dialogue = append([]DialogueCandidate(nil), b.Dialogue...)
	out.Economy.LootTiers = append([]string(nil), b.Economy.LootTiers...)
	out.Economy.Vendors = append([]string(nil), b.Economy.Vendors...)
	out.World.EventTypes = append([]string(nil), b.World.EventTypes...)
	out.Mods.Hooks = append([]string(nil), b.Mods.Hooks...)
	return out
}
