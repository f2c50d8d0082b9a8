package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/playtest/internal/rng"
	"github.com/roach88/playtest/internal/sim"
)

var (
	choiceTemplates = []string{
		"Continue the main quest toward %s",
		"Explore the path to %s",
		"Trade with the merchant near %s",
		"Talk to the stranger at %s",
		"Attack the guards blocking %s",
		"Rest, then travel to %s",
		"Search the ruins of %s",
		"Sneak past the patrol into %s",
	}
	speakers     = []string{"innkeeper", "guard", "scholar", "smuggler", "priest"}
	skills       = []string{"lore", "stealth", "athletics", "persuasion", "perception", "arcana"}
	conditions   = []string{"tired", "inspired", "poisoned", "hidden"}
	lootTiers    = []string{"common", "uncommon", "rare", "epic"}
	vendors      = []string{"smith", "alchemist", "fence"}
	eventTypes   = []string{"storm", "raid", "festival", "eclipse"}
	weatherKinds = []string{"clear", "rain", "fog", "snow"}
	modHooks     = []string{"on_enter", "on_dialogue", "on_loot", "on_rest"}
)

// SyntheticOption configures a Synthetic engine.
type SyntheticOption func(*Synthetic)

// WithGraphSize sets the number of quest nodes per scenario.
func WithGraphSize(n int) SyntheticOption {
	return func(s *Synthetic) {
		if n > 1 {
			s.nodes = n
		}
	}
}

// WithLatency sets the reported per-turn latency range in milliseconds.
// The engine reports these values; it does not sleep.
func WithLatency(minMS, maxMS int) SyntheticOption {
	return func(s *Synthetic) {
		s.minLatency, s.maxLatency = minMS, maxMS
	}
}

// Synthetic is a deterministic in-process content engine.
//
// Every value it produces is derived from the scenario seed, the turn and
// the decision, so it holds no mutable state and is safe for concurrent use.
type Synthetic struct {
	nodes      int
	minLatency int
	maxLatency int
}

var _ Engine = (*Synthetic)(nil)

// NewSynthetic creates a synthetic engine.
func NewSynthetic(opts ...SyntheticOption) *Synthetic {
	s := &Synthetic{nodes: 12, minLatency: 20, maxLatency: 400}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func nodeName(i int) string {
	return fmt.Sprintf("node_%02d", i)
}

// Start builds a quest graph for the scenario: a ring through every node so
// each node stays reachable, plus seeded shortcut edges.
func (s *Synthetic) Start(ctx context.Context, scenario sim.Scenario) (sim.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return sim.Bundle{}, err
	}
	r := rng.New("start:" + scenario.Seed)

	g := sim.QuestGraph{}
	for i := 0; i < s.nodes; i++ {
		g.Nodes = append(g.Nodes, nodeName(i))
	}
	edges := make(map[string]bool)
	addEdge := func(from, to string) {
		e := sim.Edge{From: from, To: to}
		if from != to && !edges[e.Key()] {
			edges[e.Key()] = true
			g.Edges = append(g.Edges, e)
		}
	}
	for i := 0; i < s.nodes; i++ {
		addEdge(nodeName(i), nodeName((i+1)%s.nodes))
	}
	for i := 0; i < s.nodes/2; i++ {
		addEdge(nodeName(r.NextInt(0, s.nodes-1)), nodeName(r.NextInt(0, s.nodes-1)))
	}

	var dialogue []sim.DialogueCandidate
	for i := 0; i < s.nodes/2; i++ {
		speaker, _ := rng.Choose(r, speakers)
		dialogue = append(dialogue, sim.DialogueCandidate{
			ID:      fmt.Sprintf("dlg_%02d", i),
			Speaker: speaker,
			Text:    fmt.Sprintf("%s has something to say", speaker),
		})
	}

	weather, _ := rng.Choose(r, weatherKinds)
	b := sim.Bundle{
		CurrentNode:   nodeName(0),
		AllowFreeText: !scenario.Toggles["disable_free_text"],
		QuestGraph:    g,
		Dialogue:      dialogue,
		Economy:       sim.Economy{LootTiers: append([]string(nil), lootTiers...), Vendors: append([]string(nil), vendors...)},
		World:         sim.WorldState{EventTypes: append([]string(nil), eventTypes...), Weather: weather},
		Mods:          sim.ModState{Hooks: append([]string(nil), modHooks...)},
	}
	b.Choices = s.choicesFor(b, r)
	return b, nil
}

// choicesFor offers one choice per outgoing edge of the current node.
func (s *Synthetic) choicesFor(b sim.Bundle, r *rng.RNG) []sim.Choice {
	var out []sim.Choice
	for _, to := range b.QuestGraph.Neighbors()[b.CurrentNode] {
		tmpl, _ := rng.Choose(r, choiceTemplates)
		c := sim.Choice{
			ID:     fmt.Sprintf("go_%s", to),
			Text:   fmt.Sprintf(tmpl, to),
			Target: to,
		}
		if strings.HasPrefix(tmpl, "Talk") && len(b.Dialogue) > 0 {
			d, _ := rng.Choose(r, b.Dialogue)
			c.DialogueID = d.ID
		}
		out = append(out, c)
	}
	return out
}

// Turn resolves decision against bundle and returns the next bundle.
func (s *Synthetic) Turn(ctx context.Context, bundle sim.Bundle, simCtx sim.Context, decision sim.Decision) (sim.TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return sim.TurnResult{}, err
	}
	r := rng.New(fmt.Sprintf("turn:%s:%d:%s:%s", simCtx.Seed, simCtx.Turn, decision.ChoiceID, decision.Text))

	var res sim.TurnResult
	next := bundle.Clone()
	next.Turn = bundle.Turn + 1

	switch decision.Kind {
	case sim.DecisionChoice:
		if !offered(bundle, decision.ChoiceID) {
			res.InvalidTransition = true
			break
		}
		next.CurrentNode = decision.NodeID
		if !simCtx.VisitedNodes[decision.NodeID] {
			res.NewNodes = []string{decision.NodeID}
		}
		s.resolveChoice(r, decision, &res)
	case sim.DecisionText:
		res.TokenUsage.InputTokens += 50
		if r.NextBoolean(0.3) {
			res.Conditions = append(res.Conditions, pick(r, conditions))
		}
	}

	visited := len(simCtx.VisitedNodes)
	if len(res.NewNodes) > 0 {
		visited++
	}
	if total := len(bundle.QuestGraph.Nodes); total > 0 {
		progress := float64(visited) / float64(total)
		if progress > 1 {
			progress = 1
		}
		res.ObjectiveProgress = sim.ProgressPtr(progress)
	}

	if r.NextBoolean(0.2) {
		res.WorldEvents = append(res.WorldEvents, sim.WorldEvent{Type: pick(r, eventTypes), ID: fmt.Sprintf("evt_%d", next.Turn)})
	}
	if r.NextBoolean(0.1) {
		w := pick(r, weatherKinds)
		res.WeatherChanges = append(res.WeatherChanges, w)
		next.World.Weather = w
	}
	if r.NextBoolean(0.25) {
		res.ModHooks = append(res.ModHooks, pick(r, modHooks))
	}

	res.TokenUsage.InputTokens += r.NextInt(150, 450)
	res.TokenUsage.OutputTokens += r.NextInt(40, 120)
	res.LatencyMS = float64(r.NextInt(s.minLatency, s.maxLatency))
	res.AssemblerTimeMS = float64(r.NextInt(1, 50))

	next.Choices = s.choicesFor(next, r)
	res.UpdatedBundle = &next
	return res, nil
}

func (s *Synthetic) resolveChoice(r *rng.RNG, d sim.Decision, res *sim.TurnResult) {
	text := strings.ToLower(d.Text)
	if r.NextBoolean(0.5) || strings.Contains(text, "sneak") || strings.Contains(text, "search") {
		res.SkillChecks = append(res.SkillChecks, sim.SkillCheck{Skill: pick(r, skills), Success: r.NextBoolean(0.6)})
	}
	if strings.Contains(text, "trade") {
		res.VendorInteractions = append(res.VendorInteractions, sim.VendorInteraction{
			Vendor: pick(r, vendors),
			Kind:   pick(r, []string{"buy", "sell", "browse"}),
			Amount: r.NextInt(1, 50),
		})
		res.ResourceChanges = map[string]int{"gold": -r.NextInt(1, 20)}
	}
	if strings.Contains(text, "attack") || strings.Contains(text, "ruins") || r.NextBoolean(0.15) {
		res.LootGained = append(res.LootGained, sim.LootDrop{ID: fmt.Sprintf("item_%d", r.NextInt(1, 999)), Tier: pick(r, lootTiers)})
	}
	if r.NextBoolean(0.1) {
		res.CraftAttempts = append(res.CraftAttempts, sim.CraftAttempt{Recipe: pick(r, []string{"potion", "rope", "torch"}), Success: true})
	}
}

func offered(b sim.Bundle, choiceID string) bool {
	for _, c := range b.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}

func pick(r *rng.RNG, items []string) string {
	v, _ := rng.Choose(r, items)
	return v
}
