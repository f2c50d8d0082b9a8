package bot

import (
	"strings"

	"github.com/roach88/playtest/internal/rng"
	"github.com/roach88/playtest/internal/sim"
)

// Policy produces one decision per turn.
//
// Implementations must not mutate mem. They may advance their own RNG.
type Policy interface {
	Mode() Mode
	Decide(bundle sim.Bundle, mem *Memory, ctx sim.Context) sim.Decision
}

// NewPolicy constructs the policy for mode with its own RNG seeded from seed.
func NewPolicy(mode Mode, seed string) (Policy, error) {
	base := basePolicy{rng: rng.New(seed)}
	switch mode {
	case ModeObjectiveSeeker:
		return &objectiveSeeker{base}, nil
	case ModeExplorer:
		return &explorer{base}, nil
	case ModeEconomy:
		return &economyFocused{base}, nil
	case ModeRelationship:
		return &relationshipFocused{base}, nil
	case ModeRiskTaker:
		return &riskTaker{base}, nil
	case ModeSafety:
		return &safetyMaximizer{base}, nil
	default:
		return nil, &UnknownModeError{Mode: mode}
	}
}

// basePolicy carries the RNG and the shared coverage-seeking fallback.
type basePolicy struct {
	rng *rng.RNG
}

// fallback picks uniformly among choices whose node is unvisited, then among
// all choices. With no choices it speaks if free text is allowed, else passes.
func (p basePolicy) fallback(bundle sim.Bundle, mem *Memory, utterances []string) sim.Decision {
	if unseen := unvisited(bundle.Choices, mem); len(unseen) > 0 {
		c, _ := rng.Choose(p.rng, unseen)
		return sim.ChooseDecision(c, "coverage: unvisited choice", 0.5)
	}
	if c, ok := rng.Choose(p.rng, bundle.Choices); ok {
		return sim.ChooseDecision(c, "coverage: all choices visited", 0.3)
	}
	if bundle.AllowFreeText && len(utterances) > 0 {
		text, _ := rng.Choose(p.rng, utterances)
		return sim.TextDecision(text, "no choices offered", 0.4)
	}
	return sim.NoDecision("no choices offered")
}

// choosePreferUnseen picks among candidates, preferring unvisited ones.
func (p basePolicy) choosePreferUnseen(candidates []sim.Choice, mem *Memory, reasoning string, confidence float64) sim.Decision {
	if unseen := unvisited(candidates, mem); len(unseen) > 0 {
		c, _ := rng.Choose(p.rng, unseen)
		return sim.ChooseDecision(c, reasoning, confidence)
	}
	c, _ := rng.Choose(p.rng, candidates)
	return sim.ChooseDecision(c, reasoning+" (revisit)", confidence*0.8)
}

// rngState and restoreRNG let the engine checkpoint a policy's position in
// its random sequence.
func (p basePolicy) rngState() uint32 { return p.rng.State() }

func (p basePolicy) restoreRNG(state uint32) { p.rng.Restore(state) }

// seeded is implemented by every policy built on basePolicy.
type seeded interface {
	rngState() uint32
	restoreRNG(state uint32)
}

func unvisited(choices []sim.Choice, mem *Memory) []sim.Choice {
	var out []sim.Choice
	for _, c := range choices {
		if !mem.Visited(c.NodeID()) {
			out = append(out, c)
		}
	}
	return out
}

// keywordHits counts how many keywords appear in the choice text or tags.
func keywordHits(c sim.Choice, keywords []string) int {
	haystack := strings.ToLower(c.Text + " " + strings.Join(c.Tags, " "))
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			hits++
		}
	}
	return hits
}

// matching returns the choices that hit at least one keyword, in order.
func matching(choices []sim.Choice, keywords []string) []sim.Choice {
	var out []sim.Choice
	for _, c := range choices {
		if keywordHits(c, keywords) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// excluding returns the choices that hit none of the keywords.
func excluding(choices []sim.Choice, keywords []string) []sim.Choice {
	var out []sim.Choice
	for _, c := range choices {
		if keywordHits(c, keywords) == 0 {
			out = append(out, c)
		}
	}
	return out
}
