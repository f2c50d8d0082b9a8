package bot

import (
	"github.com/roach88/playtest/internal/rng"
	"github.com/roach88/playtest/internal/sim"
)

var (
	objectiveKeywords    = []string{"quest", "objective", "main", "continue", "advance", "proceed", "goal", "mission"}
	exploreKeywords      = []string{"explore", "search", "investigate", "look", "wander", "examine", "path"}
	economyKeywords      = []string{"buy", "sell", "trade", "craft", "loot", "gold", "shop", "vendor", "merchant", "coin", "barter"}
	relationshipKeywords = []string{"talk", "ask", "help", "befriend", "romance", "persuade", "comfort", "thank", "greet"}
	riskKeywords         = []string{"attack", "fight", "risk", "gamble", "steal", "danger", "jump", "charge", "provoke", "risky"}
	safetyKeywords       = []string{"rest", "retreat", "flee", "heal", "safe", "wait", "hide", "defend", "negotiate"}
)

// stagnationPatience is how many no-progress turns an objective seeker
// tolerates before it abandons objective keywords for unvisited nodes.
const stagnationPatience = 3

// exploreFreeTextChance is the probability an explorer speaks instead of
// choosing when free text is allowed.
const exploreFreeTextChance = 0.15

type objectiveSeeker struct{ basePolicy }

func (p *objectiveSeeker) Mode() Mode { return ModeObjectiveSeeker }

func (p *objectiveSeeker) Decide(bundle sim.Bundle, mem *Memory, ctx sim.Context) sim.Decision {
	if ctx.TurnsWithoutProgress < stagnationPatience {
		if hits := matching(bundle.Choices, objectiveKeywords); len(hits) > 0 {
			return p.choosePreferUnseen(hits, mem, "objective: advancing main goal", 0.8)
		}
	}
	return p.fallback(bundle, mem, []string{"What should I do next?", "Where is my objective?"})
}

type explorer struct{ basePolicy }

func (p *explorer) Mode() Mode { return ModeExplorer }

func (p *explorer) Decide(bundle sim.Bundle, mem *Memory, _ sim.Context) sim.Decision {
	utterances := []string{"I search the area carefully.", "I look for hidden passages.", "What lies beyond here?"}
	if bundle.AllowFreeText && p.rng.NextBoolean(exploreFreeTextChance) {
		text, _ := rng.Choose(p.rng, utterances)
		return sim.TextDecision(text, "exploration: probing free text", 0.5)
	}
	if len(bundle.Choices) == 0 {
		return p.fallback(bundle, mem, utterances)
	}

	weighted := make([]rng.Weighted[sim.Choice], 0, len(bundle.Choices))
	for _, c := range bundle.Choices {
		w := 0.5
		if !mem.Visited(c.NodeID()) {
			w = 3
		}
		w += 2 * float64(keywordHits(c, exploreKeywords))
		weighted = append(weighted, rng.Weighted[sim.Choice]{Item: c, Weight: w})
	}
	c, _ := rng.WeightedChoose(p.rng, weighted)
	return sim.ChooseDecision(c, "exploration: novelty-weighted choice", 0.6)
}

type economyFocused struct{ basePolicy }

func (p *economyFocused) Mode() Mode { return ModeEconomy }

func (p *economyFocused) Decide(bundle sim.Bundle, mem *Memory, _ sim.Context) sim.Decision {
	if hits := matching(bundle.Choices, economyKeywords); len(hits) > 0 {
		return p.choosePreferUnseen(hits, mem, "economy: trade or loot opportunity", 0.75)
	}
	return p.fallback(bundle, mem, []string{"What are you selling?", "I'd like to trade."})
}

type relationshipFocused struct{ basePolicy }

func (p *relationshipFocused) Mode() Mode { return ModeRelationship }

func (p *relationshipFocused) Decide(bundle sim.Bundle, mem *Memory, _ sim.Context) sim.Decision {
	var fresh []sim.Choice
	for _, c := range bundle.Choices {
		if c.DialogueID != "" && !mem.SawDialogue(c.DialogueID) {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) > 0 {
		c, _ := rng.Choose(p.rng, fresh)
		return sim.ChooseDecision(c, "relationship: unseen dialogue", 0.8)
	}
	if hits := matching(bundle.Choices, relationshipKeywords); len(hits) > 0 {
		return p.choosePreferUnseen(hits, mem, "relationship: social choice", 0.65)
	}
	return p.fallback(bundle, mem, []string{"Tell me about yourself.", "How can I help you?"})
}

type riskTaker struct{ basePolicy }

func (p *riskTaker) Mode() Mode { return ModeRiskTaker }

func (p *riskTaker) Decide(bundle sim.Bundle, mem *Memory, _ sim.Context) sim.Decision {
	hits := matching(bundle.Choices, riskKeywords)
	if len(hits) > 0 {
		weighted := make([]rng.Weighted[sim.Choice], 0, len(hits))
		for _, c := range hits {
			weighted = append(weighted, rng.Weighted[sim.Choice]{Item: c, Weight: float64(keywordHits(c, riskKeywords))})
		}
		c, _ := rng.WeightedChoose(p.rng, weighted)
		return sim.ChooseDecision(c, "risk: highest-danger option", 0.7)
	}
	return p.fallback(bundle, mem, []string{"I attack!", "Let's do something reckless."})
}

type safetyMaximizer struct{ basePolicy }

func (p *safetyMaximizer) Mode() Mode { return ModeSafety }

func (p *safetyMaximizer) Decide(bundle sim.Bundle, mem *Memory, _ sim.Context) sim.Decision {
	if hits := matching(bundle.Choices, safetyKeywords); len(hits) > 0 {
		return p.choosePreferUnseen(hits, mem, "safety: protective option", 0.8)
	}
	if calm := excluding(bundle.Choices, riskKeywords); len(calm) > 0 {
		return p.choosePreferUnseen(calm, mem, "safety: avoiding risky options", 0.6)
	}
	return p.fallback(bundle, mem, []string{"I wait and observe.", "I keep my distance."})
}
