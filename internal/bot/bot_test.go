package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/playtest/internal/sim"
)

func testBundle() sim.Bundle {
	return sim.Bundle{
		CurrentNode: "start",
		Choices: []sim.Choice{
			{ID: "c1", Text: "Continue the main quest", Target: "n1"},
			{ID: "c2", Text: "Explore the old path", Target: "n2"},
			{ID: "c3", Text: "Trade with the merchant", Target: "shop"},
			{ID: "c4", Text: "Talk to the guard", Target: "gate", DialogueID: "guard_intro"},
			{ID: "c5", Text: "Attack the bandits", Target: "ambush", Tags: []string{"risky"}},
			{ID: "c6", Text: "Rest at the campfire", Target: "camp"},
		},
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range AllModes {
		got, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ParseMode("speedrunner")
	require.Error(t, err)
	assert.True(t, IsUnknownMode(err))
	assert.Contains(t, err.Error(), "speedrunner")
}

func TestParseModes(t *testing.T) {
	all, err := ParseModes(nil)
	require.NoError(t, err)
	assert.Equal(t, AllModes, all)

	some, err := ParseModes([]string{"explorer", "risk_taker"})
	require.NoError(t, err)
	assert.Equal(t, []Mode{ModeExplorer, ModeRiskTaker}, some)

	_, err = ParseModes([]string{"explorer", "explorer"})
	assert.Error(t, err)

	_, err = ParseModes([]string{"explorer", "nope"})
	assert.True(t, IsUnknownMode(err))
}

func TestAllModesHaveSixPolicies(t *testing.T) {
	assert.Len(t, AllModes, 6)
	for _, m := range AllModes {
		p, err := NewPolicy(m, "seed")
		require.NoError(t, err)
		assert.Equal(t, m, p.Mode())
	}
}

func TestPolicies_PreferTheirSpecialty(t *testing.T) {
	tests := []struct {
		mode Mode
		want []string
	}{
		{ModeObjectiveSeeker, []string{"c1"}},
		{ModeEconomy, []string{"c3"}},
		{ModeRelationship, []string{"c4"}},
		{ModeRiskTaker, []string{"c5"}},
		{ModeSafety, []string{"c6"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			p, err := NewPolicy(tt.mode, "specialty")
			require.NoError(t, err)
			for i := 0; i < 20; i++ {
				d := p.Decide(testBundle(), newMemory(0, 0), sim.Context{})
				require.Equal(t, sim.DecisionChoice, d.Kind)
				assert.Contains(t, tt.want, d.ChoiceID)
				assert.NotEmpty(t, d.Reasoning)
				assert.GreaterOrEqual(t, d.Confidence, 0.0)
				assert.LessOrEqual(t, d.Confidence, 1.0)
			}
		})
	}
}

func TestObjectiveSeeker_StagnationFallsBackToCoverage(t *testing.T) {
	p, err := NewPolicy(ModeObjectiveSeeker, "stuck")
	require.NoError(t, err)

	mem := newMemory(0, 0)
	mem.VisitedNodes["n1"] = true
	d := p.Decide(testBundle(), mem, sim.Context{TurnsWithoutProgress: stagnationPatience})
	assert.NotEqual(t, "c1", d.ChoiceID, "stagnating seeker should pick an unvisited node")
}

func TestSafetyMaximizer_AvoidsRiskWhenNoSafeOption(t *testing.T) {
	p, err := NewPolicy(ModeSafety, "calm")
	require.NoError(t, err)

	b := sim.Bundle{Choices: []sim.Choice{
		{ID: "fight", Text: "Fight the troll"},
		{ID: "walk", Text: "Walk along the river"},
	}}
	for i := 0; i < 20; i++ {
		d := p.Decide(b, newMemory(0, 0), sim.Context{})
		assert.Equal(t, "walk", d.ChoiceID)
	}
}

func TestFallback_PrefersUnvisitedThenAny(t *testing.T) {
	p, err := NewPolicy(ModeEconomy, "fallback")
	require.NoError(t, err)

	b := sim.Bundle{Choices: []sim.Choice{
		{ID: "a", Text: "Go north"},
		{ID: "b", Text: "Go south"},
	}}
	mem := newMemory(0, 0)
	mem.VisitedNodes["a"] = true
	for i := 0; i < 20; i++ {
		assert.Equal(t, "b", p.Decide(b, mem, sim.Context{}).ChoiceID)
	}

	mem.VisitedNodes["b"] = true
	d := p.Decide(b, mem, sim.Context{})
	assert.Contains(t, []string{"a", "b"}, d.ChoiceID)
}

func TestFallback_NoChoices(t *testing.T) {
	p, err := NewPolicy(ModeRelationship, "quiet")
	require.NoError(t, err)

	d := p.Decide(sim.Bundle{}, newMemory(0, 0), sim.Context{})
	assert.Equal(t, sim.DecisionNone, d.Kind)

	d = p.Decide(sim.Bundle{AllowFreeText: true}, newMemory(0, 0), sim.Context{})
	assert.Equal(t, sim.DecisionText, d.Kind)
	assert.NotEmpty(t, d.Text)
}

func TestPoliciesDoNotMutateMemory(t *testing.T) {
	for _, m := range AllModes {
		p, err := NewPolicy(m, "readonly")
		require.NoError(t, err)
		mem := newMemory(0, 0)
		p.Decide(testBundle(), mem, sim.Context{})
		assert.Empty(t, mem.VisitedNodes, "mode %s", m)
		assert.Zero(t, mem.Turn, "mode %s", m)
	}
}

func TestEngine_DecideUpdatesMemory(t *testing.T) {
	e := NewEngine("run-1", 0, ModeRelationship, "seed", WithMaxTokens(500))
	assert.Equal(t, StateIdle, e.State())

	d, err := e.Decide(testBundle(), sim.Context{}, ModeRelationship)
	require.NoError(t, err)

	assert.Equal(t, StateRunning, e.State())
	mem := e.Memory()
	assert.Equal(t, 1, mem.Turn)
	assert.True(t, mem.Visited(d.NodeID))
	assert.True(t, mem.SawDialogue("guard_intro"))
	assert.Equal(t, EstimateTokens(d.Text), mem.Budget.OutputTokens)
	assert.Equal(t, 500, mem.Budget.MaxTokens)
}

func TestEngine_UnknownMode(t *testing.T) {
	e := NewEngine("run-1", 0, ModeExplorer, "seed")
	_, err := e.Decide(testBundle(), sim.Context{}, Mode("bogus"))
	require.Error(t, err)

	var ume *UnknownModeError
	require.ErrorAs(t, err, &ume)
	assert.Equal(t, Mode("bogus"), ume.Mode)
	assert.Equal(t, StateIdle, e.State())
}

func TestEngine_StartTurnForResume(t *testing.T) {
	e := NewEngine("run-1", 20, ModeExplorer, "seed")
	assert.Equal(t, 20, e.Memory().Turn)
	_, err := e.Decide(testBundle(), sim.Context{}, ModeExplorer)
	require.NoError(t, err)
	assert.Equal(t, 21, e.Memory().Turn)
}

func TestEngine_Observe(t *testing.T) {
	e := NewEngine("run-1", 0, ModeExplorer, "seed")

	e.Observe(sim.TurnResult{
		NewNodes:    []string{"n9"},
		SkillChecks: []sim.SkillCheck{{Skill: "stealth"}, {Skill: "stealth"}, {Skill: "lore"}},
		LootGained:  []sim.LootDrop{{Tier: "rare"}},
		WorldEvents: []sim.WorldEvent{{Type: "storm"}},
		ModHooks:    []string{"on_enter", "on_enter"},
		TokenUsage:  sim.TokenUsage{InputTokens: 100, OutputTokens: 20},
	})

	mem := e.Memory()
	assert.True(t, mem.Visited("n9"))
	assert.Equal(t, 2, mem.SkillChecks["stealth"])
	assert.Equal(t, 1, mem.SkillChecks["lore"])
	assert.True(t, mem.LootTiers["rare"])
	assert.True(t, mem.WorldEvents["storm"])
	assert.Equal(t, 2, mem.HookCounts["on_enter"])
	assert.Equal(t, 120, mem.Budget.Used())
	assert.Zero(t, mem.NoProgressTurns)

	e.Observe(sim.TurnResult{})
	e.Observe(sim.TurnResult{ObjectiveProgress: sim.ProgressPtr(0)})
	assert.Equal(t, 2, mem.NoProgressTurns)

	e.Observe(sim.TurnResult{ObjectiveProgress: sim.ProgressPtr(0.25)})
	assert.Zero(t, mem.NoProgressTurns)
	assert.Equal(t, 0.25, mem.LastProgress)
}

func TestEngine_ResetMemory(t *testing.T) {
	e := NewEngine("run-1", 5, ModeExplorer, "seed", WithMaxTokens(900))
	_, err := e.Decide(testBundle(), sim.Context{}, ModeExplorer)
	require.NoError(t, err)
	e.Observe(sim.TurnResult{NewNodes: []string{"x"}})

	e.ResetMemory()

	mem := e.Memory()
	assert.Equal(t, StateIdle, e.State())
	assert.Empty(t, mem.VisitedNodes)
	assert.Equal(t, 5, mem.Turn)
	assert.Equal(t, 900, mem.Budget.MaxTokens)
	assert.Zero(t, mem.Budget.Used())
}

func TestEngine_SameSeedSameDecisions(t *testing.T) {
	for _, mode := range AllModes {
		e1 := NewEngine("a", 0, mode, "replay-seed")
		e2 := NewEngine("b", 0, mode, "replay-seed")
		b := testBundle()
		b.AllowFreeText = true
		for i := 0; i < 30; i++ {
			d1, err := e1.Decide(b, sim.Context{}, mode)
			require.NoError(t, err)
			d2, err := e2.Decide(b, sim.Context{}, mode)
			require.NoError(t, err)
			require.Equal(t, d1, d2, "mode %s turn %d", mode, i)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 0, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))
}

func TestEngine_WithMemoryRestoresCheckpoint(t *testing.T) {
	saved := newMemory(0, 100)
	saved.VisitedNodes["n1"] = true
	saved.NoProgressTurns = 4

	e := NewEngine("run-1", 10, ModeExplorer, "seed", WithMaxTokens(100), WithMemory(saved))
	mem := e.Memory()
	assert.True(t, mem.Visited("n1"))
	assert.Equal(t, 4, mem.NoProgressTurns)
	assert.Equal(t, 10, mem.Turn)

	mem.VisitedNodes["n2"] = true
	assert.False(t, saved.Visited("n2"), "restored memory must not alias the checkpoint")

	e.ResetMemory()
	assert.Empty(t, e.Memory().VisitedNodes)
}

func TestEngine_WithStartNode(t *testing.T) {
	e := NewEngine("run-1", 0, ModeExplorer, "seed", WithStartNode("start"))
	assert.True(t, e.Memory().Visited("start"))
	e.ResetMemory()
	assert.True(t, e.Memory().Visited("start"))
}

func TestEngine_WithRNGStatesResumesSequence(t *testing.T) {
	b := testBundle()
	b.AllowFreeText = true
	for _, mode := range AllModes {
		e := NewEngine("run-1", 0, mode, "resume-seed")
		for i := 0; i < 10; i++ {
			_, err := e.Decide(b, sim.Context{Turn: i}, mode)
			require.NoError(t, err)
		}
		states := e.RNGStates()
		require.Len(t, states, len(AllModes))
		mem := e.Memory().Clone()

		resumed := NewEngine("run-1", 10, mode, "resume-seed", WithMemory(mem), WithRNGStates(states))
		for i := 10; i < 20; i++ {
			want, err := e.Decide(b, sim.Context{Turn: i}, mode)
			require.NoError(t, err)
			got, err := resumed.Decide(b, sim.Context{Turn: i}, mode)
			require.NoError(t, err)
			require.Equal(t, want, got, "mode %s turn %d", mode, i)
		}
	}
}
