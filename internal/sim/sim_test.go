package sim

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleDeclaredTotals_DerivesFromLists(t *testing.T) {
	b := Bundle{
		QuestGraph: QuestGraph{
			Nodes: []string{"a", "b", "c"},
			Edges: []Edge{{From: "a", To: "b"}},
		},
		Dialogue: []DialogueCandidate{{ID: "d1"}, {ID: "d2"}},
		Economy:  Economy{LootTiers: []string{"common"}},
		World:    WorldState{EventTypes: []string{"storm", "raid"}},
		Mods:     ModState{Hooks: []string{"on_turn"}},
	}

	got := b.DeclaredTotals()
	assert.Equal(t, Totals{Nodes: 3, Edges: 1, DialogueCandidates: 2, LootTiers: 1, EventTypes: 2, Hooks: 1}, got)
}

func TestBundleDeclaredTotals_ExplicitWins(t *testing.T) {
	b := Bundle{
		QuestGraph: QuestGraph{Nodes: []string{"a"}},
		Totals:     Totals{Nodes: 40},
	}
	assert.Equal(t, 40, b.DeclaredTotals().Nodes)
}

func TestBundleClone_DoesNotAlias(t *testing.T) {
	b := Bundle{
		Choices:    []Choice{{ID: "c1", Tags: []string{"x"}}},
		QuestGraph: QuestGraph{Nodes: []string{"a"}},
	}
	c := b.Clone()
	c.Choices[0].Tags[0] = "y"
	c.QuestGraph.Nodes[0] = "z"

	assert.Equal(t, "x", b.Choices[0].Tags[0])
	assert.Equal(t, "a", b.QuestGraph.Nodes[0])
}

func TestChoiceNodeID(t *testing.T) {
	assert.Equal(t, "n2", Choice{ID: "c1", Target: "n2"}.NodeID())
	assert.Equal(t, "c1", Choice{ID: "c1"}.NodeID())
}

func TestTurnResult_MissingFieldsDecodeToZero(t *testing.T) {
	var r TurnResult
	require.NoError(t, json.Unmarshal([]byte(`{"latency_ms": 12}`), &r))

	_, ok := r.Progress()
	assert.False(t, ok)
	assert.Equal(t, 12.0, r.LatencyMS)
	assert.Zero(t, r.TokenUsage.Total())
	assert.Nil(t, r.UpdatedBundle)
}

func TestTurnResult_DecodesEngineFieldNames(t *testing.T) {
	var r TurnResult
	require.NoError(t, json.Unmarshal([]byte(`{
		"objective_progress": 0.5,
		"assembler_time": 80,
		"token_usage": {"input_tokens": 10, "output_tokens": 5},
		"updatedBundle": {"turn": 3}
	}`), &r))

	p, ok := r.Progress()
	require.True(t, ok)
	assert.Equal(t, 0.5, p)
	assert.Equal(t, 80.0, r.AssemblerTimeMS)
	assert.Equal(t, 15, r.TokenUsage.Total())
	require.NotNil(t, r.UpdatedBundle)
	assert.Equal(t, 3, r.UpdatedBundle.Turn)
}

func TestScenarioIdentityAndFingerprint(t *testing.T) {
	s := Scenario{World: "w", Adventure: "a", Locale: "en", Seed: "w:a:en:::0"}
	assert.Equal(t, "w:a:en::", s.Identity())

	other := s
	other.Toggles = map[string]bool{"fog": true}
	assert.Equal(t, s.Identity(), other.Identity())
	assert.NotEqual(t, s.Fingerprint(), other.Fingerprint())
	assert.Equal(t, s.Fingerprint(), s.Fingerprint())
}

func TestDecisionConstructorsClampConfidence(t *testing.T) {
	d := ChooseDecision(Choice{ID: "c", Target: "n", DialogueID: "d"}, "why", 1.7)
	assert.Equal(t, DecisionChoice, d.Kind)
	assert.Equal(t, "n", d.NodeID)
	assert.Equal(t, "d", d.DialogueID)
	assert.Equal(t, 1.0, d.Confidence)

	assert.Equal(t, 0.0, TextDecision("hello", "why", -1).Confidence)
	assert.Equal(t, DecisionNone, NoDecision("nothing").Kind)
}

func TestContextClone(t *testing.T) {
	c := Context{VisitedNodes: map[string]bool{"a": true}, Toggles: map[string]bool{"fog": true}}
	d := c.Clone()
	d.VisitedNodes["b"] = true
	d.Toggles["fog"] = false
	assert.Len(t, c.VisitedNodes, 1)
	assert.True(t, c.Toggles["fog"])
}

func TestMadeProgress(t *testing.T) {
	assert.False(t, MadeProgress(TurnResult{}, 0))
	assert.True(t, MadeProgress(TurnResult{NewNodes: []string{"n"}}, 0))
	assert.True(t, MadeProgress(TurnResult{ObjectiveProgress: ProgressPtr(0.3)}, 0.2))
	assert.False(t, MadeProgress(TurnResult{ObjectiveProgress: ProgressPtr(0.2)}, 0.2))
}
