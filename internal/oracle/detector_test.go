package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/playtest/internal/sim"
)

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, 10, th.SoftLockTurns)
	assert.Equal(t, 0.95, th.BudgetFraction)
	assert.Equal(t, 5, th.MaxValidatorRetries)
	assert.Equal(t, 3, th.MaxFallbacks)
	assert.Equal(t, 5000.0, th.LatencyMS)
	assert.Equal(t, 10000.0, th.P95LatencyMS)
	assert.NotEmpty(t, th.SafetyKeywords)
}

func TestCheck_EmptyTurnRaisesNothing(t *testing.T) {
	d := NewDetector()
	r := d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}})
	assert.False(t, r.Any(), "flags: %v", r.Failures())
	assert.Equal(t, []string{}, d.FailureSummary().Failures)
}

func TestSoftLock_AfterTenStagnantTurns(t *testing.T) {
	d := NewDetector()
	ctx := sim.Context{}
	var r Result
	for i := 0; i < 10; i++ {
		r = d.Check(sim.Bundle{}, ctx, sim.TurnResult{})
		if i < 9 {
			require.False(t, r.SoftLock, "turn %d", i+1)
		}
		ctx.Turn++
		ctx.TurnsWithoutProgress = r.Details.StalledTurns
	}
	assert.True(t, r.SoftLock)
	assert.Equal(t, 10, r.Details.StalledTurns)
	assert.True(t, r.ShouldTerminate())
}

func TestSoftLock_ProgressResetsStall(t *testing.T) {
	d := NewDetector()
	r := d.Check(sim.Bundle{}, sim.Context{TurnsWithoutProgress: 9, ObjectiveProgress: 0.2},
		sim.TurnResult{ObjectiveProgress: sim.ProgressPtr(0.3)})
	assert.False(t, r.SoftLock)
	assert.Zero(t, r.Details.StalledTurns)

	r = d.Check(sim.Bundle{}, sim.Context{TurnsWithoutProgress: 9, ObjectiveProgress: 0.3},
		sim.TurnResult{ObjectiveProgress: sim.ProgressPtr(0.3)})
	assert.True(t, r.SoftLock)
}

func TestSoftLock_UnreachableNodes(t *testing.T) {
	g := sim.QuestGraph{
		Nodes: []string{"a", "b", "c"},
		Edges: []sim.Edge{{From: "a", To: "b"}},
	}
	b := sim.Bundle{QuestGraph: g}
	d := NewDetector()

	// From a, b is still new.
	r := d.Check(b, sim.Context{CurrentNode: "a", VisitedNodes: map[string]bool{"a": true}}, sim.TurnResult{})
	assert.False(t, r.SoftLock)

	// From b, nothing is reachable but c is unvisited.
	r = d.Check(b, sim.Context{CurrentNode: "b", VisitedNodes: map[string]bool{"a": true, "b": true}}, sim.TurnResult{NewNodes: []string{"b"}})
	assert.True(t, r.SoftLock)
	assert.True(t, r.Details.Unreachable)

	// Everything explored is completion, not a lock.
	r = d.Check(b, sim.Context{CurrentNode: "b", VisitedNodes: map[string]bool{"a": true, "b": true, "c": true}}, sim.TurnResult{NewNodes: []string{"b"}})
	assert.False(t, r.SoftLock)
}

func TestUnreachable_TraversesVisitedNodes(t *testing.T) {
	g := sim.QuestGraph{
		Nodes: []string{"a", "b", "c"},
		Edges: []sim.Edge{{From: "a", To: "b"}, {From: "b", To: "c"}},
	}
	assert.False(t, unreachable(g, "a", map[string]bool{"a": true, "b": true}, nil))
	assert.False(t, unreachable(g, "zz", nil, nil))
	assert.False(t, unreachable(sim.QuestGraph{}, "a", nil, nil))
}

func TestBudgetViolation(t *testing.T) {
	d := NewDetector()
	r := d.Check(sim.Bundle{}, sim.Context{Budget: sim.BudgetUsage{MaxTokens: 1000}},
		sim.TurnResult{NewNodes: []string{"x"}, TokenUsage: sim.TokenUsage{InputTokens: 2000}})
	assert.True(t, r.BudgetViolation)
	assert.Equal(t, 2000, r.Details.TokensUsed)
	assert.True(t, r.ShouldTerminate())

	r = d.Check(sim.Bundle{}, sim.Context{Budget: sim.BudgetUsage{InputTokens: 900, MaxTokens: 1000}},
		sim.TurnResult{NewNodes: []string{"x"}, TokenUsage: sim.TokenUsage{OutputTokens: 40}})
	assert.False(t, r.BudgetViolation, "940 is under 950")

	r = d.Check(sim.Bundle{}, sim.Context{Budget: sim.BudgetUsage{InputTokens: 900, MaxTokens: 1000}},
		sim.TurnResult{NewNodes: []string{"x"}, TokenUsage: sim.TokenUsage{OutputTokens: 51}})
	assert.True(t, r.BudgetViolation)
}

func TestBudgetViolation_RepairLoopWithoutCeiling(t *testing.T) {
	d := NewDetector()
	r := d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, TokenUsage: sim.TokenUsage{InputTokens: 16001}})
	assert.True(t, r.BudgetViolation)

	r = d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, TokenUsage: sim.TokenUsage{InputTokens: 16000}})
	assert.False(t, r.BudgetViolation)
}

func TestValidatorRetries(t *testing.T) {
	d := NewDetector()
	progress := []string{"x"}

	r := d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: progress, ValidatorRetries: 6})
	assert.True(t, r.ValidatorRetries)

	d.Reset()
	for i := 0; i < 2; i++ {
		r = d.Check(sim.Bundle{}, sim.Context{Turn: i}, sim.TurnResult{NewNodes: progress, ValidatorRetries: 5})
		assert.False(t, r.ValidatorRetries)
	}
	r = d.Check(sim.Bundle{}, sim.Context{Turn: 2}, sim.TurnResult{NewNodes: progress, ValidatorRetries: 1})
	assert.True(t, r.ValidatorRetries, "cumulative 11 > 10")
	assert.Equal(t, 11, r.Details.CumulativeRetries)
}

func TestFallbackEngagements(t *testing.T) {
	d := NewDetector()
	assert.False(t, d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, FallbackEngagements: 3}).FallbackEngagement)
	assert.True(t, d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, FallbackEngagements: 4}).FallbackEngagement)
	assert.True(t, d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, FallbackRuleViolation: true}).FallbackEngagement)
}

func TestSafetyViolation(t *testing.T) {
	d := NewDetector(WithThresholds(Thresholds{SafetyKeywords: []string{"Gore", "  "}, MaxValidatorRetries: 5, MaxFallbacks: 3, LatencyMS: 5000, P95LatencyMS: 10000, AssemblerTimeMS: 2000}))

	r := d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, ContentFlags: []string{"mild", "EXTREME-GORE"}})
	assert.True(t, r.SafetyViolation)
	assert.Equal(t, []string{"EXTREME-GORE"}, r.Details.SafetyMatches)

	assert.False(t, d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, ContentFlags: []string{"mild"}}).SafetyViolation)
	assert.True(t, d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, ConsentViolation: true}).SafetyViolation)
	assert.True(t, d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, AgeRatingViolation: true}).SafetyViolation)
}

func TestPerformanceViolation(t *testing.T) {
	d := NewDetector()
	assert.True(t, d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, LatencyMS: 5001}).Performance)

	d.Reset()
	assert.True(t, d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, AssemblerTimeMS: 2500}).Performance)

	d.Reset()
	assert.False(t, d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, LatencyMS: 4000}).Performance)
}

func TestPerformanceViolation_P95UsesHistory(t *testing.T) {
	th := DefaultThresholds()
	th.LatencyMS = 50000
	d := NewDetector(WithThresholds(th))

	for i := 0; i < 19; i++ {
		r := d.Check(sim.Bundle{}, sim.Context{Turn: i}, sim.TurnResult{NewNodes: []string{"x"}, LatencyMS: 100})
		require.False(t, r.Performance)
	}
	// 20 samples: nearest-rank P95 is the 19th value, still 100.
	r := d.Check(sim.Bundle{}, sim.Context{Turn: 19}, sim.TurnResult{NewNodes: []string{"x"}, LatencyMS: 20000})
	assert.False(t, r.Performance)
	assert.Equal(t, 100.0, r.Details.P95LatencyMS)

	// 21 samples: P95 is the 20th value.
	r = d.Check(sim.Bundle{}, sim.Context{Turn: 20}, sim.TurnResult{NewNodes: []string{"x"}, LatencyMS: 20000})
	assert.True(t, r.Performance)
	assert.Equal(t, 20000.0, r.Details.P95LatencyMS)
}

func TestIntegrityViolation(t *testing.T) {
	d := NewDetector()
	r := d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, StateDivergence: true, DataCorruption: true})
	assert.True(t, r.Integrity)
	assert.Equal(t, []string{"state_divergence", "data_corruption"}, r.Details.IntegrityViolation)
	assert.False(t, r.ShouldTerminate())
}

func TestChecksAreIndependent(t *testing.T) {
	d := NewDetector()
	r := d.Check(sim.Bundle{}, sim.Context{TurnsWithoutProgress: 9, Budget: sim.BudgetUsage{MaxTokens: 10}}, sim.TurnResult{
		TokenUsage:          sim.TokenUsage{InputTokens: 100},
		ValidatorRetries:    9,
		FallbackEngagements: 9,
		ConsentViolation:    true,
		LatencyMS:           9000,
		InvalidTransition:   true,
	})
	assert.Len(t, r.Failures(), 7)
	for _, c := range Categories {
		assert.True(t, r.Flags()[c], c)
	}

	// Setting one signal raises only its own category.
	d.Reset()
	r = d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{NewNodes: []string{"x"}, ActsSchemaViolation: true})
	assert.Equal(t, []string{CategoryIntegrity}, r.Failures())
}

func TestFailureSummary_CriticalSubset(t *testing.T) {
	d := NewDetector()
	d.Check(sim.Bundle{}, sim.Context{}, sim.TurnResult{
		NewNodes:            []string{"x"},
		FallbackEngagements: 5,
		ConsentViolation:    true,
		DataCorruption:      true,
	})

	s := d.FailureSummary()
	assert.Equal(t, []string{CategoryFallbackEngagement, CategorySafetyViolation, CategoryIntegrity}, s.Failures)
	assert.Equal(t, []string{CategorySafetyViolation, CategoryIntegrity}, s.Critical)
	assert.True(t, IsCritical(CategoryBudgetViolation))
	assert.False(t, IsCritical(CategoryPerformance))
}

func TestHistoryAppendOnly(t *testing.T) {
	d := NewDetector()
	for i := 0; i < 3; i++ {
		d.Check(sim.Bundle{}, sim.Context{Turn: i}, sim.TurnResult{NewNodes: []string{"x"}})
	}
	h := d.History()
	require.Len(t, h, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{h[0].Turn, h[1].Turn, h[2].Turn})

	h[0].Turn = 99
	assert.Equal(t, 1, d.History()[0].Turn)
}

func TestP95(t *testing.T) {
	assert.Equal(t, 0.0, P95(nil))
	assert.Equal(t, 7.0, P95([]float64{7}))
	assert.Equal(t, 10.0, P95([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
}
