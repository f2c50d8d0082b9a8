package testutil

import (
	"context"
	"strconv"
	"sync"

	"github.com/roach88/playtest/internal/sim"
)

// TurnFunc produces the result of one scripted turn.
type TurnFunc func(simCtx sim.Context, decision sim.Decision) (sim.TurnResult, error)

// ScriptedEngine is a content engine whose turn results come from a function.
//
// Thread-safety: call counters are mutex-protected; Script must be pure.
type ScriptedEngine struct {
	Bundle   sim.Bundle
	StartErr error
	Script   TurnFunc

	mu     sync.Mutex
	starts int
	turns  int
}

// NewScriptedEngine creates an engine that opens with bundle and resolves
// turns with fn. A nil fn reports progress on every turn.
func NewScriptedEngine(bundle sim.Bundle, fn TurnFunc) *ScriptedEngine {
	if fn == nil {
		fn = AlwaysProgress
	}
	return &ScriptedEngine{Bundle: bundle, Script: fn}
}

// Start returns a clone of the opening bundle.
func (e *ScriptedEngine) Start(ctx context.Context, _ sim.Scenario) (sim.Bundle, error) {
	e.mu.Lock()
	e.starts++
	e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return sim.Bundle{}, err
	}
	if e.StartErr != nil {
		return sim.Bundle{}, e.StartErr
	}
	return e.Bundle.Clone(), nil
}

// Turn delegates to Script.
func (e *ScriptedEngine) Turn(ctx context.Context, _ sim.Bundle, simCtx sim.Context, decision sim.Decision) (sim.TurnResult, error) {
	e.mu.Lock()
	e.turns++
	e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return sim.TurnResult{}, err
	}
	return e.Script(simCtx, decision)
}

// Starts returns how many times Start was called.
func (e *ScriptedEngine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

// Turns returns how many times Turn was called.
func (e *ScriptedEngine) Turns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turns
}

// AlwaysProgress reports one new node per turn.
func AlwaysProgress(simCtx sim.Context, _ sim.Decision) (sim.TurnResult, error) {
	return sim.TurnResult{
		NewNodes:   []string{"visited_" + strconv.Itoa(simCtx.Turn+1)},
		TokenUsage: sim.TokenUsage{InputTokens: 10, OutputTokens: 5},
		LatencyMS:  100,
	}, nil
}

// NeverProgress reports nothing, which stalls the run.
func NeverProgress(sim.Context, sim.Decision) (sim.TurnResult, error) {
	return sim.TurnResult{LatencyMS: 100}, nil
}

// LinearBundle returns a bundle with a ring of n nodes and one choice per node.
func LinearBundle(n int) sim.Bundle {
	b := sim.Bundle{CurrentNode: "n0"}
	for i := 0; i < n; i++ {
		id := "n" + strconv.Itoa(i)
		b.QuestGraph.Nodes = append(b.QuestGraph.Nodes, id)
		b.Choices = append(b.Choices, sim.Choice{ID: "go_" + id, Text: "Continue the quest to " + id, Target: id})
		if i > 0 {
			b.QuestGraph.Edges = append(b.QuestGraph.Edges, sim.Edge{From: "n" + strconv.Itoa(i-1), To: id})
		}
	}
	if n > 1 {
		b.QuestGraph.Edges = append(b.QuestGraph.Edges, sim.Edge{From: "n" + strconv.Itoa(n-1), To: "n0"})
	}
	return b
}
