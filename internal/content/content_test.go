package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/playtest/internal/sim"
)

func testScenario() sim.Scenario {
	return sim.Scenario{World: "w", Adventure: "a", Locale: "en", Seed: "w:a:en:::0", MaxTurns: 10, Timeout: time.Minute}
}

func TestSynthetic_StartIsDeterministic(t *testing.T) {
	e := NewSynthetic()
	b1, err := e.Start(context.Background(), testScenario())
	require.NoError(t, err)
	b2, err := e.Start(context.Background(), testScenario())
	require.NoError(t, err)
	assert.Equal(t, b1, b2)

	assert.Equal(t, "node_00", b1.CurrentNode)
	assert.Len(t, b1.QuestGraph.Nodes, 12)
	assert.GreaterOrEqual(t, len(b1.QuestGraph.Edges), 12)
	assert.NotEmpty(t, b1.Choices)
	assert.True(t, b1.AllowFreeText)
	for _, c := range b1.Choices {
		assert.NotEmpty(t, c.Target)
	}
}

func TestSynthetic_RingKeepsEveryNodeReachable(t *testing.T) {
	b, err := NewSynthetic(WithGraphSize(5)).Start(context.Background(), testScenario())
	require.NoError(t, err)

	adj := b.QuestGraph.Neighbors()
	reached := map[string]bool{b.CurrentNode: true}
	queue := []string{b.CurrentNode}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range adj[n] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}
	assert.Len(t, reached, 5)
}

func TestSynthetic_ToggleDisablesFreeText(t *testing.T) {
	sc := testScenario()
	sc.Toggles = map[string]bool{"disable_free_text": true}
	b, err := NewSynthetic().Start(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, b.AllowFreeText)
}

func TestSynthetic_TurnMovesAlongChoice(t *testing.T) {
	e := NewSynthetic()
	b, err := e.Start(context.Background(), testScenario())
	require.NoError(t, err)

	c := b.Choices[0]
	simCtx := sim.Context{Seed: "s", VisitedNodes: map[string]bool{b.CurrentNode: true}}
	res, err := e.Turn(context.Background(), b, simCtx, sim.ChooseDecision(c, "test", 1))
	require.NoError(t, err)

	require.NotNil(t, res.UpdatedBundle)
	assert.Equal(t, c.Target, res.UpdatedBundle.CurrentNode)
	assert.Equal(t, 1, res.UpdatedBundle.Turn)
	assert.Equal(t, []string{c.Target}, res.NewNodes)
	p, ok := res.Progress()
	require.True(t, ok)
	assert.InDelta(t, 2.0/12.0, p, 1e-9)
	assert.Positive(t, res.TokenUsage.Total())
	assert.GreaterOrEqual(t, res.LatencyMS, 20.0)
	assert.LessOrEqual(t, res.LatencyMS, 400.0)
	assert.False(t, res.InvalidTransition)

	again, err := e.Turn(context.Background(), b, simCtx, sim.ChooseDecision(c, "test", 1))
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestSynthetic_UnofferedChoiceIsInvalidTransition(t *testing.T) {
	e := NewSynthetic()
	b, err := e.Start(context.Background(), testScenario())
	require.NoError(t, err)

	res, err := e.Turn(context.Background(), b, sim.Context{}, sim.Decision{Kind: sim.DecisionChoice, ChoiceID: "nope", NodeID: "nowhere"})
	require.NoError(t, err)
	assert.True(t, res.InvalidTransition)
	assert.Equal(t, b.CurrentNode, res.UpdatedBundle.CurrentNode)
	assert.Empty(t, res.NewNodes)
}

func TestSynthetic_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSynthetic().Start(ctx, testScenario())
	assert.ErrorIs(t, err, context.Canceled)
}

type slowEngine struct {
	delay time.Duration
}

func (s slowEngine) Start(ctx context.Context, _ sim.Scenario) (sim.Bundle, error) {
	time.Sleep(s.delay)
	return sim.Bundle{CurrentNode: "late"}, nil
}

func (s slowEngine) Turn(ctx context.Context, _ sim.Bundle, _ sim.Context, _ sim.Decision) (sim.TurnResult, error) {
	time.Sleep(s.delay)
	return sim.TurnResult{}, nil
}

func TestWithDeadline_AbandonsSlowCalls(t *testing.T) {
	e := WithDeadline(slowEngine{delay: 500 * time.Millisecond}, 10*time.Millisecond)

	start := time.Now()
	_, err := e.Turn(context.Background(), sim.Bundle{}, sim.Context{}, sim.NoDecision(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCallDeadline))
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	_, err = e.Start(context.Background(), testScenario())
	assert.ErrorIs(t, err, ErrCallDeadline)
}

func TestWithDeadline_PassesFastCalls(t *testing.T) {
	e := WithDeadline(slowEngine{}, time.Second)
	b, err := e.Start(context.Background(), testScenario())
	require.NoError(t, err)
	assert.Equal(t, "late", b.CurrentNode)
}

func TestWithDeadline_ZeroIsPassthrough(t *testing.T) {
	inner := slowEngine{}
	assert.Equal(t, Engine(inner), WithDeadline(inner, 0))
}

func TestWithDeadline_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WithDeadline(slowEngine{delay: 200 * time.Millisecond}, time.Second).Start(ctx, testScenario())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrCallDeadline)
}

type panicEngine struct{}

func (panicEngine) Start(context.Context, sim.Scenario) (sim.Bundle, error) {
	var m map[string]bool
	m["boom"] = true
	return sim.Bundle{}, nil
}

func (panicEngine) Turn(context.Context, sim.Bundle, sim.Context, sim.Decision) (sim.TurnResult, error) {
	panic("turn exploded")
}

func TestWithDeadline_RecoversPanics(t *testing.T) {
	e := WithDeadline(panicEngine{}, time.Second)

	_, err := e.Start(context.Background(), testScenario())
	require.ErrorIs(t, err, ErrCallPanic)
	assert.Contains(t, err.Error(), "start")
	assert.Contains(t, err.Error(), "nil map")

	_, err = e.Turn(context.Background(), sim.Bundle{}, sim.Context{}, sim.NoDecision(""))
	require.ErrorIs(t, err, ErrCallPanic)
	assert.Contains(t, err.Error(), "turn exploded")
}
