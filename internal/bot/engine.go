package bot

import (
	"unicode/utf8"

	"github.com/roach88/playtest/internal/sim"
)

// AvgCharsPerToken is the coarse characters-per-token ratio used to estimate
// output tokens from decision text. It is not a tokenizer.
const AvgCharsPerToken = 4

// State is the engine lifecycle state.
type State string

const (
	// StateIdle means the engine is constructed and no decision was issued.
	StateIdle State = "idle"
	// StateRunning means at least one decision was issued since construction
	// or the last reset.
	StateRunning State = "running"
)

// Engine owns one policy per mode and the run's Memory.
//
// An Engine serves exactly one run and is not safe for concurrent use.
type Engine struct {
	runID     string
	mode      Mode
	seed      string
	startTurn int
	maxTokens int
	state     State
	policies  map[Mode]Policy
	memory    *Memory
	restored  *Memory
	rngStates map[Mode]uint32
	startNode string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxTokens sets the token ceiling recorded in memory's budget.
func WithMaxTokens(maxTokens int) EngineOption {
	return func(e *Engine) {
		e.maxTokens = maxTokens
	}
}

// WithMemory starts the engine from a checkpointed memory instead of an
// empty one. ResetMemory still returns to an empty memory.
func WithMemory(m *Memory) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.restored = m.Clone()
		}
	}
}

// WithRNGStates restores policy RNG positions captured by RNGStates, so a
// resumed run makes the same decisions an uninterrupted one would. Modes
// missing from states start from their seed.
func WithRNGStates(states map[Mode]uint32) EngineOption {
	return func(e *Engine) {
		e.rngStates = states
	}
}

// WithStartNode marks node visited in a fresh memory.
func WithStartNode(node string) EngineOption {
	return func(e *Engine) {
		e.startNode = node
	}
}

// NewEngine creates an engine for runID starting at startTurn (non-zero when
// resuming from a checkpoint). One policy per mode in AllModes is built
// eagerly from the same seed so identical seeds yield identical policy trees.
func NewEngine(runID string, startTurn int, mode Mode, seed string, opts ...EngineOption) *Engine {
	e := &Engine{
		runID:     runID,
		mode:      mode,
		seed:      seed,
		startTurn: startTurn,
		state:     StateIdle,
		policies:  make(map[Mode]Policy, len(AllModes)),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, m := range AllModes {
		// NewPolicy only fails for modes outside AllModes.
		p, _ := NewPolicy(m, seed)
		if st, ok := e.rngStates[m]; ok {
			if sp, ok := p.(seeded); ok {
				sp.restoreRNG(st)
			}
		}
		e.policies[m] = p
	}
	e.rngStates = nil
	e.memory = e.freshMemory()
	if e.restored != nil {
		e.memory = e.restored
		e.memory.Turn = startTurn
		e.restored = nil
	}
	return e
}

// RunID returns the run identifier.
func (e *Engine) RunID() string { return e.runID }

// Mode returns the engine's default mode.
func (e *Engine) Mode() Mode { return e.mode }

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// Memory returns the run memory. Callers must treat it as read-only.
func (e *Engine) Memory() *Memory { return e.memory }

// RNGStates returns the current RNG state of every policy, keyed by mode.
func (e *Engine) RNGStates() map[Mode]uint32 {
	states := make(map[Mode]uint32, len(e.policies))
	for m, p := range e.policies {
		if sp, ok := p.(seeded); ok {
			states[m] = sp.rngState()
		}
	}
	return states
}

// Decide dispatches to the policy for mode and records the decision in memory.
// Returns UnknownModeError if mode has no registered policy.
func (e *Engine) Decide(bundle sim.Bundle, ctx sim.Context, mode Mode) (sim.Decision, error) {
	p, ok := e.policies[mode]
	if !ok {
		return sim.Decision{}, &UnknownModeError{Mode: mode}
	}
	d := p.Decide(bundle, e.memory, ctx)
	e.state = StateRunning
	e.recordDecision(d)
	return d, nil
}

// recordDecision applies the bookkeeping that follows every decision.
func (e *Engine) recordDecision(d sim.Decision) {
	m := e.memory
	m.Turn++
	if d.Kind == sim.DecisionChoice && d.NodeID != "" {
		m.VisitedNodes[d.NodeID] = true
	}
	if d.DialogueID != "" {
		m.SeenDialogue[d.DialogueID] = true
	}
	m.Budget.OutputTokens += EstimateTokens(d.Text)
}

// Observe folds the content engine's turn result into memory.
func (e *Engine) Observe(r sim.TurnResult) {
	m := e.memory
	for _, n := range r.NewNodes {
		m.VisitedNodes[n] = true
	}
	for _, sc := range r.SkillChecks {
		m.SkillChecks[sc.Skill]++
	}
	for _, l := range r.LootGained {
		if l.Tier != "" {
			m.LootTiers[l.Tier] = true
		}
	}
	for _, ev := range r.WorldEvents {
		if ev.Type != "" {
			m.WorldEvents[ev.Type] = true
		}
	}
	for _, h := range r.ModHooks {
		m.HookCounts[h]++
	}
	m.Budget.InputTokens += r.TokenUsage.InputTokens
	m.Budget.OutputTokens += r.TokenUsage.OutputTokens

	if sim.MadeProgress(r, m.LastProgress) {
		m.NoProgressTurns = 0
	} else {
		m.NoProgressTurns++
	}
	if p, ok := r.Progress(); ok && p > m.LastProgress {
		m.LastProgress = p
	}
}

// ResetMemory clears memory back to its initial state and returns the
// engine to idle.
func (e *Engine) ResetMemory() {
	e.memory = e.freshMemory()
	e.state = StateIdle
}

func (e *Engine) freshMemory() *Memory {
	m := newMemory(e.startTurn, e.maxTokens)
	if e.startNode != "" {
		m.VisitedNodes[e.startNode] = true
	}
	return m
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / AvgCharsPerToken
}
