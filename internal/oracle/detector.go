package oracle

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/playtest/internal/sim"
)

// Entry is one (turn, result) pair in the detector history.
type Entry struct {
	Turn   int    `json:"turn"`
	Result Result `json:"result"`
}

// Detector runs the oracle checks for one run.
//
// The history is the only state carried across turns.
// A Detector is not safe for concurrent use.
type Detector struct {
	thresholds Thresholds
	keywords   []string
	fold       cases.Caser
	history    []Entry
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithThresholds replaces the default thresholds.
func WithThresholds(t Thresholds) DetectorOption {
	return func(d *Detector) {
		d.thresholds = t
	}
}

// NewDetector creates a detector with DefaultThresholds unless overridden.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		thresholds: DefaultThresholds(),
		fold:       cases.Fold(),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, kw := range d.thresholds.SafetyKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			d.keywords = append(d.keywords, d.fold.String(kw))
		}
	}
	return d
}

// Thresholds returns the active thresholds.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// Check evaluates one turn and appends it to the history.
//
// ctx is the state before the turn. All seven checks are computed
// independently; a turn may raise any combination.
func (d *Detector) Check(bundle sim.Bundle, ctx sim.Context, tr sim.TurnResult) Result {
	var r Result
	r.SoftLock = d.checkSoftLock(bundle, ctx, tr, &r.Details)
	r.BudgetViolation = d.checkBudget(ctx, tr, &r.Details)
	r.ValidatorRetries = d.checkRetries(tr, &r.Details)
	r.FallbackEngagement = d.checkFallbacks(tr, &r.Details)
	r.SafetyViolation = d.checkSafety(tr, &r.Details)
	r.Performance = d.checkPerformance(tr, &r.Details)
	r.Integrity = checkIntegrity(tr, &r.Details)

	d.history = append(d.history, Entry{Turn: ctx.Turn + 1, Result: r})
	return r
}

func (d *Detector) checkSoftLock(bundle sim.Bundle, ctx sim.Context, tr sim.TurnResult, det *Details) bool {
	stalled := 0
	if !sim.MadeProgress(tr, ctx.ObjectiveProgress) {
		stalled = ctx.TurnsWithoutProgress + 1
	}
	det.StalledTurns = stalled

	current := ctx.CurrentNode
	if current == "" {
		current = bundle.CurrentNode
	}
	det.Unreachable = unreachable(bundle.QuestGraph, current, ctx.VisitedNodes, tr.NewNodes)

	return (d.thresholds.SoftLockTurns > 0 && stalled >= d.thresholds.SoftLockTurns) || det.Unreachable
}

// unreachable reports whether the graph still has unvisited nodes but none of
// them is reachable from current. A fully explored graph is not a soft lock.
func unreachable(g sim.QuestGraph, current string, visited map[string]bool, fresh []string) bool {
	if current == "" || len(g.Nodes) == 0 {
		return false
	}
	seen := func(n string) bool {
		if visited[n] || n == current {
			return true
		}
		for _, f := range fresh {
			if f == n {
				return true
			}
		}
		return false
	}

	inGraph := false
	remaining := 0
	for _, n := range g.Nodes {
		if n == current {
			inGraph = true
		}
		if !seen(n) {
			remaining++
		}
	}
	if !inGraph || remaining == 0 {
		return false
	}

	adj := g.Neighbors()
	queue := []string{current}
	reached := map[string]bool{current: true}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range adj[n] {
			if reached[next] {
				continue
			}
			if !seen(next) {
				return false
			}
			reached[next] = true
			queue = append(queue, next)
		}
	}
	return true
}

func (d *Detector) checkBudget(ctx sim.Context, tr sim.TurnResult, det *Details) bool {
	turn := tr.TokenUsage.Total()
	used := ctx.Budget.Used() + turn
	det.TurnTokens = turn
	det.TokensUsed = used
	det.MaxTokens = ctx.Budget.MaxTokens

	over := ctx.Budget.MaxTokens > 0 && float64(used) > d.thresholds.BudgetFraction*float64(ctx.Budget.MaxTokens)
	repairLoop := d.thresholds.RepairLoopTokens > 0 && turn > d.thresholds.RepairLoopTokens
	return over || repairLoop
}

func (d *Detector) checkRetries(tr sim.TurnResult, det *Details) bool {
	cumulative := tr.ValidatorRetries
	for _, e := range d.history {
		cumulative += e.Result.Details.TurnRetries
	}
	det.TurnRetries = tr.ValidatorRetries
	det.CumulativeRetries = cumulative

	limit := d.thresholds.MaxValidatorRetries
	return tr.ValidatorRetries > limit || cumulative > 2*limit
}

func (d *Detector) checkFallbacks(tr sim.TurnResult, det *Details) bool {
	det.Fallbacks = tr.FallbackEngagements
	return tr.FallbackEngagements > d.thresholds.MaxFallbacks || tr.FallbackRuleViolation
}

func (d *Detector) checkSafety(tr sim.TurnResult, det *Details) bool {
	for _, flag := range tr.ContentFlags {
		folded := d.fold.String(flag)
		for _, kw := range d.keywords {
			if strings.Contains(folded, kw) {
				det.SafetyMatches = append(det.SafetyMatches, flag)
				break
			}
		}
	}
	return len(det.SafetyMatches) > 0 || tr.ConsentViolation || tr.AgeRatingViolation
}

func (d *Detector) checkPerformance(tr sim.TurnResult, det *Details) bool {
	samples := make([]float64, 0, len(d.history)+1)
	for _, e := range d.history {
		if e.Result.Details.LatencyMS > 0 {
			samples = append(samples, e.Result.Details.LatencyMS)
		}
	}
	if tr.LatencyMS > 0 {
		samples = append(samples, tr.LatencyMS)
	}
	det.LatencyMS = tr.LatencyMS
	det.P95LatencyMS = P95(samples)
	det.AssemblerTimeMS = tr.AssemblerTimeMS

	t := d.thresholds
	return tr.LatencyMS > t.LatencyMS ||
		det.P95LatencyMS > t.P95LatencyMS ||
		tr.AssemblerTimeMS > t.AssemblerTimeMS
}

func checkIntegrity(tr sim.TurnResult, det *Details) bool {
	if tr.ActsSchemaViolation {
		det.IntegrityViolation = append(det.IntegrityViolation, "acts_schema_violation")
	}
	if tr.StateDivergence {
		det.IntegrityViolation = append(det.IntegrityViolation, "state_divergence")
	}
	if tr.InvalidTransition {
		det.IntegrityViolation = append(det.IntegrityViolation, "invalid_transition")
	}
	if tr.DataCorruption {
		det.IntegrityViolation = append(det.IntegrityViolation, "data_corruption")
	}
	return len(det.IntegrityViolation) > 0
}

// P95 returns the nearest-rank 95th percentile of samples, or 0 if empty.
func P95(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	rank := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}

// History returns the append-only (turn, result) sequence.
func (d *Detector) History() []Entry {
	return append([]Entry(nil), d.history...)
}

// Latest returns the most recent result.
func (d *Detector) Latest() (Result, bool) {
	if len(d.history) == 0 {
		return Result{}, false
	}
	return d.history[len(d.history)-1].Result, true
}

// FailureSummary summarizes the latest result. It is empty before any check.
func (d *Detector) FailureSummary() Summary {
	r, _ := d.Latest()
	return r.Summarize()
}

// Reset clears the history.
func (d *Detector) Reset() {
	d.history = nil
}
