package coverage

import (
	"time"

	"github.com/roach88/playtest/internal/sim"
)

// Tracker accumulates coverage for one run. It is not safe for concurrent use.
type Tracker struct {
	estimates   Estimates
	now         func() time.Time
	initialized bool
	metrics     Metrics
	snapshots   []Snapshot
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithEstimates overrides the estimated denominators.
func WithEstimates(e Estimates) TrackerOption {
	return func(t *Tracker) {
		t.estimates = e
	}
}

// WithClock sets the snapshot timestamp source.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		estimates: DefaultEstimates(),
		now:       time.Now,
		metrics:   newMetrics(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Update folds one turn into the tracker and appends a snapshot.
//
// ctx is the state before the turn; decision is what the bot chose and
// result is what the content engine reported.
func (t *Tracker) Update(bundle sim.Bundle, ctx sim.Context, decision sim.Decision, result sim.TurnResult) Snapshot {
	if !t.initialized {
		t.initTotals(bundle.DeclaredTotals())
	}

	t.updateQuest(bundle, ctx, decision, result)
	t.updateDialogue(decision)
	t.updateMechanics(result)
	t.updateEconomy(result)
	t.updateWorld(bundle, result)
	t.updateExtensions(result)
	t.recompute()

	snap := Snapshot{
		Turn:      ctx.Turn + 1,
		Timestamp: t.now(),
		Metrics:   t.metrics.Clone(),
		Summary:   t.metrics.Summary(),
	}
	t.snapshots = append(t.snapshots, snap)
	return snap.Clone()
}

func (t *Tracker) initTotals(tot sim.Totals) {
	m := &t.metrics
	m.Quest.TotalNodes = tot.Nodes
	m.Quest.TotalEdges = tot.Edges
	m.Dialogue.Total = tot.DialogueCandidates
	m.Mechanics.Total = t.estimates.SkillCheckVariety + t.estimates.ConditionVariety + t.estimates.CraftingVariety
	m.Economy.Total = tot.LootTiers + t.estimates.VendorVariety
	m.World.Total = tot.EventTypes + t.estimates.WeatherVariety
	m.Extensions.Total = tot.Hooks
	t.initialized = true
}

func (t *Tracker) updateQuest(bundle sim.Bundle, ctx sim.Context, d sim.Decision, r sim.TurnResult) {
	q := &t.metrics.Quest
	from := ctx.CurrentNode
	if from == "" {
		from = bundle.CurrentNode
	}
	q.Nodes.add(from)
	if d.Kind == sim.DecisionChoice && d.NodeID != "" {
		q.Nodes.add(d.NodeID)
		if from != "" && from != d.NodeID {
			q.Edges.add(sim.Edge{From: from, To: d.NodeID}.Key())
		}
	}
	for _, n := range r.NewNodes {
		q.Nodes.add(n)
	}
}

func (t *Tracker) updateDialogue(d sim.Decision) {
	t.metrics.Dialogue.Seen.add(d.DialogueID)
}

func (t *Tracker) updateMechanics(r sim.TurnResult) {
	m := &t.metrics.Mechanics
	for _, sc := range r.SkillChecks {
		if sc.Skill != "" {
			m.SkillChecks[sc.Skill]++
		}
	}
	for _, c := range r.Conditions {
		m.Conditions.add(c)
	}
	for _, c := range r.CraftAttempts {
		m.Recipes.add(c.Recipe)
	}
}

func (t *Tracker) updateEconomy(r sim.TurnResult) {
	e := &t.metrics.Economy
	for _, l := range r.LootGained {
		e.LootTiers.add(l.Tier)
	}
	for _, v := range r.VendorInteractions {
		e.Vendors.add(v.Vendor)
	}
	for res := range r.ResourceChanges {
		e.Resources.add(res)
	}
}

func (t *Tracker) updateWorld(bundle sim.Bundle, r sim.TurnResult) {
	w := &t.metrics.World
	for _, ev := range r.WorldEvents {
		w.EventTypes.add(ev.Type)
	}
	w.Weather.add(bundle.World.Weather)
	for _, wc := range r.WeatherChanges {
		w.Weather.add(wc)
	}
}

func (t *Tracker) updateExtensions(r sim.TurnResult) {
	x := &t.metrics.Extensions
	for _, h := range r.ModHooks {
		x.Hooks.add(h)
	}
	x.Violations += len(r.ModViolations)
	x.Quarantines += len(r.ModQuarantines)
}

func (t *Tracker) recompute() {
	m := &t.metrics
	m.Quest.Percentage = percentage(len(m.Quest.Nodes)+len(m.Quest.Edges), m.Quest.TotalNodes+m.Quest.TotalEdges)
	m.Dialogue.Percentage = percentage(len(m.Dialogue.Seen), m.Dialogue.Total)
	m.Mechanics.Percentage = percentage(len(m.Mechanics.SkillChecks)+len(m.Mechanics.Conditions)+len(m.Mechanics.Recipes), m.Mechanics.Total)
	m.Economy.Percentage = percentage(len(m.Economy.LootTiers)+len(m.Economy.Vendors), m.Economy.Total)
	m.World.Percentage = percentage(len(m.World.EventTypes)+len(m.World.Weather), m.World.Total)
	m.Extensions.Percentage = percentage(len(m.Extensions.Hooks), m.Extensions.Total)
}

// Coverage returns the current percentages and overall mean.
func (t *Tracker) Coverage() Summary {
	return t.metrics.Summary()
}

// Metrics returns a deep copy of the current metrics.
func (t *Tracker) Metrics() Metrics {
	return t.metrics.Clone()
}

// Snapshots returns a deep copy of the append-only snapshot history.
func (t *Tracker) Snapshots() []Snapshot {
	out := make([]Snapshot, len(t.snapshots))
	for i, s := range t.snapshots {
		out[i] = s.Clone()
	}
	return out
}

// Latest returns the most recent snapshot.
func (t *Tracker) Latest() (Snapshot, bool) {
	if len(t.snapshots) == 0 {
		return Snapshot{}, false
	}
	return t.snapshots[len(t.snapshots)-1].Clone(), true
}

// Reset clears all state, including totals, so the next bundle re-derives them.
func (t *Tracker) Reset() {
	t.initialized = false
	t.metrics = newMetrics()
	t.snapshots = nil
}
