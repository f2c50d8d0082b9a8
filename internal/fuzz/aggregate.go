package fuzz

import (
	"sort"

	"github.com/roach88/playtest/internal/baseline"
	"github.com/roach88/playtest/internal/oracle"
)

// Aggregate is the baseline-ready summary of all runs sharing one key.
type Aggregate struct {
	Key     string           `json:"key"`
	Runs    int              `json:"runs"`
	Metrics baseline.Metrics `json:"metrics"`
}

// BaselineKey returns the baseline key for a run.
func BaselineKey(r RunResult, coreVersion string) string {
	s := r.Scenario
	return baseline.Key(s.World, s.Adventure, coreVersion, s.Locale, s.Variation)
}

// AggregateResults groups results by baseline key and averages each metric
// family. Cancelled runs are excluded. Output is ordered by key.
func AggregateResults(results []RunResult, coreVersion string) []Aggregate {
	groups := make(map[string][]RunResult)
	for _, r := range results {
		if r.Status == StatusCancelled {
			continue
		}
		k := BaselineKey(r, coreVersion)
		groups[k] = append(groups[k], r)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Aggregate, 0, len(keys))
	for _, k := range keys {
		out = append(out, Aggregate{Key: k, Runs: len(groups[k]), Metrics: aggregateMetrics(groups[k])})
	}
	return out
}

var behaviorRates = []string{"completion_rate", "pass_rate", "early_termination_rate", "turns_fraction"}

func aggregateMetrics(runs []RunResult) baseline.Metrics {
	m := baseline.Metrics{
		Coverage:      map[string]float64{},
		Performance:   map[string]float64{},
		OracleRates:   map[string]float64{},
		BehaviorRates: map[string]float64{},
	}
	for _, c := range oracle.Categories {
		m.OracleRates[c] = 0
	}
	for _, k := range behaviorRates {
		m.BehaviorRates[k] = 0
	}
	n := float64(len(runs))

	var timed float64
	for _, r := range runs {
		for dim, pct := range r.Coverage.Dimensions() {
			m.Coverage[dim] += pct / n
		}
		m.Coverage["overall"] += r.Coverage.Overall / n

		if r.Turns > 0 {
			timed++
			m.Performance[baseline.PerfAvgTurnLatencyMS] += r.Performance.AvgTurnLatencyMS
			m.Performance[baseline.PerfTurnsPerSecond] += r.Performance.TurnsPerSecond
		}

		for _, c := range oracle.Categories {
			if r.FlagCounts[c] > 0 {
				m.OracleRates[c] += 1 / n
			}
		}

		if r.Status == StatusCompleted {
			m.BehaviorRates["completion_rate"] += 1 / n
		}
		if r.Passed {
			m.BehaviorRates["pass_rate"] += 1 / n
		}
		if r.EarlyTermination != "" {
			m.BehaviorRates["early_termination_rate"] += 1 / n
		}
		if r.Scenario.MaxTurns > 0 {
			m.BehaviorRates["turns_fraction"] += float64(r.Turns) / float64(r.Scenario.MaxTurns) / n
		}
	}
	if timed > 0 {
		m.Performance[baseline.PerfAvgTurnLatencyMS] /= timed
		m.Performance[baseline.PerfTurnsPerSecond] /= timed
	}
	return m
}
