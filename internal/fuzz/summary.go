package fuzz

import (
	"fmt"

	"github.com/roach88/playtest/internal/oracle"
)

// Summary is the batch-level view of run results.
//
// FailureRate counts runs that ended failed or timed out. SuccessFraction
// counts runs whose pass verdict is true.
type Summary struct {
	Total           int            `json:"total"`
	ByStatus        map[Status]int `json:"by_status"`
	Passed          int            `json:"passed"`
	FailureRate     float64        `json:"failure_rate"`
	AvgCoverage     float64        `json:"avg_coverage"`
	P95LatencyMS    float64        `json:"p95_latency_ms"`
	SuccessFraction float64        `json:"success_fraction"`
}

// Summarize computes batch totals, rates and the P95 average-turn latency.
func Summarize(results []RunResult) Summary {
	s := Summary{Total: len(results), ByStatus: map[Status]int{}}
	if len(results) == 0 {
		return s
	}
	var coverageSum float64
	latencies := make([]float64, 0, len(results))
	for _, r := range results {
		s.ByStatus[r.Status]++
		if r.Passed {
			s.Passed++
		}
		coverageSum += r.Coverage.Overall
		latencies = append(latencies, r.Performance.AvgTurnLatencyMS)
	}
	n := float64(len(results))
	s.FailureRate = float64(s.ByStatus[StatusFailed]+s.ByStatus[StatusTimeout]) / n
	s.AvgCoverage = coverageSum / n
	s.P95LatencyMS = oracle.P95(latencies)
	s.SuccessFraction = float64(s.Passed) / n
	return s
}

// Gates are the batch pass thresholds.
type Gates struct {
	MaxFailureRate     float64 `json:"max_failure_rate" yaml:"max_failure_rate"`
	MinAvgCoverage     float64 `json:"min_avg_coverage" yaml:"min_avg_coverage"`
	MaxP95LatencyMS    float64 `json:"max_p95_latency_ms" yaml:"max_p95_latency_ms"`
	MinSuccessFraction float64 `json:"min_success_fraction" yaml:"min_success_fraction"`
}

// DefaultGates returns the default batch thresholds.
func DefaultGates() Gates {
	return Gates{
		MaxFailureRate:     0.10,
		MinAvgCoverage:     0.30,
		MaxP95LatencyMS:    5000,
		MinSuccessFraction: 0.90,
	}
}

// GateResult is the batch verdict.
type GateResult struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations"`
}

// Evaluate applies the gates to s. An empty batch fails.
func (g Gates) Evaluate(s Summary) GateResult {
	res := GateResult{Violations: []string{}}
	if s.Total == 0 {
		res.Violations = append(res.Violations, "no runs executed")
		return res
	}
	if s.FailureRate > g.MaxFailureRate {
		res.Violations = append(res.Violations, fmt.Sprintf("failure rate %.3f exceeds %.3f", s.FailureRate, g.MaxFailureRate))
	}
	if s.AvgCoverage < g.MinAvgCoverage {
		res.Violations = append(res.Violations, fmt.Sprintf("average coverage %.3f below %.3f", s.AvgCoverage, g.MinAvgCoverage))
	}
	if s.P95LatencyMS > g.MaxP95LatencyMS {
		res.Violations = append(res.Violations, fmt.Sprintf("p95 latency %.1fms exceeds %.1fms", s.P95LatencyMS, g.MaxP95LatencyMS))
	}
	if s.SuccessFraction < g.MinSuccessFraction {
		res.Violations = append(res.Violations, fmt.Sprintf("success fraction %.3f below %.3f", s.SuccessFraction, g.MinSuccessFraction))
	}
	res.Passed = len(res.Violations) == 0
	return res
}
