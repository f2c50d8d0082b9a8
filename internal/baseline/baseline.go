package baseline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
)

// Tolerances, one per metric family.
const (
	CoverageDropTolerance          = 0.2
	PerformanceRegressionTolerance = 0.5
	OracleRateIncreaseTolerance    = 0.1
	BehaviorRateDriftTolerance     = 0.15
)

// Metric families, used as field-name prefixes.
const (
	FamilyCoverage    = "coverage"
	FamilyPerformance = "performance"
	FamilyOracle      = "oracle_rates"
	FamilyBehavior    = "behavior_rates"
)

// Performance metric names. Latency is lower-is-better; throughput is
// higher-is-better.
const (
	PerfAvgTurnLatencyMS = "avg_turn_latency_ms"
	PerfTurnsPerSecond   = "turns_per_second"
)

// Key builds the baseline key world:adventure:core_version:locale:variation.
func Key(world, adventure, coreVersion, locale, variation string) string {
	return strings.Join([]string{world, adventure, coreVersion, locale, variation}, ":")
}

// Metrics is an aggregated snapshot. Each family maps metric name to value.
type Metrics struct {
	Coverage      map[string]float64 `json:"coverage"`
	Performance   map[string]float64 `json:"performance"`
	OracleRates   map[string]float64 `json:"oracle_rates"`
	BehaviorRates map[string]float64 `json:"behavior_rates"`
}

// Record is a stored baseline.
type Record struct {
	Key     string    `json:"key"`
	Metrics Metrics   `json:"metrics"`
	Runs    int       `json:"runs"`
	SavedAt time.Time `json:"saved_at"`
}

// Store persists baseline records.
type Store interface {
	SaveBaseline(ctx context.Context, rec Record) error
	LoadBaseline(ctx context.Context, key string) (Record, bool, error)
	ListBaselines(ctx context.Context) ([]Record, error)
}

// Verdict is the comparison outcome.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// Delta is the comparison of one field.
type Delta struct {
	Field     string  `json:"field"`
	Baseline  float64 `json:"baseline"`
	Current   float64 `json:"current"`
	Delta     float64 `json:"delta"`
	Tolerance float64 `json:"tolerance"`
	Exceeded  bool    `json:"exceeded"`
}

// Comparison is the result of comparing current metrics with a baseline.
type Comparison struct {
	Key               string   `json:"key"`
	Verdict           Verdict  `json:"verdict"`
	ToleranceExceeded []string `json:"tolerance_exceeded"`
	Deltas            []Delta  `json:"deltas"`
	NoBaseline        bool     `json:"no_baseline,omitempty"`
}

// Manager saves and compares baselines.
type Manager struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock sets the SavedAt time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a manager over store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ErrEmptyKey is returned for an empty baseline key.
var ErrEmptyKey = errors.New("baseline key must not be empty")

// Save upserts the baseline for key.
func (m *Manager) Save(ctx context.Context, key string, metrics Metrics, runs int) error {
	if key == "" {
		return ErrEmptyKey
	}
	rec := Record{Key: key, Metrics: metrics, Runs: runs, SavedAt: m.now().UTC()}
	if err := m.store.SaveBaseline(ctx, rec); err != nil {
		return fmt.Errorf("save baseline %q: %w", key, err)
	}
	m.logger.Info("baseline saved", "key", key, "runs", runs)
	return nil
}

// Load returns the stored baseline for key.
func (m *Manager) Load(ctx context.Context, key string) (Record, bool, error) {
	rec, ok, err := m.store.LoadBaseline(ctx, key)
	if err != nil {
		return Record{}, false, fmt.Errorf("load baseline %q: %w", key, err)
	}
	return rec, ok, nil
}

// List returns every stored baseline ordered by key.
func (m *Manager) List(ctx context.Context) ([]Record, error) {
	recs, err := m.store.ListBaselines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	return recs, nil
}

// Compare loads the baseline for key and compares current against it.
func (m *Manager) Compare(ctx context.Context, key string, current Metrics) (Comparison, error) {
	if key == "" {
		return Comparison{}, ErrEmptyKey
	}
	rec, ok, err := m.Load(ctx, key)
	if err != nil {
		return Comparison{}, err
	}
	if !ok {
		m.logger.Warn("no baseline for key, passing", "key", key)
		return Comparison{Key: key, Verdict: VerdictPass, ToleranceExceeded: []string{}, NoBaseline: true}, nil
	}
	cmp := CompareMetrics(rec.Metrics, current)
	cmp.Key = key
	if cmp.Verdict == VerdictFail {
		m.logger.Warn("baseline regression", "key", key, "fields", cmp.ToleranceExceeded)
	}
	return cmp, nil
}

// CompareMetrics compares current against base field by field. Fields
// present in only one side are skipped.
func CompareMetrics(base, current Metrics) Comparison {
	cmp := Comparison{Verdict: VerdictPass, ToleranceExceeded: []string{}, Deltas: []Delta{}}

	add := func(d Delta) {
		cmp.Deltas = append(cmp.Deltas, d)
		if d.Exceeded {
			cmp.ToleranceExceeded = append(cmp.ToleranceExceeded, d.Field)
			cmp.Verdict = VerdictFail
		}
	}

	eachShared(FamilyCoverage, base.Coverage, current.Coverage, func(field string, b, c float64) {
		drop := b - c
		add(Delta{Field: field, Baseline: b, Current: c, Delta: c - b, Tolerance: CoverageDropTolerance, Exceeded: drop > CoverageDropTolerance})
	})
	eachShared(FamilyPerformance, base.Performance, current.Performance, func(field string, b, c float64) {
		add(performanceDelta(field, b, c))
	})
	eachShared(FamilyOracle, base.OracleRates, current.OracleRates, func(field string, b, c float64) {
		rise := c - b
		add(Delta{Field: field, Baseline: b, Current: c, Delta: rise, Tolerance: OracleRateIncreaseTolerance, Exceeded: rise > OracleRateIncreaseTolerance})
	})
	eachShared(FamilyBehavior, base.BehaviorRates, current.BehaviorRates, func(field string, b, c float64) {
		add(Delta{Field: field, Baseline: b, Current: c, Delta: c - b, Tolerance: BehaviorRateDriftTolerance, Exceeded: math.Abs(c-b) > BehaviorRateDriftTolerance})
	})
	return cmp
}

// performanceDelta reports relative worsening. A zero baseline cannot be
// compared relatively and never exceeds.
func performanceDelta(field string, b, c float64) Delta {
	d := Delta{Field: field, Baseline: b, Current: c, Delta: c - b, Tolerance: PerformanceRegressionTolerance}
	if b == 0 {
		return d
	}
	var worsening float64
	if strings.HasSuffix(field, "."+PerfTurnsPerSecond) {
		worsening = (b - c) / b
	} else {
		worsening = (c - b) / b
	}
	d.Exceeded = worsening > PerformanceRegressionTolerance
	return d
}

// eachShared visits names present in both maps in sorted order.
func eachShared(family string, base, current map[string]float64, fn func(field string, b, c float64)) {
	names := make([]string, 0, len(base))
	for name := range base {
		if _, ok := current[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		fn(family+"."+name, base[name], current[name])
	}
}
