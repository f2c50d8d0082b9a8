package baseline

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	recs    map[string]Record
	failing error
}

func newMemStore() *memStore {
	return &memStore{recs: map[string]Record{}}
}

func (s *memStore) SaveBaseline(_ context.Context, rec Record) error {
	if s.failing != nil {
		return s.failing
	}
	s.recs[rec.Key] = rec
	return nil
}

func (s *memStore) LoadBaseline(_ context.Context, key string) (Record, bool, error) {
	if s.failing != nil {
		return Record{}, false, s.failing
	}
	rec, ok := s.recs[key]
	return rec, ok, nil
}

func (s *memStore) ListBaselines(context.Context) ([]Record, error) {
	out := make([]Record, 0, len(s.recs))
	for _, r := range s.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func sampleMetrics() Metrics {
	return Metrics{
		Coverage:      map[string]float64{"overall": 0.7, "quest": 0.8},
		Performance:   map[string]float64{PerfAvgTurnLatencyMS: 200, PerfTurnsPerSecond: 5},
		OracleRates:   map[string]float64{"soft_lock": 0.1},
		BehaviorRates: map[string]float64{"completion_rate": 0.9},
	}
}

func newTestManager(s Store) *Manager {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return NewManager(s, WithClock(func() time.Time { return t0 }))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "w:a:1.2.0:en:v", Key("w", "a", "1.2.0", "en", "v"))
	assert.Equal(t, "w:a:1.2.0:en:", Key("w", "a", "1.2.0", "en", ""))
}

func TestCompare_CoverageRegressionFails(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(newMemStore())
	require.NoError(t, m.Save(ctx, "k", Metrics{Coverage: map[string]float64{"overall": 0.7}}, 6))

	cmp, err := m.Compare(ctx, "k", Metrics{Coverage: map[string]float64{"overall": 0.4}})
	require.NoError(t, err)
	assert.Equal(t, VerdictFail, cmp.Verdict)
	assert.Contains(t, cmp.ToleranceExceeded, "coverage.overall")
	assert.False(t, cmp.NoBaseline)
}

func TestCompare_CoverageRegressionFailsAloneAmongImprovements(t *testing.T) {
	base := sampleMetrics()
	cur := sampleMetrics()
	cur.Coverage["overall"] = 0.45
	cur.Coverage["quest"] = 1.0
	cur.Performance[PerfAvgTurnLatencyMS] = 50
	cur.OracleRates["soft_lock"] = 0

	cmp := CompareMetrics(base, cur)
	assert.Equal(t, VerdictFail, cmp.Verdict)
	assert.Equal(t, []string{"coverage.overall"}, cmp.ToleranceExceeded)
}

func TestCompare_WithinTolerancePasses(t *testing.T) {
	base := sampleMetrics()
	cur := sampleMetrics()
	cur.Coverage["overall"] = 0.55
	cur.Performance[PerfAvgTurnLatencyMS] = 290
	cur.Performance[PerfTurnsPerSecond] = 3
	cur.OracleRates["soft_lock"] = 0.15
	cur.BehaviorRates["completion_rate"] = 0.8

	cmp := CompareMetrics(base, cur)
	assert.Equal(t, VerdictPass, cmp.Verdict)
	assert.Empty(t, cmp.ToleranceExceeded)
	assert.Len(t, cmp.Deltas, 6)
}

func TestCompare_EachFamilyTolerance(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Metrics)
		field string
	}{
		{"latency worsens", func(m *Metrics) { m.Performance[PerfAvgTurnLatencyMS] = 301 }, "performance.avg_turn_latency_ms"},
		{"throughput halves", func(m *Metrics) { m.Performance[PerfTurnsPerSecond] = 2.4 }, "performance.turns_per_second"},
		{"oracle rate rises", func(m *Metrics) { m.OracleRates["soft_lock"] = 0.25 }, "oracle_rates.soft_lock"},
		{"behavior drops", func(m *Metrics) { m.BehaviorRates["completion_rate"] = 0.7 }, "behavior_rates.completion_rate"},
		{"behavior jumps", func(m *Metrics) {
			m.BehaviorRates["completion_rate"] = 0.2
		}, "behavior_rates.completion_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := sampleMetrics()
			tt.mod(&cur)
			cmp := CompareMetrics(sampleMetrics(), cur)
			assert.Equal(t, VerdictFail, cmp.Verdict)
			assert.Equal(t, []string{tt.field}, cmp.ToleranceExceeded)
		})
	}
}

func TestCompare_ImprovementsNeverFail(t *testing.T) {
	cur := sampleMetrics()
	cur.Coverage["overall"] = 1
	cur.Performance[PerfAvgTurnLatencyMS] = 1
	cur.Performance[PerfTurnsPerSecond] = 500
	cur.OracleRates["soft_lock"] = 0
	assert.Equal(t, VerdictPass, CompareMetrics(sampleMetrics(), cur).Verdict)
}

func TestCompare_ZeroPerformanceBaselineSkipsRelative(t *testing.T) {
	base := Metrics{Performance: map[string]float64{PerfAvgTurnLatencyMS: 0}}
	cur := Metrics{Performance: map[string]float64{PerfAvgTurnLatencyMS: 9999}}
	assert.Equal(t, VerdictPass, CompareMetrics(base, cur).Verdict)
}

func TestCompare_UnsharedFieldsSkipped(t *testing.T) {
	base := Metrics{Coverage: map[string]float64{"old": 0.9}}
	cur := Metrics{Coverage: map[string]float64{"new": 0.0}}
	cmp := CompareMetrics(base, cur)
	assert.Equal(t, VerdictPass, cmp.Verdict)
	assert.Empty(t, cmp.Deltas)
}

func TestCompare_NoBaselinePassesTrivially(t *testing.T) {
	m := newTestManager(newMemStore())
	cmp, err := m.Compare(context.Background(), "missing", sampleMetrics())
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, cmp.Verdict)
	assert.True(t, cmp.NoBaseline)
	assert.Empty(t, cmp.ToleranceExceeded)
}

func TestSave_UpsertsAndStamps(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	m := newTestManager(s)

	require.NoError(t, m.Save(ctx, "k", sampleMetrics(), 3))
	updated := sampleMetrics()
	updated.Coverage["overall"] = 0.9
	require.NoError(t, m.Save(ctx, "k", updated, 4))

	rec, ok, err := m.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.9, rec.Metrics.Coverage["overall"])
	assert.Equal(t, 4, rec.Runs)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rec.SavedAt)

	recs, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestManager_Errors(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	m := newTestManager(s)

	assert.ErrorIs(t, m.Save(ctx, "", sampleMetrics(), 1), ErrEmptyKey)
	_, err := m.Compare(ctx, "", sampleMetrics())
	assert.ErrorIs(t, err, ErrEmptyKey)

	boom := errors.New("disk full")
	s.failing = boom
	assert.ErrorIs(t, m.Save(ctx, "k", sampleMetrics(), 1), boom)
	_, err = m.Compare(ctx, "k", sampleMetrics())
	assert.ErrorIs(t, err, boom)
}
