package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/lending-monitor/internal/history"
	"github.com/yourorg/lending-monitor/internal/model"
)

const pool = "aave_v3:ethereum:0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

func seeded(t *testing.T, prev model.PoolMetric) *Engine {
	t.Helper()
	store := history.NewStore()
	require.Equal(t, 1, store.Store([]model.PoolMetric{prev}, 100))
	return NewEngine(store)
}

func previous() model.PoolMetric {
	return model.PoolMetric{PoolID: pool, APY: 5.0, TVL: 1000, BlockNumber: 100}
}

func current() model.PoolMetric {
	return model.PoolMetric{PoolID: pool, APY: 5.5, TVL: 900, BlockNumber: 110, Timestamp: 42}
}

func TestCheck_APYSpikeSeverity(t *testing.T) {
	tests := []struct {
		name    string
		pct     float64
		want    bool
		wantSev model.Severity
	}{
		{name: "exactly at threshold", pct: 10.0, want: false},
		{name: "just above threshold", pct: 10.0001, want: true, wantSev: model.SeverityHigh},
		{name: "exactly twice threshold", pct: 20.0, want: true, wantSev: model.SeverityHigh},
		{name: "beyond twice threshold", pct: 25.0, want: true, wantSev: model.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := seeded(t, previous())
			d := model.Delta{PoolID: pool, APYChangePercent: tt.pct, BlocksElapsed: 10}

			alerts := e.Check([]model.Delta{d}, []model.PoolMetric{current()}, model.ThresholdRules{
				APYSpikePercent: model.Percent(10),
			})

			if !tt.want {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, model.AlertAPYSpike, alerts[0].Kind)
			assert.Equal(t, tt.wantSev, alerts[0].Severity)
			assert.Equal(t, 10.0, alerts[0].Threshold)
			assert.Equal(t, uint64(110), alerts[0].BlockNumber)
			assert.Equal(t, int64(42), alerts[0].Timestamp)
		})
	}
}

func TestCheck_Drops(t *testing.T) {
	tests := []struct {
		name     string
		delta    model.Delta
		rules    model.ThresholdRules
		wantKind model.AlertKind
		wantSev  model.Severity
	}{
		{
			name:     "apy drop high",
			delta:    model.Delta{PoolID: pool, APYChangePercent: -15, BlocksElapsed: 3},
			rules:    model.ThresholdRules{APYDropPercent: model.Percent(10)},
			wantKind: model.AlertAPYDrop,
			wantSev:  model.SeverityHigh,
		},
		{
			name:     "apy drop critical",
			delta:    model.Delta{PoolID: pool, APYChangePercent: -21, BlocksElapsed: 3},
			rules:    model.ThresholdRules{APYDropPercent: model.Percent(10)},
			wantKind: model.AlertAPYDrop,
			wantSev:  model.SeverityCritical,
		},
		{
			name:     "tvl drain high",
			delta:    model.Delta{PoolID: pool, TVLChangePercent: -25, BlocksElapsed: 3},
			rules:    model.ThresholdRules{TVLDrainPercent: model.Percent(20)},
			wantKind: model.AlertTVLDrain,
			wantSev:  model.SeverityHigh,
		},
		{
			name:     "tvl drain critical",
			delta:    model.Delta{PoolID: pool, TVLChangePercent: -45, BlocksElapsed: 3},
			rules:    model.ThresholdRules{TVLDrainPercent: model.Percent(20)},
			wantKind: model.AlertTVLDrain,
			wantSev:  model.SeverityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := seeded(t, previous()).Check([]model.Delta{tt.delta}, []model.PoolMetric{current()}, tt.rules)
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.wantKind, alerts[0].Kind)
			assert.Equal(t, tt.wantSev, alerts[0].Severity)
		})
	}
}

func TestCheck_SurgeNeverCritical(t *testing.T) {
	for _, pct := range []float64{10.5, 20.5, 41, 1000, 1e9} {
		alerts := seeded(t, previous()).Check(
			[]model.Delta{{PoolID: pool, TVLChangePercent: pct}},
			[]model.PoolMetric{current()},
			model.ThresholdRules{TVLSurgePercent: model.Percent(10)},
		)
		require.Len(t, alerts, 1, "pct=%v", pct)
		assert.NotEqual(t, model.SeverityCritical, alerts[0].Severity)
	}

	alerts := seeded(t, previous()).Check(
		[]model.Delta{{PoolID: pool, TVLChangePercent: 15}},
		[]model.PoolMetric{current()},
		model.ThresholdRules{TVLSurgePercent: model.Percent(10)},
	)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.SeverityMedium, alerts[0].Severity)
}

func TestCheck_IndependentConditions(t *testing.T) {
	alerts := seeded(t, previous()).Check(
		[]model.Delta{{PoolID: pool, APYChangePercent: 30, TVLChangePercent: 50, BlocksElapsed: 10}},
		[]model.PoolMetric{current()},
		model.ThresholdRules{
			APYSpikePercent: model.Percent(10),
			TVLSurgePercent: model.Percent(10),
			APYDropPercent:  model.Percent(10),
			TVLDrainPercent: model.Percent(10),
		},
	)
	require.Len(t, alerts, 2)
	assert.Equal(t, model.AlertAPYSpike, alerts[0].Kind)
	assert.Equal(t, model.AlertTVLSurge, alerts[1].Kind)
}

func TestCheck_DisabledAndUnresolvable(t *testing.T) {
	d := model.Delta{PoolID: pool, APYChangePercent: 500, TVLChangePercent: -99}

	// no rules
	assert.Empty(t, seeded(t, previous()).Check([]model.Delta{d}, []model.PoolMetric{current()}, model.ThresholdRules{}))

	// non-positive thresholds disable the check
	assert.Empty(t, seeded(t, previous()).Check([]model.Delta{d}, []model.PoolMetric{current()}, model.ThresholdRules{
		APYSpikePercent: model.Percent(0),
		TVLDrainPercent: model.Percent(-5),
	}))

	rules := model.ThresholdRules{APYSpikePercent: model.Percent(10)}

	// no current metric for the delta
	assert.Empty(t, seeded(t, previous()).Check([]model.Delta{d}, nil, rules))

	// no previous stored entry
	assert.Empty(t, NewEngine(history.NewStore()).Check([]model.Delta{d}, []model.PoolMetric{current()}, rules))
}

func TestCheck_Messages(t *testing.T) {
	prev := model.PoolMetric{PoolID: pool, APY: 5.0, TVL: 1234567.891, BlockNumber: 100}
	cur := model.PoolMetric{PoolID: pool, APY: 5.5, TVL: 900, BlockNumber: 110}

	alerts := seeded(t, prev).Check(
		[]model.Delta{{PoolID: pool, APYChangePercent: 10.0001, TVLChangePercent: -99.9271, BlocksElapsed: 10}},
		[]model.PoolMetric{cur},
		model.ThresholdRules{APYSpikePercent: model.Percent(10), TVLDrainPercent: model.Percent(20)},
	)
	require.Len(t, alerts, 2)
	assert.Equal(t, "APY spiked by 10.0001% in 10 blocks (5.0000% → 5.5000%)", alerts[0].Message)
	assert.Equal(t, "TVL drained by 99.9271% in 10 blocks ($1,234,567.89 → $900.00)", alerts[1].Message)
	assert.Equal(t, 1234567.891, alerts[1].PreviousValue)
}

func TestOpportunities(t *testing.T) {
	metrics := []model.PoolMetric{
		{PoolID: "morpho:base:0x1", Protocol: "morpho", Asset: "USDC", APY: 6.8},
		{PoolID: "aave_v3:base:0x2", Protocol: "aave_v3", Asset: "WETH", APY: 3.0},
		{PoolID: "compound_v3:base:0x3", Protocol: "compound_v3", APY: 3.01, Address: "0x3"},
	}

	got := Opportunities(metrics, 3.0)
	require.Len(t, got, 2)
	assert.Equal(t, model.AlertOpportunity, got[0].Kind)
	assert.Equal(t, model.SeverityMedium, got[0].Severity)
	assert.Equal(t, "High APY opportunity: 6.80% on USDC (morpho)", got[0].Message)
	assert.Equal(t, "compound_v3:base:0x3", got[1].PoolID)
	assert.Contains(t, got[1].Message, "on 0x3")
}

func TestFormatAmount(t *testing.T) {
	tests := map[float64]string{
		0:          "0.00",
		999.999:    "1,000.00",
		1000:       "1,000.00",
		12345.678:  "12,345.68",
		-9876543.2: "-9,876,543.20",
		100:        "100.00",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatAmount(in), "in=%v", in)
	}
}
