// Package alert classifies deltas against caller thresholds.
package alert

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/lending-monitor/internal/metrics"
	"github.com/yourorg/lending-monitor/internal/model"
)

// LatestReader exposes the most recent stored reading per pool.
type LatestReader interface {
	Latest(poolID string) (model.PoolMetric, bool)
}

type Engine struct {
	history LatestReader
}

func NewEngine(history LatestReader) *Engine {
	return &Engine{history: history}
}

// Check evaluates every delta against rules. A delta is skipped unless both its current
// metric and a previous stored reading resolve. One delta may raise several alerts.
func (e *Engine) Check(deltas []model.Delta, current []model.PoolMetric, rules model.ThresholdRules) []model.Alert {
	byPool := make(map[string]model.PoolMetric, len(current))
	for _, m := range current {
		byPool[m.PoolID] = m
	}

	var alerts []model.Alert
	for _, d := range deltas {
		cur, ok := byPool[d.PoolID]
		if !ok {
			continue
		}
		prev, ok := e.history.Latest(d.PoolID)
		if !ok {
			continue
		}
		alerts = append(alerts, evaluate(d, cur, prev, rules)...)
	}

	for _, a := range alerts {
		record(a)
	}
	return alerts
}

func evaluate(d model.Delta, cur, prev model.PoolMetric, rules model.ThresholdRules) []model.Alert {
	var out []model.Alert
	build := func(kind model.AlertKind, sev model.Severity, msg string, curV, prevV, pct, threshold float64) {
		out = append(out, model.Alert{
			PoolID:        d.PoolID,
			Kind:          kind,
			Severity:      sev,
			Message:       msg,
			CurrentValue:  curV,
			PreviousValue: prevV,
			ChangePercent: pct,
			Threshold:     threshold,
			Timestamp:     cur.Timestamp,
			BlockNumber:   cur.BlockNumber,
		})
	}

	apyPct, tvlPct := d.APYChangePercent, d.TVLChangePercent

	if t, ok := enabled(rules.APYSpikePercent); ok && apyPct > t {
		sev := model.SeverityHigh
		if apyPct > 2*t {
			sev = model.SeverityCritical
		}
		build(model.AlertAPYSpike, sev,
			fmt.Sprintf("APY spiked by %.4f%% in %d blocks (%.4f%% → %.4f%%)", apyPct, d.BlocksElapsed, prev.APY, cur.APY),
			cur.APY, prev.APY, apyPct, t)
	}

	if t, ok := enabled(rules.APYDropPercent); ok && apyPct < -t {
		sev := model.SeverityHigh
		if apyPct < -2*t {
			sev = model.SeverityCritical
		}
		build(model.AlertAPYDrop, sev,
			fmt.Sprintf("APY dropped by %.4f%% in %d blocks (%.4f%% → %.4f%%)", math.Abs(apyPct), d.BlocksElapsed, prev.APY, cur.APY),
			cur.APY, prev.APY, apyPct, t)
	}

	if t, ok := enabled(rules.TVLDrainPercent); ok && tvlPct < -t {
		sev := model.SeverityHigh
		if tvlPct < -2*t {
			sev = model.SeverityCritical
		}
		build(model.AlertTVLDrain, sev,
			fmt.Sprintf("TVL drained by %.4f%% in %d blocks ($%s → $%s)", math.Abs(tvlPct), d.BlocksElapsed, formatAmount(prev.TVL), formatAmount(cur.TVL)),
			cur.TVL, prev.TVL, tvlPct, t)
	}

	// Surges are inflows, so they top out at high.
	if t, ok := enabled(rules.TVLSurgePercent); ok && tvlPct > t {
		sev := model.SeverityMedium
		if tvlPct > 2*t {
			sev = model.SeverityHigh
		}
		build(model.AlertTVLSurge, sev,
			fmt.Sprintf("TVL surged by %.4f%% in %d blocks ($%s → $%s)", tvlPct, d.BlocksElapsed, formatAmount(prev.TVL), formatAmount(cur.TVL)),
			cur.TVL, prev.TVL, tvlPct, t)
	}

	return out
}

// Opportunities flags pools whose APY exceeds floor. It is independent of history.
func Opportunities(current []model.PoolMetric, floor float64) []model.Alert {
	var out []model.Alert
	for _, m := range current {
		if m.APY <= floor {
			continue
		}
		asset := m.Asset
		if asset == "" {
			asset = m.Address
		}
		a := model.Alert{
			PoolID:       m.PoolID,
			Kind:         model.AlertOpportunity,
			Severity:     model.SeverityMedium,
			Message:      fmt.Sprintf("High APY opportunity: %.2f%% on %s (%s)", m.APY, asset, m.Protocol),
			CurrentValue: m.APY,
			Threshold:    floor,
			Timestamp:    m.Timestamp,
			BlockNumber:  m.BlockNumber,
		}
		record(a)
		out = append(out, a)
	}
	return out
}

func enabled(threshold *float64) (float64, bool) {
	if threshold == nil || *threshold <= 0 {
		return 0, false
	}
	return *threshold, true
}

func record(a model.Alert) {
	metrics.AlertsEmitted.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
	logrus.WithFields(logrus.Fields{
		"pool_id":  a.PoolID,
		"type":     a.Kind,
		"severity": a.Severity,
	}).Info(a.Message)
}

// formatAmount renders v with two decimals and thousands separators.
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", math.Round(v*100)/100)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	n := len(intPart)
	for i, c := range intPart {
		if i > 0 && (n-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
