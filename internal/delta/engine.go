// Package delta diffs fresh readings against the latest stored reading of the same pool.
package delta

import (
	"github.com/yourorg/lending-monitor/internal/model"
)

// LatestReader exposes the most recent stored reading per pool.
type LatestReader interface {
	Latest(poolID string) (model.PoolMetric, bool)
}

// Engine computes deltas against a history source. It holds no state of its own.
type Engine struct {
	history LatestReader
}

func NewEngine(history LatestReader) *Engine {
	return &Engine{history: history}
}

// Compute returns one delta per metric whose pool already has a stored reading.
// Pools seen for the first time produce nothing. Must run before the batch is stored.
func (e *Engine) Compute(current []model.PoolMetric) []model.Delta {
	deltas := make([]model.Delta, 0, len(current))
	for _, m := range current {
		prev, ok := e.history.Latest(m.PoolID)
		if !ok {
			continue
		}
		deltas = append(deltas, Between(prev, m))
	}
	return deltas
}

// Between computes the change from prev to cur.
func Between(prev, cur model.PoolMetric) model.Delta {
	apyChange := cur.APY - prev.APY
	tvlChange := cur.TVL - prev.TVL

	return model.Delta{
		PoolID:           cur.PoolID,
		APYChange:        apyChange,
		APYChangePercent: percentOf(apyChange, prev.APY),
		TVLChange:        tvlChange,
		TVLChangePercent: percentOf(tvlChange, prev.TVL),
		TimeElapsed:      cur.Timestamp - prev.Timestamp,
		BlocksElapsed:    int64(cur.BlockNumber) - int64(prev.BlockNumber),
	}
}

// percentOf is change relative to base in percent, 0 when base is exactly 0.
func percentOf(change, base float64) float64 {
	if base == 0 {
		return 0
	}
	return change / base * 100
}
