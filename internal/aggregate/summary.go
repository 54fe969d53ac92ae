package aggregate

import (
	"math"

	"github.com/yourorg/lending-monitor/internal/model"
	"github.com/yourorg/lending-monitor/internal/types"
)

// BestPool identifies the highest-APY pool of a sweep.
type BestPool struct {
	Protocol types.ProtocolID `json:"protocol"`
	PoolID   string           `json:"pool_id"`
	APY      float64          `json:"apy"`
	Asset    string           `json:"asset"`
}

// Summary holds sweep-wide statistics.
type Summary struct {
	TotalProtocols int                        `json:"total_protocols"`
	TotalPools     int                        `json:"total_pools"`
	TotalTVL       float64                    `json:"total_tvl"`
	BestAPY        BestPool                   `json:"best_apy"`
	WeightedAPY    float64                    `json:"weighted_apy"`
	EvaluatedAt    int64                      `json:"evaluated_at"`
	CurrentBlocks  map[types.NetworkID]uint64 `json:"current_blocks"`
}

// Summarize computes totals, the best pool and the TVL-weighted APY. EvaluatedAt and
// CurrentBlocks are left for the caller, which owns the clock and the chain view.
func Summarize(protocols int, metrics []model.PoolMetric) Summary {
	s := Summary{
		TotalProtocols: protocols,
		TotalPools:     len(metrics),
	}
	for i, m := range metrics {
		s.TotalTVL += m.TVL
		if i == 0 || m.APY > s.BestAPY.APY {
			s.BestAPY = BestPool{Protocol: m.Protocol, PoolID: m.PoolID, APY: m.APY, Asset: m.Asset}
		}
	}
	s.WeightedAPY, _ = Weighted(metrics)
	return s
}

// Weighted returns the TVL-weighted mean APY and the TVL it covers. Pools without
// positive TVL carry no weight.
func Weighted(metrics []model.PoolMetric) (apy, tvl float64) {
	var weighted float64
	for _, m := range metrics {
		if m.TVL > 0 && m.APY >= 0 {
			tvl += m.TVL
			weighted += m.APY * m.TVL
		}
	}
	if tvl <= 0 || math.IsNaN(weighted) || math.IsInf(weighted, 0) {
		return 0, 0
	}
	return weighted / tvl, tvl
}
