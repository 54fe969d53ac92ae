// Package validation drops adapter output that must never reach history.
package validation

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/lending-monitor/internal/model"
)

// ValidationOptions holds configuration for the validation process
type ValidationOptions struct {
	// MaxAPY rejects readings above this percentage; 0 disables the cap
	MaxAPY float64

	// MinTVL rejects readings below this TVL
	MinTVL float64
}

// DefaultValidationOptions rejects only readings that are not numbers a pool can have.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{}
}

// FilterInvalid removes metrics with non-finite or negative APY/TVL or no pool id.
func FilterInvalid(metrics []model.PoolMetric) []model.PoolMetric {
	return FilterInvalidWithOptions(metrics, DefaultValidationOptions())
}

// FilterInvalidWithOptions removes metrics with custom validation options.
func FilterInvalidWithOptions(metrics []model.PoolMetric, opts ValidationOptions) []model.PoolMetric {
	valid := make([]model.PoolMetric, 0, len(metrics))
	for _, m := range metrics {
		if reason := rejectReason(m, opts); reason != "" {
			logrus.WithFields(logrus.Fields{
				"pool_id": m.PoolID,
				"apy":     m.APY,
				"tvl":     m.TVL,
				"reason":  reason,
			}).Debug("Filtered invalid metric")
			continue
		}
		valid = append(valid, m)
	}
	return valid
}

func rejectReason(m model.PoolMetric, opts ValidationOptions) string {
	switch {
	case m.PoolID == "":
		return "missing pool id"
	case math.IsNaN(m.APY) || math.IsInf(m.APY, 0):
		return "non-finite apy"
	case math.IsNaN(m.TVL) || math.IsInf(m.TVL, 0):
		return "non-finite tvl"
	case m.APY < 0:
		return "negative apy"
	case m.TVL < 0:
		return "negative tvl"
	case opts.MaxAPY > 0 && m.APY > opts.MaxAPY:
		return "apy above cap"
	case m.TVL < opts.MinTVL:
		return "tvl below minimum"
	}
	return ""
}
