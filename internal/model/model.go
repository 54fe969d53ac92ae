// Package model defines the core data structures for the lending monitor.
package model

import (
	"fmt"

	"github.com/yourorg/lending-monitor/internal/types"
)

// APY provenance values carried on every metric.
const (
	APYSourceOnchain        = "onchain"
	APYSourceStaticEstimate = "static_estimate"
)

// PoolMetric is a single normalized reading of one pool at one block.
// It is the core data structure that flows through the entire application.
type PoolMetric struct {
	// PoolID is "<protocol>:<network>:<address>"
	PoolID   string           `json:"pool_id"`
	Protocol types.ProtocolID `json:"protocol"`
	Network  types.NetworkID  `json:"network"`
	Address  string           `json:"address"`
	Asset    string           `json:"asset"`

	// APY is the annualized yield in percent, e.g. 5.0 for 5%
	APY float64 `json:"apy"`

	// TVL is decimal-adjusted, in units of the underlying asset
	TVL float64 `json:"tvl"`

	// Timestamp is wall-clock milliseconds since epoch
	Timestamp   int64  `json:"timestamp"`
	BlockNumber uint64 `json:"block_number"`

	APYSource      string            `json:"apy_source"`
	AdditionalData map[string]string `json:"additional_data,omitempty"`
}

// PoolID builds the pool identifier. Protocol and network are lowercase tokens; the
// address keeps the casing it was observed with.
func PoolID(protocol types.ProtocolID, network types.NetworkID, address string) string {
	return fmt.Sprintf("%s:%s:%s", protocol, network, address)
}

// Delta is the change between a fresh reading and the latest stored one for the same pool.
type Delta struct {
	PoolID           string  `json:"pool_id"`
	APYChange        float64 `json:"apy_change"`
	APYChangePercent float64 `json:"apy_change_percent"`
	TVLChange        float64 `json:"tvl_change"`
	TVLChangePercent float64 `json:"tvl_change_percent"`

	// TimeElapsed is in milliseconds
	TimeElapsed   int64 `json:"time_elapsed"`
	BlocksElapsed int64 `json:"blocks_elapsed"`
}

// AlertKind classifies an alert.
type AlertKind string

const (
	AlertAPYSpike AlertKind = "apy_spike"
	AlertAPYDrop  AlertKind = "apy_drop"
	AlertTVLDrain AlertKind = "tvl_drain"
	AlertTVLSurge AlertKind = "tvl_surge"

	// AlertOpportunity marks a pool whose APY clears the sweep opportunity floor.
	AlertOpportunity AlertKind = "opportunity"
)

// Severity of an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is transient output of a monitoring pass and is never stored.
type Alert struct {
	PoolID        string    `json:"pool_id"`
	Kind          AlertKind `json:"type"`
	Severity      Severity  `json:"severity"`
	Message       string    `json:"message"`
	CurrentValue  float64   `json:"current_value"`
	PreviousValue float64   `json:"previous_value"`
	ChangePercent float64   `json:"change_percent"`
	Threshold     float64   `json:"threshold"`
	Timestamp     int64     `json:"timestamp"`
	BlockNumber   uint64    `json:"block_number"`
}

// ThresholdRules are optional per-request alert thresholds in percent.
// A nil field disables that alert category.
type ThresholdRules struct {
	APYSpikePercent *float64 `json:"apy_spike_percent,omitempty"`
	APYDropPercent  *float64 `json:"apy_drop_percent,omitempty"`
	TVLDrainPercent *float64 `json:"tvl_drain_percent,omitempty"`
	TVLSurgePercent *float64 `json:"tvl_surge_percent,omitempty"`
}

// Percent is a helper for building ThresholdRules literals.
func Percent(v float64) *float64 { return &v }
