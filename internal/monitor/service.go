// Package monitor is the core façade: it runs monitoring passes over the aggregator, the
// delta and alert engines and the history store.
package monitor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/lending-monitor/internal/aggregate"
	"github.com/yourorg/lending-monitor/internal/alert"
	"github.com/yourorg/lending-monitor/internal/delta"
	"github.com/yourorg/lending-monitor/internal/history"
	"github.com/yourorg/lending-monitor/internal/model"
	"github.com/yourorg/lending-monitor/internal/network"
	"github.com/yourorg/lending-monitor/internal/otel"
	"github.com/yourorg/lending-monitor/internal/types"
)

// ErrNoProtocols is returned when a monitor request names no protocol.
var ErrNoProtocols = errors.New("protocol_ids must be a non-empty array")

// ErrNoPoolID is returned when a history lookup has no pool id.
var ErrNoPoolID = errors.New("pool_id must be a non-empty string")

// historicalDepth is how many stored entries a sweep returns per pool.
const historicalDepth = 5

// ChainView is the slice of the connection manager the service reads.
type ChainView interface {
	CurrentBlock(id types.NetworkID) uint64
	Connected(id types.NetworkID) bool
	ListConnected() []types.NetworkID
}

// Fetcher runs the strict and sweep fetch paths. aggregate.Aggregator satisfies it.
type Fetcher interface {
	FetchAll(ctx context.Context, protocols []types.ProtocolID, pools []string, net types.NetworkID) ([]model.PoolMetric, error)
	FetchAcrossNetworks(ctx context.Context, protocols []types.ProtocolID, networks []string, assets []string) (*aggregate.Sweep, error)
}

type Options struct {
	DefaultNetwork types.NetworkID
	MaxHistory     int
	OpportunityAPY float64
	Clock          clock.Clock
}

type Service struct {
	chain   ChainView
	fetcher Fetcher
	store   *history.Store
	deltas  *delta.Engine
	alerts  *alert.Engine
	opts    Options
	started time.Time
}

func NewService(chain ChainView, fetcher Fetcher, store *history.Store, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.MaxHistory < 1 {
		opts.MaxHistory = history.DefaultMaxHistory
	}
	if opts.DefaultNetwork == "" {
		opts.DefaultNetwork = types.NetworkEthereum
	}
	return &Service{
		chain:   chain,
		fetcher: fetcher,
		store:   store,
		deltas:  delta.NewEngine(store),
		alerts:  alert.NewEngine(store),
		opts:    opts,
		started: opts.Clock.Now(),
	}
}

type MonitorRequest struct {
	Network    string               `json:"network"`
	Protocols  []types.ProtocolID   `json:"protocol_ids"`
	Pools      []string             `json:"pools"`
	Thresholds model.ThresholdRules `json:"threshold_rules"`
}

type MonitorResult struct {
	RequestID         string             `json:"request_id"`
	Network           types.NetworkID    `json:"network"`
	Metrics           []model.PoolMetric `json:"pool_metrics"`
	Deltas            []model.Delta      `json:"deltas"`
	Alerts            []model.Alert      `json:"alerts"`
	CurrentBlock      uint64             `json:"current_block"`
	SupportedNetworks []types.NetworkID  `json:"supported_networks"`
}

// Monitor runs one strict pass on a single network: fetch, diff against history, classify,
// then store. The network is validated before any RPC happens.
func (s *Service) Monitor(ctx context.Context, req MonitorRequest) (*MonitorResult, error) {
	desc, err := network.Get(req.Network)
	if err != nil {
		return nil, err
	}
	if len(req.Protocols) == 0 {
		return nil, ErrNoProtocols
	}

	id := uuid.NewString()
	ctx, span := otel.Tracer().Start(ctx, "monitor.Monitor", trace.WithAttributes(
		attribute.String("request_id", id),
		attribute.String("network", string(desc.ID)),
	))
	defer span.End()

	log := logrus.WithFields(logrus.Fields{"request_id": id, "network": desc.ID})

	current, err := s.fetcher.FetchAll(ctx, req.Protocols, req.Pools, desc.ID)
	if err != nil {
		otel.RecordError(ctx, err)
		log.Warnf("Monitor failed: %v", err)
		return nil, err
	}

	deltas := s.deltas.Compute(current)
	alerts := s.alerts.Check(deltas, current, req.Thresholds)
	stored := s.store.Store(current, s.opts.MaxHistory)

	log.WithFields(logrus.Fields{
		"pools":  len(current),
		"stored": stored,
		"alerts": len(alerts),
	}).Info("Monitor pass complete")

	return &MonitorResult{
		RequestID:         id,
		Network:           desc.ID,
		Metrics:           nonNil(current),
		Deltas:            nonNil(deltas),
		Alerts:            nonNil(alerts),
		CurrentBlock:      s.chain.CurrentBlock(desc.ID),
		SupportedNetworks: network.IDs(),
	}, nil
}

type HistoryResult struct {
	PoolID       string             `json:"pool_id"`
	Entries      []model.PoolMetric `json:"history"`
	Count        int                `json:"count"`
	CurrentBlock uint64             `json:"current_block"`
}

// History returns up to limit most recent entries for a pool, limit clamped to at least 1.
// Unknown pools yield an empty history.
func (s *Service) History(poolID string, limit int) (*HistoryResult, error) {
	if strings.TrimSpace(poolID) == "" {
		return nil, ErrNoPoolID
	}
	if limit < 1 {
		limit = 1
	}
	entries := nonNil(s.store.Recent(poolID, limit))
	return &HistoryResult{
		PoolID:       poolID,
		Entries:      entries,
		Count:        len(entries),
		CurrentBlock: s.chain.CurrentBlock(s.networkOf(poolID)),
	}, nil
}

// networkOf reads the network token of a pool id, falling back to the default network.
func (s *Service) networkOf(poolID string) types.NetworkID {
	parts := strings.SplitN(poolID, ":", 3)
	if len(parts) == 3 && network.Valid(parts[1]) {
		return types.NetworkID(parts[1])
	}
	return s.opts.DefaultNetwork
}

type SystemStatus struct {
	RPCConnected      bool              `json:"rpc_connected"`
	Network           types.NetworkID   `json:"network"`
	CurrentBlock      uint64            `json:"current_block"`
	PoolsMonitored    int               `json:"pools_monitored"`
	Uptime            float64           `json:"uptime"`
	ConnectedNetworks []types.NetworkID `json:"connected_networks"`
}

type EchoResult struct {
	Text   string       `json:"text"`
	Status SystemStatus `json:"system_status"`
}

// EchoStatus echoes text with a snapshot of the service. It never mutates state.
func (s *Service) EchoStatus(text string) EchoResult {
	net := s.opts.DefaultNetwork
	return EchoResult{
		Text: text,
		Status: SystemStatus{
			RPCConnected:      s.chain.Connected(net),
			Network:           net,
			CurrentBlock:      s.chain.CurrentBlock(net),
			PoolsMonitored:    s.store.PoolCount(),
			Uptime:            s.opts.Clock.Since(s.started).Seconds(),
			ConnectedNetworks: nonNil(s.chain.ListConnected()),
		},
	}
}

type UniversalRequest struct {
	Protocols         []types.ProtocolID   `json:"protocols"`
	Networks          []string             `json:"networks"`
	Assets            []string             `json:"assets"`
	IncludeHistorical bool                 `json:"include_historical"`
	Thresholds        model.ThresholdRules `json:"threshold_rules"`
}

type UniversalResult struct {
	RequestID  string                                                      `json:"request_id"`
	Summary    aggregate.Summary                                           `json:"summary"`
	Protocols  map[types.ProtocolID]map[types.NetworkID][]model.PoolMetric `json:"protocols"`
	Alerts     []model.Alert                                               `json:"alerts"`
	Historical map[string][]model.PoolMetric                               `json:"historical,omitempty"`
	Skipped    []string                                                    `json:"skipped,omitempty"`
}

// UniversalMonitor sweeps protocols across networks best-effort. Alerts combine the
// opportunity scan with threshold alerts against stored history.
func (s *Service) UniversalMonitor(ctx context.Context, req UniversalRequest) (*UniversalResult, error) {
	id := uuid.NewString()
	ctx, span := otel.Tracer().Start(ctx, "monitor.UniversalMonitor", trace.WithAttributes(
		attribute.String("request_id", id),
	))
	defer span.End()

	log := logrus.WithField("request_id", id)
	log.Infof("Universal monitor: %d protocols across %d networks", len(req.Protocols), len(req.Networks))

	sw, err := s.fetcher.FetchAcrossNetworks(ctx, req.Protocols, req.Networks, req.Assets)
	if err != nil {
		otel.RecordError(ctx, err)
		return nil, err
	}

	summary := aggregate.Summarize(len(req.Protocols), sw.Metrics)
	summary.EvaluatedAt = s.opts.Clock.Now().UnixMilli()
	summary.CurrentBlocks = make(map[types.NetworkID]uint64, len(sw.Networks))
	for _, n := range sw.Networks {
		summary.CurrentBlocks[n] = s.chain.CurrentBlock(n)
	}

	alerts := alert.Opportunities(sw.Metrics, s.opts.OpportunityAPY)
	deltas := s.deltas.Compute(sw.Metrics)
	alerts = append(alerts, s.alerts.Check(deltas, sw.Metrics, req.Thresholds)...)

	s.store.Store(sw.Metrics, s.opts.MaxHistory)

	res := &UniversalResult{
		RequestID: id,
		Summary:   summary,
		Protocols: sw.Breakdown,
		Alerts:    nonNil(alerts),
		Skipped:   sw.Skipped,
	}
	if req.IncludeHistorical {
		res.Historical = make(map[string][]model.PoolMetric)
		for _, m := range sw.Metrics {
			if h := s.store.Recent(m.PoolID, historicalDepth); len(h) > 0 {
				res.Historical[m.PoolID] = h
			}
		}
	}

	log.WithFields(logrus.Fields{
		"pools":   len(sw.Metrics),
		"alerts":  len(res.Alerts),
		"skipped": len(sw.Skipped),
	}).Info("Universal monitor complete")
	return res, nil
}

// nonNil keeps empty lists serialized as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
