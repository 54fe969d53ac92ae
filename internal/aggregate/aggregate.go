// Package aggregate fans monitoring requests out to protocol adapters and merges the results.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/lending-monitor/internal/fetch"
	"github.com/yourorg/lending-monitor/internal/metrics"
	"github.com/yourorg/lending-monitor/internal/model"
	"github.com/yourorg/lending-monitor/internal/network"
	"github.com/yourorg/lending-monitor/internal/otel"
	"github.com/yourorg/lending-monitor/internal/types"
	"github.com/yourorg/lending-monitor/internal/validation"
)

// Connector brings networks online. chain.Manager satisfies it.
type Connector interface {
	EnsureConnection(ctx context.Context, id types.NetworkID) error
}

// AdapterSource resolves protocol adapters. fetch.Registry satisfies it.
type AdapterSource interface {
	Get(id types.ProtocolID) (fetch.Adapter, error)
}

// Fetch outcome labels.
const (
	outcomeOK          = "ok"
	outcomePartial     = "partial"
	outcomeError       = "error"
	outcomeUnsupported = "unsupported"
)

type Aggregator struct {
	adapters    AdapterSource
	conns       Connector
	parallelism int
	validation  validation.ValidationOptions
}

func New(adapters AdapterSource, conns Connector, parallelism int) *Aggregator {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Aggregator{
		adapters:    adapters,
		conns:       conns,
		parallelism: parallelism,
		validation:  validation.DefaultValidationOptions(),
	}
}

// FetchAll is the strict single-network path. Adapters run in the given order and the
// first failure of any kind, including a single bad pool, aborts the request.
func (a *Aggregator) FetchAll(ctx context.Context, protocols []types.ProtocolID, pools []string, net types.NetworkID) ([]model.PoolMetric, error) {
	ctx, span := otel.Tracer().Start(ctx, "aggregate.FetchAll", trace.WithAttributes(
		attribute.String("network", string(net)),
		attribute.Int("protocols", len(protocols)),
	))
	defer span.End()

	adapters := make([]fetch.Adapter, 0, len(protocols))
	for _, p := range protocols {
		ad, err := a.adapters.Get(p)
		if err != nil {
			otel.RecordError(ctx, err)
			return nil, err
		}
		adapters = append(adapters, ad)
	}

	if err := a.conns.EnsureConnection(ctx, net); err != nil {
		otel.RecordError(ctx, err)
		return nil, err
	}

	var all []model.PoolMetric
	for _, ad := range adapters {
		got, err := a.invoke(ctx, ad, pools, net)
		if err != nil {
			otel.RecordError(ctx, err)
			return nil, fmt.Errorf("%s on %s: %w", ad.Protocol(), net, err)
		}
		all = append(all, got...)
	}
	return validation.FilterInvalidWithOptions(all, a.validation), nil
}

// Sweep is the result of a multi-network fetch.
type Sweep struct {
	// Metrics is ordered protocol-major, network-minor.
	Metrics   []model.PoolMetric
	Breakdown map[types.ProtocolID]map[types.NetworkID][]model.PoolMetric
	Protocols []types.ProtocolID
	Networks  []types.NetworkID
	Skipped   []string
}

type cell struct {
	metrics []model.PoolMetric
	note    string
}

// FetchAcrossNetworks is the best-effort sweep path. Unknown networks and protocols are
// noted and skipped; each protocol×network cell is isolated so a failing cell only empties
// itself. Networks are evaluated concurrently, bounded by the configured parallelism.
func (a *Aggregator) FetchAcrossNetworks(ctx context.Context, protocols []types.ProtocolID, networks []string, assets []string) (*Sweep, error) {
	ctx, span := otel.Tracer().Start(ctx, "aggregate.FetchAcrossNetworks", trace.WithAttributes(
		attribute.Int("protocols", len(protocols)),
		attribute.Int("networks", len(networks)),
	))
	defer span.End()

	if len(protocols) == 0 {
		return nil, fmt.Errorf("%w: at least one protocol is required", types.ErrUnsupportedProtocol)
	}

	sw := &Sweep{Breakdown: make(map[types.ProtocolID]map[types.NetworkID][]model.PoolMetric)}

	for _, n := range networks {
		if !network.Valid(n) {
			logrus.WithField("network", n).Warn("Invalid network, skipping")
			sw.Skipped = append(sw.Skipped, fmt.Sprintf("network %q is not supported", n))
			continue
		}
		sw.Networks = append(sw.Networks, types.NetworkID(n))
	}
	if len(sw.Networks) == 0 {
		err := types.UnsupportedNetworkError(fmt.Sprint(networks), network.IDs())
		otel.RecordError(ctx, err)
		return nil, err
	}

	adapters := make([]fetch.Adapter, 0, len(protocols))
	for _, p := range protocols {
		sw.Breakdown[p] = make(map[types.NetworkID][]model.PoolMetric)
		ad, err := a.adapters.Get(p)
		if err != nil {
			logrus.WithField("protocol", p).Warnf("Skipping protocol: %v", err)
			sw.Skipped = append(sw.Skipped, fmt.Sprintf("protocol %q is not supported", p))
			continue
		}
		sw.Protocols = append(sw.Protocols, p)
		adapters = append(adapters, ad)
	}

	// cells[n][p] is written only by the task for network n.
	cells := make([][]cell, len(sw.Networks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for ni, net := range sw.Networks {
		ni, net := ni, net
		cells[ni] = make([]cell, len(adapters))
		g.Go(func() error {
			a.sweepNetwork(gctx, net, adapters, assets, cells[ni])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for pi, ad := range adapters {
		p := ad.Protocol()
		for ni, net := range sw.Networks {
			c := cells[ni][pi]
			sw.Breakdown[p][net] = c.metrics
			sw.Metrics = append(sw.Metrics, c.metrics...)
			if c.note != "" {
				sw.Skipped = append(sw.Skipped, c.note)
			}
		}
	}

	span.SetAttributes(attribute.Int("pools", len(sw.Metrics)))
	return sw, nil
}

func (a *Aggregator) sweepNetwork(ctx context.Context, net types.NetworkID, adapters []fetch.Adapter, assets []string, out []cell) {
	if err := a.conns.EnsureConnection(ctx, net); err != nil {
		logrus.WithField("network", net).Warnf("Network unavailable, skipping its cells: %v", err)
		for i, ad := range adapters {
			out[i] = cell{note: fmt.Sprintf("%s on %s skipped: %v", ad.Protocol(), net, err)}
		}
		return
	}

	for i, ad := range adapters {
		if !deployedOn(ad, net) {
			logrus.WithFields(logrus.Fields{
				"protocol": ad.Protocol(),
				"network":  net,
			}).Debug("Protocol not deployed on network")
			metrics.AdapterFetches.WithLabelValues(string(ad.Protocol()), string(net), outcomeUnsupported).Inc()
			continue
		}

		got, err := a.invoke(ctx, ad, assets, net)
		switch {
		case err == nil:
		case fetch.IsPartial(err):
			logrus.WithFields(logrus.Fields{
				"protocol": ad.Protocol(),
				"network":  net,
			}).Warnf("Keeping %d pools despite failures: %v", len(got), err)
		default:
			logrus.WithFields(logrus.Fields{
				"protocol": ad.Protocol(),
				"network":  net,
			}).Warnf("Cell failed: %v", err)
			out[i] = cell{note: fmt.Sprintf("%s on %s failed: %v", ad.Protocol(), net, err)}
			continue
		}
		out[i] = cell{metrics: validation.FilterInvalidWithOptions(got, a.validation)}
	}
}

// invoke runs one adapter call under its own span and records the outcome.
func (a *Aggregator) invoke(ctx context.Context, ad fetch.Adapter, addresses []string, net types.NetworkID) ([]model.PoolMetric, error) {
	ctx, span := otel.Tracer().Start(ctx, "adapter.FetchMetrics", trace.WithAttributes(
		attribute.String("protocol", string(ad.Protocol())),
		attribute.String("network", string(net)),
	))
	defer span.End()

	start := time.Now()
	got, err := ad.FetchMetrics(ctx, addresses, net)

	outcome := outcomeOK
	switch {
	case err == nil:
	case fetch.IsPartial(err):
		outcome = outcomePartial
	default:
		outcome = outcomeError
	}
	if err != nil {
		otel.RecordError(ctx, err)
	}
	metrics.AdapterFetches.WithLabelValues(string(ad.Protocol()), string(net), outcome).Inc()

	logrus.WithFields(logrus.Fields{
		"protocol": ad.Protocol(),
		"network":  net,
		"pools":    len(got),
		"took":     time.Since(start),
	}).Debug("Adapter fetch finished")
	return got, err
}

func deployedOn(ad fetch.Adapter, net types.NetworkID) bool {
	for _, n := range ad.SupportedNetworks() {
		if n == net {
			return true
		}
	}
	return false
}
