// Package fetch provides protocol adapters that read lending pools on-chain and
// normalize them into PoolMetrics.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/lending-monitor/internal/model"
	"github.com/yourorg/lending-monitor/internal/types"
)

// Adapter defines the interface that all protocol adapters must implement
type Adapter interface {
	Protocol() types.ProtocolID

	// FetchMetrics reads the given pools on network. An empty address list selects the
	// protocol's defaults for that network. A network without a deployment yields an
	// empty result and no error.
	FetchMetrics(ctx context.Context, addresses []string, network types.NetworkID) ([]model.PoolMetric, error)

	SupportedAssets(network types.NetworkID) []string
	SupportedNetworks() []types.NetworkID
}

// ChainReader gives adapters contract access and the tracked block height per network.
// chain.Manager satisfies it.
type ChainReader interface {
	Caller(network types.NetworkID) (ethereum.ContractCaller, error)
	CurrentBlock(network types.NetworkID) uint64
}

// PartialError is returned alongside the metrics that did succeed when some pools failed.
type PartialError struct {
	Failures []*types.FetchError
}

func (e *PartialError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d pool(s) failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// IsPartial reports whether err only describes per-pool failures.
func IsPartial(err error) bool {
	var pe *PartialError
	return errors.As(err, &pe)
}

// Option customizes an adapter.
type Option func(*base)

// WithClock sets the clock used for metric timestamps.
func WithClock(c clock.Clock) Option {
	return func(b *base) { b.clock = c }
}

// WithDeployments replaces the per-network protocol contract table.
func WithDeployments(d map[types.NetworkID]string) Option {
	return func(b *base) { b.deployments = d }
}

// WithDefaults replaces the per-network default pool address lists.
func WithDefaults(d map[types.NetworkID][]string) Option {
	return func(b *base) { b.defaults = d }
}

// base carries what every adapter shares: identity, chain access and deployment tables.
type base struct {
	protocol    types.ProtocolID
	chain       ChainReader
	clock       clock.Clock
	deployments map[types.NetworkID]string
	defaults    map[types.NetworkID][]string
}

func newBase(protocol types.ProtocolID, chain ChainReader, deployments map[types.NetworkID]string,
	defaults map[types.NetworkID][]string, opts []Option) base {
	b := base{
		protocol:    protocol,
		chain:       chain,
		clock:       clock.New(),
		deployments: deployments,
		defaults:    defaults,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) Protocol() types.ProtocolID { return b.protocol }

func (b *base) SupportedNetworks() []types.NetworkID {
	return sortedNetworks(b.deployments)
}

func (b *base) SupportedAssets(network types.NetworkID) []string {
	return append([]string(nil), b.defaults[network]...)
}

// deployment returns the protocol contract on network. deployed is false when the
// protocol has no presence there at all.
func (b *base) deployment(network types.NetworkID) (addr common.Address, deployed bool, err error) {
	raw, ok := b.deployments[network]
	if !ok {
		return common.Address{}, false, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, true, &types.FetchError{
			Protocol: b.protocol,
			Network:  network,
			Err:      fmt.Errorf("%w: no contract address configured", types.ErrConfigurationMissing),
		}
	}
	return common.HexToAddress(raw), true, nil
}

// targets picks the pool addresses to read, dropping malformed ones with a warning.
func (b *base) targets(network types.NetworkID, addresses []string) []string {
	if len(addresses) == 0 {
		addresses = b.defaults[network]
	}
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if !common.IsHexAddress(a) {
			logrus.WithFields(logrus.Fields{
				"protocol": b.protocol,
				"network":  network,
				"address":  a,
			}).Warn("Skipping invalid address")
			continue
		}
		out = append(out, a)
	}
	return out
}

type readFunc func(ctx context.Context, caller ethereum.ContractCaller, address string) (model.PoolMetric, error)

// collect runs read for every target and stamps the results. One failing pool never
// aborts the batch; failures come back as a *PartialError next to the good metrics.
func (b *base) collect(ctx context.Context, network types.NetworkID, addresses []string, read readFunc) ([]model.PoolMetric, error) {
	caller, err := b.chain.Caller(network)
	if err != nil {
		return nil, &types.FetchError{Protocol: b.protocol, Network: network, Err: err}
	}

	var (
		metrics  []model.PoolMetric
		failures []*types.FetchError
	)
	for _, addr := range b.targets(network, addresses) {
		m, err := read(ctx, caller, addr)
		if err != nil {
			fe := &types.FetchError{Protocol: b.protocol, Network: network, Address: addr, Err: err}
			logrus.WithFields(logrus.Fields{
				"protocol": b.protocol,
				"network":  network,
				"address":  addr,
			}).Warnf("Pool read failed: %v", err)
			failures = append(failures, fe)
			continue
		}
		m.PoolID = model.PoolID(b.protocol, network, addr)
		m.Protocol = b.protocol
		m.Network = network
		m.Address = addr
		m.Timestamp = b.clock.Now().UnixMilli()
		m.BlockNumber = b.chain.CurrentBlock(network)
		metrics = append(metrics, m)
	}

	if len(failures) > 0 {
		return metrics, &PartialError{Failures: failures}
	}
	return metrics, nil
}
