package fetch

import (
	"sync"

	"github.com/yourorg/lending-monitor/internal/model"
	"github.com/yourorg/lending-monitor/internal/types"
)

// Factory builds an adapter for a protocol.
type Factory func(chain ChainReader, opts ...Option) Adapter

// DefaultFactories maps every built-in protocol to its adapter constructor.
func DefaultFactories() map[types.ProtocolID]Factory {
	return map[types.ProtocolID]Factory{
		types.ProtocolAaveV3:     func(c ChainReader, o ...Option) Adapter { return NewAaveAdapter(c, o...) },
		types.ProtocolCompoundV3: func(c ChainReader, o ...Option) Adapter { return NewCompoundAdapter(c, o...) },
		types.ProtocolMorpho:     func(c ChainReader, o ...Option) Adapter { return NewMorphoAdapter(c, o...) },
	}
}

// Registry creates adapters lazily, once per protocol, and hands out the same instance afterwards.
type Registry struct {
	chain ChainReader
	opts  []Option

	mu        sync.Mutex
	factories map[types.ProtocolID]Factory
	adapters  map[types.ProtocolID]Adapter
}

// NewRegistry returns a registry with the built-in factories. opts are passed to every adapter.
func NewRegistry(chain ChainReader, opts ...Option) *Registry {
	return &Registry{
		chain:     chain,
		opts:      opts,
		factories: DefaultFactories(),
		adapters:  make(map[types.ProtocolID]Adapter),
	}
}

// Register installs or replaces the factory for a protocol and drops any cached instance.
func (r *Registry) Register(id types.ProtocolID, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
	delete(r.adapters, id)
}

// Get returns the adapter for id, creating it on first use.
func (r *Registry) Get(id types.ProtocolID) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[id]; ok {
		return a, nil
	}
	f, ok := r.factories[id]
	if !ok {
		return nil, types.UnsupportedProtocolError(string(id))
	}
	a := f(r.chain, r.opts...)
	r.adapters[id] = a
	return a, nil
}

// Supports reports whether id has a registered factory.
func (r *Registry) Supports(id types.ProtocolID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[id]
	return ok
}

// Info describes a protocol for listings.
type Info struct {
	ID          types.ProtocolID  `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	APYSource   string            `json:"apy_source"`
	Networks    []types.NetworkID `json:"networks"`
}

var protocolInfo = map[types.ProtocolID]Info{
	types.ProtocolAaveV3: {
		Name:        "Aave V3",
		Description: "Variable-rate lending pools; APY compounded per second from the ray-scaled liquidity rate",
		APYSource:   model.APYSourceOnchain,
	},
	types.ProtocolCompoundV3: {
		Name:        "Compound V3",
		Description: "Isolated Comet markets; APY from the supply rate at current utilization",
		APYSource:   model.APYSourceOnchain,
	},
	types.ProtocolMorpho: {
		Name:        "Morpho Blue",
		Description: "Supply vaults optimizing over underlying markets; TVL on-chain, APY estimated by vault family",
		APYSource:   model.APYSourceStaticEstimate,
	},
}

// ProtocolInfo returns display metadata and the deployment networks for a protocol.
func ProtocolInfo(id types.ProtocolID) (Info, error) {
	info, ok := protocolInfo[id]
	if !ok {
		return Info{}, types.UnsupportedProtocolError(string(id))
	}
	info.ID = id
	switch id {
	case types.ProtocolAaveV3:
		info.Networks = sortedNetworks(AaveDataProviders)
	case types.ProtocolCompoundV3:
		info.Networks = sortedNetworks(CompoundComets)
	case types.ProtocolMorpho:
		info.Networks = sortedNetworks(MorphoCore)
	}
	return info, nil
}
