// Package network holds the static table of supported networks.
package network

import (
	"github.com/yourorg/lending-monitor/internal/types"
)

// Descriptor describes how to reach a network and how to present it.
type Descriptor struct {
	ID             types.NetworkID `json:"id"`
	Name           string          `json:"name"`
	ChainID        uint64          `json:"chain_id,omitempty"`
	NativeCurrency string          `json:"native_currency"`
	Explorer       string          `json:"explorer"`

	// EVM is false for networks that do not speak Ethereum JSON-RPC.
	EVM bool `json:"evm"`

	// RPCEnvKey names the environment variable holding the network-specific endpoint.
	RPCEnvKey string `json:"-"`

	// DefaultRPC is the provider URL template used when nothing is configured.
	DefaultRPC string `json:"-"`
}

var descriptors = []Descriptor{
	{ID: types.NetworkEthereum, Name: "Ethereum Mainnet", ChainID: 1, NativeCurrency: "ETH", Explorer: "https://etherscan.io", EVM: true,
		RPCEnvKey: "ETHEREUM_RPC_URL", DefaultRPC: "https://eth-mainnet.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkEthereumSepolia, Name: "Ethereum Sepolia", ChainID: 11155111, NativeCurrency: "ETH", Explorer: "https://sepolia.etherscan.io", EVM: true,
		RPCEnvKey: "ETHEREUM_SEPOLIA_RPC_URL", DefaultRPC: "https://eth-sepolia.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkBase, Name: "Base Mainnet", ChainID: 8453, NativeCurrency: "ETH", Explorer: "https://basescan.org", EVM: true,
		RPCEnvKey: "BASE_RPC_URL", DefaultRPC: "https://base-mainnet.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkBaseSepolia, Name: "Base Sepolia", ChainID: 84532, NativeCurrency: "ETH", Explorer: "https://sepolia.basescan.org", EVM: true,
		RPCEnvKey: "BASE_SEPOLIA_RPC_URL", DefaultRPC: "https://base-sepolia.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkOptimism, Name: "OP Mainnet", ChainID: 10, NativeCurrency: "ETH", Explorer: "https://optimistic.etherscan.io", EVM: true,
		RPCEnvKey: "OPTIMISM_RPC_URL", DefaultRPC: "https://opt-mainnet.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkOptimismSepolia, Name: "OP Sepolia", ChainID: 11155420, NativeCurrency: "ETH", Explorer: "https://sepolia-optimism.etherscan.io", EVM: true,
		RPCEnvKey: "OPTIMISM_SEPOLIA_RPC_URL", DefaultRPC: "https://opt-sepolia.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkPolygon, Name: "Polygon Mainnet", ChainID: 137, NativeCurrency: "MATIC", Explorer: "https://polygonscan.com", EVM: true,
		RPCEnvKey: "POLYGON_RPC_URL", DefaultRPC: "https://polygon-mainnet.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkPolygonAmoy, Name: "Polygon Amoy", ChainID: 80002, NativeCurrency: "MATIC", Explorer: "https://amoy.polygonscan.com", EVM: true,
		RPCEnvKey: "POLYGON_AMOY_RPC_URL", DefaultRPC: "https://polygon-amoy.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkArbitrum, Name: "Arbitrum One", ChainID: 42161, NativeCurrency: "ETH", Explorer: "https://arbiscan.io", EVM: true,
		RPCEnvKey: "ARBITRUM_RPC_URL", DefaultRPC: "https://arb-mainnet.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkArbitrumSepolia, Name: "Arbitrum Sepolia", ChainID: 421614, NativeCurrency: "ETH", Explorer: "https://sepolia.arbiscan.io", EVM: true,
		RPCEnvKey: "ARBITRUM_SEPOLIA_RPC_URL", DefaultRPC: "https://arb-sepolia.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkAvalanche, Name: "Avalanche C-Chain", ChainID: 43114, NativeCurrency: "AVAX", Explorer: "https://snowtrace.io", EVM: true,
		RPCEnvKey: "AVALANCHE_RPC_URL", DefaultRPC: "https://avax-mainnet.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkAvalancheFuji, Name: "Avalanche Fuji", ChainID: 43113, NativeCurrency: "AVAX", Explorer: "https://testnet.snowtrace.io", EVM: true,
		RPCEnvKey: "AVALANCHE_FUJI_RPC_URL", DefaultRPC: "https://avax-fuji.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkBNB, Name: "BNB Smart Chain", ChainID: 56, NativeCurrency: "BNB", Explorer: "https://bscscan.com", EVM: true,
		RPCEnvKey: "BNB_RPC_URL", DefaultRPC: "https://bnb-mainnet.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkBNBTestnet, Name: "BNB Smart Chain Testnet", ChainID: 97, NativeCurrency: "BNB", Explorer: "https://testnet.bscscan.com", EVM: true,
		RPCEnvKey: "BNB_TESTNET_RPC_URL", DefaultRPC: "https://bnb-testnet.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkSolana, Name: "Solana Mainnet", NativeCurrency: "SOL", Explorer: "https://explorer.solana.com",
		RPCEnvKey: "SOLANA_RPC_URL", DefaultRPC: "https://solana-mainnet.g.alchemy.com/v2/YOUR_API_KEY"},
	{ID: types.NetworkSolanaDevnet, Name: "Solana Devnet", NativeCurrency: "SOL", Explorer: "https://explorer.solana.com?cluster=devnet",
		RPCEnvKey: "SOLANA_DEVNET_RPC_URL", DefaultRPC: "https://solana-devnet.g.alchemy.com/v2/YOUR_API_KEY"},
}

var byID = func() map[types.NetworkID]Descriptor {
	m := make(map[types.NetworkID]Descriptor, len(descriptors))
	for _, d := range descriptors {
		m[d.ID] = d
	}
	return m
}()

// Lookup returns the descriptor for id.
func Lookup(id types.NetworkID) (Descriptor, bool) {
	d, ok := byID[id]
	return d, ok
}

// Get returns the descriptor for a raw identifier, or an error listing all supported networks.
func Get(id string) (Descriptor, error) {
	d, ok := byID[types.NetworkID(id)]
	if !ok {
		return Descriptor{}, types.UnsupportedNetworkError(id, IDs())
	}
	return d, nil
}

// Valid reports whether id names a registered network.
func Valid(id string) bool {
	_, ok := byID[types.NetworkID(id)]
	return ok
}

// IDs returns every registered network identifier in table order.
func IDs() []types.NetworkID {
	ids := make([]types.NetworkID, len(descriptors))
	for i, d := range descriptors {
		ids[i] = d.ID
	}
	return ids
}

// All returns a copy of the full table.
func All() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}
