// Package types contains shared identifiers and errors used across multiple packages
package types

// NetworkID identifies a blockchain network supported by the monitor
type NetworkID string

// Supported blockchain networks
const (
	NetworkEthereum        NetworkID = "ethereum"
	NetworkEthereumSepolia NetworkID = "ethereum-sepolia"
	NetworkBase            NetworkID = "base"
	NetworkBaseSepolia     NetworkID = "base-sepolia"
	NetworkOptimism        NetworkID = "optimism"
	NetworkOptimismSepolia NetworkID = "optimism-sepolia"
	NetworkPolygon         NetworkID = "polygon"
	NetworkPolygonAmoy     NetworkID = "polygon-amoy"
	NetworkArbitrum        NetworkID = "arbitrum"
	NetworkArbitrumSepolia NetworkID = "arbitrum-sepolia"
	NetworkAvalanche       NetworkID = "avalanche"
	NetworkAvalancheFuji   NetworkID = "avalanche-fuji"
	NetworkBNB             NetworkID = "bnb"
	NetworkBNBTestnet      NetworkID = "bnb-testnet"
	NetworkSolana          NetworkID = "solana"
	NetworkSolanaDevnet    NetworkID = "solana-devnet"
)

// ProtocolID identifies a lending protocol adapter
type ProtocolID string

// Supported lending protocols
const (
	ProtocolAaveV3     ProtocolID = "aave_v3"
	ProtocolCompoundV3 ProtocolID = "compound_v3"
	ProtocolMorpho     ProtocolID = "morpho"
)

// AllProtocols lists every protocol with an adapter, in display order
var AllProtocols = []ProtocolID{ProtocolAaveV3, ProtocolCompoundV3, ProtocolMorpho}
