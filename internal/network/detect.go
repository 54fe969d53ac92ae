package network

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/lending-monitor/internal/types"
)

type urlPattern struct {
	needles []string
	network types.NetworkID
}

// Provider-specific host fragments are checked before the generic chain-family ones,
// so "base-sepolia" wins over "base" and "arb-sepolia" over "arb".
var detectPatterns = []urlPattern{
	{[]string{"eth-mainnet"}, types.NetworkEthereum},
	{[]string{"eth-sepolia"}, types.NetworkEthereumSepolia},
	{[]string{"base-mainnet"}, types.NetworkBase},
	{[]string{"base-sepolia"}, types.NetworkBaseSepolia},
	{[]string{"opt-mainnet"}, types.NetworkOptimism},
	{[]string{"opt-sepolia"}, types.NetworkOptimismSepolia},
	{[]string{"polygon-mainnet"}, types.NetworkPolygon},
	{[]string{"polygon-amoy"}, types.NetworkPolygonAmoy},
	{[]string{"arb-mainnet"}, types.NetworkArbitrum},
	{[]string{"arb-sepolia"}, types.NetworkArbitrumSepolia},
	{[]string{"avax-mainnet"}, types.NetworkAvalanche},
	{[]string{"avax-fuji"}, types.NetworkAvalancheFuji},
	{[]string{"bnb-mainnet"}, types.NetworkBNB},
	{[]string{"bnb-testnet"}, types.NetworkBNBTestnet},
	{[]string{"solana-mainnet"}, types.NetworkSolana},
	{[]string{"solana-devnet"}, types.NetworkSolanaDevnet},

	{[]string{"base"}, types.NetworkBase},
	{[]string{"polygon"}, types.NetworkPolygon},
	{[]string{"arbitrum", "arb"}, types.NetworkArbitrum},
	{[]string{"optimism", "opt"}, types.NetworkOptimism},
	{[]string{"avalanche", "avax"}, types.NetworkAvalanche},
	{[]string{"bsc", "bnb"}, types.NetworkBNB},
	{[]string{"solana"}, types.NetworkSolana},
}

// DetectFromRPC guesses the network an RPC URL points at from provider naming conventions.
// Unknown URLs fall back to ethereum.
func DetectFromRPC(rpcURL string) types.NetworkID {
	u := strings.ToLower(rpcURL)
	for _, p := range detectPatterns {
		for _, needle := range p.needles {
			if strings.Contains(u, needle) {
				return p.network
			}
		}
	}

	logrus.Warnf("Could not detect network from RPC URL %q, defaulting to ethereum", redact(rpcURL))
	return types.NetworkEthereum
}

// redact trims the URL so API keys embedded in the path do not end up in logs.
func redact(rpcURL string) string {
	if len(rpcURL) > 50 {
		return rpcURL[:50] + "..."
	}
	return rpcURL
}
