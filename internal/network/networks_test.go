package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/lending-monitor/internal/types"
)

func TestGet_KnownNetwork(t *testing.T) {
	d, err := Get("base")
	require.NoError(t, err)
	assert.Equal(t, "Base Mainnet", d.Name)
	assert.Equal(t, uint64(8453), d.ChainID)
	assert.Equal(t, "ETH", d.NativeCurrency)
	assert.True(t, d.EVM)
}

func TestGet_UnknownNetworkListsSupported(t *testing.T) {
	_, err := Get("fantom")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnsupportedNetwork))
	for _, id := range IDs() {
		assert.Contains(t, err.Error(), string(id))
	}
}

func TestTable_Invariants(t *testing.T) {
	all := All()
	assert.Len(t, all, 16)

	seen := make(map[types.NetworkID]bool)
	for _, d := range all {
		assert.False(t, seen[d.ID], "duplicate network %s", d.ID)
		seen[d.ID] = true
		assert.NotEmpty(t, d.RPCEnvKey)
		assert.NotEmpty(t, d.DefaultRPC)
	}

	sol, ok := Lookup(types.NetworkSolana)
	require.True(t, ok)
	assert.False(t, sol.EVM)
	assert.False(t, Valid("mainnet"))
	assert.True(t, Valid("polygon-amoy"))
}

func TestDetectFromRPC(t *testing.T) {
	tests := []struct {
		url  string
		want types.NetworkID
	}{
		{"https://eth-mainnet.g.alchemy.com/v2/key", types.NetworkEthereum},
		{"https://eth-sepolia.g.alchemy.com/v2/key", types.NetworkEthereumSepolia},
		{"https://base-sepolia.g.alchemy.com/v2/key", types.NetworkBaseSepolia},
		{"https://BASE-MAINNET.g.alchemy.com/v2/key", types.NetworkBase},
		{"https://arb-sepolia.g.alchemy.com/v2/key", types.NetworkArbitrumSepolia},
		{"https://polygon-amoy.g.alchemy.com/v2/key", types.NetworkPolygonAmoy},
		{"https://mainnet.base.org", types.NetworkBase},
		{"https://arbitrum.llamarpc.com", types.NetworkArbitrum},
		{"https://bsc-dataseed.binance.org", types.NetworkBNB},
		{"https://api.avax.network/ext/bc/C/rpc", types.NetworkAvalanche},
		{"https://mainnet.infura.io/v3/key", types.NetworkEthereum},
		{"", types.NetworkEthereum},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFromRPC(tt.url))
		})
	}
}
