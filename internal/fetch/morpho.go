package fetch

import (
	"context"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/lending-monitor/internal/model"
	"github.com/yourorg/lending-monitor/internal/types"
)

// MorphoCore is the Morpho Blue singleton per network. It marks where the vaults live.
var MorphoCore = map[types.NetworkID]string{
	types.NetworkEthereum: "0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb",
	types.NetworkBase:     "0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb",
}

// MorphoVaults are the supply vaults read when the caller names none.
var MorphoVaults = map[types.NetworkID][]string{
	types.NetworkEthereum: {
		"0xa5269a8e31b93ff27b887b56720a25f844db0529", // maUSDC
		"0xba9E3b3b684719F80657af1A19DEbc3C772494a0", // mcUSDC
		"0xC2A4fBA93d4120d304c94E4fd986e0f9D213eD8A", // mcUSDT
		"0xafe7131a57e44f832cb2de78ade38cad644aac2f", // maUSDT
		"0x490bbbc2485e99989ba39b34802fafa58e26aba4", // maWETH
		"0x676E1B7d5856f4f69e10399685e17c2299370E95", // mcWETH
	},
	types.NetworkBase: {
		"0xBEEFA7B88064FeEF0cEe02AAeBBd95D30df3878F",
	},
}

// Static APY estimates by vault symbol prefix. These are not measured on-chain.
const (
	morphoAaveAPY     = 6.2
	morphoCompoundAPY = 6.8
	morphoDefaultAPY  = 5.5
)

var knownUnderlying = map[string]string{
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": "USDC",
	"0xdac17f958d2ee523a2206206994597c13d831ec7": "USDT",
	"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": "WETH",
	"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599": "WBTC",
	"0x6b175474e89094c44da98b954eedeac495271d0f": "DAI",
}

// MorphoAdapter reads Morpho supply vaults (ERC-4626). TVL is measured; APY is a
// static estimate keyed by the vault naming convention and labelled as such.
type MorphoAdapter struct {
	base
}

// NewMorphoAdapter creates a Morpho adapter. Caller-supplied addresses are vault addresses.
func NewMorphoAdapter(chain ChainReader, opts ...Option) *MorphoAdapter {
	return &MorphoAdapter{base: newBase(types.ProtocolMorpho, chain, MorphoCore, MorphoVaults, opts)}
}

func (m *MorphoAdapter) FetchMetrics(ctx context.Context, vaults []string, network types.NetworkID) ([]model.PoolMetric, error) {
	if _, deployed, err := m.deployment(network); !deployed {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return m.collect(ctx, network, vaults, func(ctx context.Context, caller ethereum.ContractCaller, vault string) (model.PoolMetric, error) {
		return m.readVault(ctx, caller, common.HexToAddress(vault))
	})
}

func (m *MorphoAdapter) readVault(ctx context.Context, caller ethereum.ContractCaller, addr common.Address) (model.PoolMetric, error) {
	vault := contract{caller: caller, abi: vaultABI, addr: addr}

	totalAssets, err := vault.readBig(ctx, "totalAssets")
	if err != nil {
		return model.PoolMetric{}, err
	}
	totalSupply, err := vault.readBig(ctx, "totalSupply")
	if err != nil {
		return model.PoolMetric{}, err
	}
	underlying, err := vault.readAddress(ctx, "asset")
	if err != nil {
		return model.PoolMetric{}, err
	}
	name, err := vault.readString(ctx, "name")
	if err != nil {
		return model.PoolMetric{}, err
	}
	symbol, err := vault.readString(ctx, "symbol")
	if err != nil {
		return model.PoolMetric{}, err
	}
	decimals, err := vault.readUint8(ctx, "decimals")
	if err != nil {
		return model.PoolMetric{}, err
	}

	return model.PoolMetric{
		Asset:     VaultAsset(underlying, symbol),
		APY:       StaticVaultAPY(symbol),
		TVL:       scaleDown(totalAssets, decimals),
		APYSource: model.APYSourceStaticEstimate,
		AdditionalData: map[string]string{
			"vault_address": addr.Hex(),
			"vault_name":    name,
			"vault_symbol":  symbol,
			"asset_address": underlying.Hex(),
			"total_assets":  totalAssets.String(),
			"total_supply":  totalSupply.String(),
			"share_price":   strconv.FormatFloat(sharePrice(totalAssets, totalSupply), 'f', -1, 64),
		},
	}, nil
}

// StaticVaultAPY returns the estimated APY for a vault: ma* vaults (Morpho-Aave),
// mc* vaults (Morpho-Compound), anything else.
func StaticVaultAPY(symbol string) float64 {
	switch {
	case strings.HasPrefix(symbol, "ma"):
		return morphoAaveAPY
	case strings.HasPrefix(symbol, "mc"):
		return morphoCompoundAPY
	default:
		return morphoDefaultAPY
	}
}

// VaultAsset names the vault's underlying token, from the known-token table first
// and the vault symbol second.
func VaultAsset(underlying common.Address, symbol string) string {
	if s, ok := knownUnderlying[strings.ToLower(underlying.Hex())]; ok {
		return s
	}
	lower := strings.ToLower(symbol)
	for _, s := range []string{"USDC", "USDT", "WETH", "DAI"} {
		if strings.Contains(lower, strings.ToLower(s)) {
			return s
		}
	}
	for _, prefix := range []string{"ma", "mc"} {
		if strings.HasPrefix(symbol, prefix) {
			return strings.TrimPrefix(symbol, prefix)
		}
	}
	return symbol
}

func sharePrice(totalAssets, totalSupply *big.Int) float64 {
	if totalSupply.Sign() <= 0 {
		return 1
	}
	return toFloat(totalAssets) / toFloat(totalSupply)
}
