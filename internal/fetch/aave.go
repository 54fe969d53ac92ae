package fetch

import (
	"context"
	"math"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/lending-monitor/internal/model"
	"github.com/yourorg/lending-monitor/internal/types"
)

// SecondsPerYear is the compounding period count used by every rate conversion.
const SecondsPerYear = 365.25 * 24 * 60 * 60

const ray = 1e27

// AaveDataProviders are the AaveProtocolDataProvider deployments per network.
var AaveDataProviders = map[types.NetworkID]string{
	types.NetworkEthereum:  "0x0a16f2FCC0D44FaE41cc54e079281D84A363bECD",
	types.NetworkPolygon:   "0x243Aa95cAC2a25651eda86e80bEe66114413c43b",
	types.NetworkArbitrum:  "0x243Aa95cAC2a25651eda86e80bEe66114413c43b",
	types.NetworkOptimism:  "0x243Aa95cAC2a25651eda86e80bEe66114413c43b",
	types.NetworkAvalanche: "0x69FA688f1Dc47d4B5d8029D5a35FB7a548310654",
	types.NetworkBase:      "0x2d8A3C5677189723C4cB8873CfC9C8976FDF38Ac",
}

// AaveDefaultAssets are the reserves read when the caller names none (USDC, WETH, WBTC).
var AaveDefaultAssets = map[types.NetworkID][]string{
	types.NetworkEthereum: {
		"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		"0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599",
	},
	types.NetworkPolygon: {
		"0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
		"0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619",
		"0x1BFD67037B42Cf73acF2047067bd4F2C47D9BfD6",
	},
	types.NetworkArbitrum: {
		"0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		"0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
		"0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f",
	},
	types.NetworkOptimism: {
		"0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		"0x4200000000000000000000000000000000000006",
		"0x68f180fcCe6836688e9084f035309E29Bf0A2095",
	},
	types.NetworkAvalanche: {
		"0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		"0x49D5c2BdFfac6CE2BFdB6640F4F80f226bc10bAB",
		"0x50b7545627a5162F82A992c33b87aDc75187B218",
	},
	types.NetworkBase: {
		"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		"0x4200000000000000000000000000000000000006",
		"0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf",
	},
}

// AaveAdapter reads Aave V3 reserves. Rates are ray-scaled per-second values that are
// compounded once per second over a year.
type AaveAdapter struct {
	base
}

// NewAaveAdapter creates an Aave V3 adapter. Caller-supplied addresses are reserve asset addresses.
func NewAaveAdapter(chain ChainReader, opts ...Option) *AaveAdapter {
	return &AaveAdapter{base: newBase(types.ProtocolAaveV3, chain, AaveDataProviders, AaveDefaultAssets, opts)}
}

func (a *AaveAdapter) FetchMetrics(ctx context.Context, assets []string, network types.NetworkID) ([]model.PoolMetric, error) {
	provider, deployed, err := a.deployment(network)
	if !deployed {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return a.collect(ctx, network, assets, func(ctx context.Context, caller ethereum.ContractCaller, asset string) (model.PoolMetric, error) {
		return a.readReserve(ctx, caller, provider, common.HexToAddress(asset))
	})
}

func (a *AaveAdapter) readReserve(ctx context.Context, caller ethereum.ContractCaller, provider, asset common.Address) (model.PoolMetric, error) {
	reserve, err := contract{caller: caller, abi: aaveDataProviderABI, addr: provider}.call(ctx, "getReserveData", asset)
	if err != nil {
		return model.PoolMetric{}, err
	}
	available := reserve[0].(*big.Int)
	stableDebt := reserve[1].(*big.Int)
	variableDebt := reserve[2].(*big.Int)
	liquidityRate := reserve[3].(*big.Int)

	token := contract{caller: caller, abi: erc20ABI, addr: asset}
	decimals, err := token.readUint8(ctx, "decimals")
	if err != nil {
		return model.PoolMetric{}, err
	}
	symbol, err := token.readString(ctx, "symbol")
	if err != nil || symbol == "" {
		symbol = asset.Hex()
	}

	totalDebt := new(big.Int).Add(stableDebt, variableDebt)
	tvl := new(big.Int).Add(available, totalDebt)

	return model.PoolMetric{
		Asset:     symbol,
		APY:       RayRateToAPY(liquidityRate),
		TVL:       scaleDown(tvl, decimals),
		APYSource: model.APYSourceOnchain,
		AdditionalData: map[string]string{
			"liquidity_rate":      liquidityRate.String(),
			"available_liquidity": strconv.FormatFloat(scaleDown(available, decimals), 'f', -1, 64),
			"total_debt":          strconv.FormatFloat(scaleDown(totalDebt, decimals), 'f', -1, 64),
		},
	}, nil
}

// RayRateToAPY converts a ray-scaled liquidity rate to an annual percentage yield,
// compounding every second. Non-positive rates yield 0.
func RayRateToAPY(liquidityRate *big.Int) float64 {
	ratePerSecond := toFloat(liquidityRate) / ray
	if ratePerSecond <= 0 {
		return 0
	}
	return (math.Pow(1+ratePerSecond/SecondsPerYear, SecondsPerYear) - 1) * 100
}
