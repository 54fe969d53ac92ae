package fetch

import (
	"context"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/lending-monitor/internal/model"
	"github.com/yourorg/lending-monitor/internal/types"
)

// CompoundComets are the USDC Comet markets per network.
var CompoundComets = map[types.NetworkID]string{
	types.NetworkEthereum: "0xc3d688B66703497DAA19211EEdff47f25384cdc3",
	types.NetworkPolygon:  "0xF25212E676D1F7F89Cd72fFEe66158f541246445",
	types.NetworkArbitrum: "0xA5EDBDD9646f8dFF606d7448e414884C7d905dCA",
	types.NetworkBase:     "0x9c4ec768c28520B50860ea7a15bd7213a9fF58bf",
	types.NetworkOptimism: "0x2e44e174f7D53F0212823acC11C01A11d58c5bCB",
}

const (
	compoundFallbackAsset = "USDC"
	wad                   = 1e18
)

var wadInt = big.NewInt(1e18)

// CompoundAdapter reads Compound V3 Comet markets. The supply rate is queried at the
// market's current utilization and annualized without compounding.
type CompoundAdapter struct {
	base
}

// NewCompoundAdapter creates a Compound V3 adapter. Caller-supplied addresses are Comet addresses.
func NewCompoundAdapter(chain ChainReader, opts ...Option) *CompoundAdapter {
	defaults := make(map[types.NetworkID][]string, len(CompoundComets))
	for id, comet := range CompoundComets {
		defaults[id] = []string{comet}
	}
	return &CompoundAdapter{base: newBase(types.ProtocolCompoundV3, chain, CompoundComets, defaults, opts)}
}

func (c *CompoundAdapter) FetchMetrics(ctx context.Context, comets []string, network types.NetworkID) ([]model.PoolMetric, error) {
	if _, deployed, err := c.deployment(network); !deployed {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return c.collect(ctx, network, comets, func(ctx context.Context, caller ethereum.ContractCaller, comet string) (model.PoolMetric, error) {
		return c.readComet(ctx, caller, common.HexToAddress(comet))
	})
}

func (c *CompoundAdapter) readComet(ctx context.Context, caller ethereum.ContractCaller, addr common.Address) (model.PoolMetric, error) {
	comet := contract{caller: caller, abi: cometABI, addr: addr}

	totalSupply, err := comet.readBig(ctx, "totalSupply")
	if err != nil {
		return model.PoolMetric{}, err
	}
	totalBorrow, err := comet.readBig(ctx, "totalBorrow")
	if err != nil {
		return model.PoolMetric{}, err
	}
	decimals, err := comet.readUint8(ctx, "decimals")
	if err != nil {
		return model.PoolMetric{}, err
	}

	utilization := Utilization(totalSupply, totalBorrow)
	supplyRate, err := comet.readUint64(ctx, "getSupplyRate", utilization)
	if err != nil {
		return model.PoolMetric{}, err
	}

	return model.PoolMetric{
		Asset:     c.baseSymbol(ctx, caller, comet),
		APY:       SupplyRateToAPY(supplyRate),
		TVL:       scaleDown(totalSupply, decimals),
		APYSource: model.APYSourceOnchain,
		AdditionalData: map[string]string{
			"utilization":   strconv.FormatFloat(toFloat(utilization)/wad, 'f', -1, 64),
			"supply_rate":   strconv.FormatUint(supplyRate, 10),
			"total_supply":  strconv.FormatFloat(scaleDown(totalSupply, decimals), 'f', -1, 64),
			"total_borrow":  strconv.FormatFloat(scaleDown(totalBorrow, decimals), 'f', -1, 64),
			"comet_address": addr.Hex(),
		},
	}, nil
}

// baseSymbol names the market's base token, falling back to USDC which backs every default market.
func (c *CompoundAdapter) baseSymbol(ctx context.Context, caller ethereum.ContractCaller, comet contract) string {
	token, err := comet.readAddress(ctx, "baseToken")
	if err != nil {
		return compoundFallbackAsset
	}
	symbol, err := contract{caller: caller, abi: erc20ABI, addr: token}.readString(ctx, "symbol")
	if err != nil || symbol == "" {
		return compoundFallbackAsset
	}
	return symbol
}

// Utilization returns totalBorrow/totalSupply as a 1e18 fixed-point value, 0 for an empty market.
func Utilization(totalSupply, totalBorrow *big.Int) *big.Int {
	if totalSupply.Sign() <= 0 {
		return new(big.Int)
	}
	u := new(big.Int).Mul(totalBorrow, wadInt)
	return u.Quo(u, totalSupply)
}

// SupplyRateToAPY annualizes a 1e18-scaled per-second supply rate into a percentage.
func SupplyRateToAPY(rate uint64) float64 {
	return float64(rate) / wad * SecondsPerYear * 100
}
