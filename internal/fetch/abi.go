package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/lending-monitor/internal/types"
)

const aaveDataProviderJSON = `[
 {"type":"function","name":"getReserveData","stateMutability":"view",
  "inputs":[{"name":"asset","type":"address"}],
  "outputs":[
   {"name":"availableLiquidity","type":"uint256"},
   {"name":"totalStableDebt","type":"uint256"},
   {"name":"totalVariableDebt","type":"uint256"},
   {"name":"liquidityRate","type":"uint256"},
   {"name":"variableBorrowRate","type":"uint256"},
   {"name":"stableBorrowRate","type":"uint256"},
   {"name":"averageStableBorrowRate","type":"uint256"},
   {"name":"liquidityIndex","type":"uint256"},
   {"name":"variableBorrowIndex","type":"uint256"},
   {"name":"lastUpdateTimestamp","type":"uint40"}]}
]`

const erc20JSON = `[
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

const cometJSON = `[
 {"type":"function","name":"getSupplyRate","stateMutability":"view",
  "inputs":[{"name":"utilization","type":"uint256"}],"outputs":[{"name":"","type":"uint64"}]},
 {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"totalBorrow","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"baseToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const vaultJSON = `[
 {"type":"function","name":"totalAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"asset","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var (
	aaveDataProviderABI = mustParseABI(aaveDataProviderJSON)
	erc20ABI            = mustParseABI(erc20JSON)
	cometABI            = mustParseABI(cometJSON)
	vaultABI            = mustParseABI(vaultJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

// contract binds an ABI to an address for read-only calls at the latest block.
type contract struct {
	caller ethereum.ContractCaller
	abi    abi.ABI
	addr   common.Address
}

func (c contract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: data}, nil)
	if err != nil {
		if errors.Is(err, types.ErrContractCall) {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", types.ErrContractCall, method, err)
	}
	res, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", types.ErrContractCall, method, err)
	}
	return res, nil
}

func (c contract) readBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	res, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", types.ErrContractCall, method, res[0])
	}
	return v, nil
}

func (c contract) readUint8(ctx context.Context, method string) (uint8, error) {
	res, err := c.call(ctx, method)
	if err != nil {
		return 0, err
	}
	v, ok := res[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: %s returned %T", types.ErrContractCall, method, res[0])
	}
	return v, nil
}

func (c contract) readUint64(ctx context.Context, method string, args ...interface{}) (uint64, error) {
	res, err := c.call(ctx, method, args...)
	if err != nil {
		return 0, err
	}
	v, ok := res[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("%w: %s returned %T", types.ErrContractCall, method, res[0])
	}
	return v, nil
}

func (c contract) readString(ctx context.Context, method string) (string, error) {
	res, err := c.call(ctx, method)
	if err != nil {
		return "", err
	}
	v, ok := res[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s returned %T", types.ErrContractCall, method, res[0])
	}
	return v, nil
}

func (c contract) readAddress(ctx context.Context, method string) (common.Address, error) {
	res, err := c.call(ctx, method)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := res[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s returned %T", types.ErrContractCall, method, res[0])
	}
	return v, nil
}

// scaleDown converts a raw token amount to whole units.
func scaleDown(v *big.Int, decimals uint8) float64 {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(v), new(big.Float).SetInt(unit)).Float64()
	return out
}

func toFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func sortedNetworks(m map[types.NetworkID]string) []types.NetworkID {
	out := make([]types.NetworkID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
