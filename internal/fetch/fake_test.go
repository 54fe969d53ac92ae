package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/lending-monitor/internal/types"
)

var allABIs = []abi.ABI{aaveDataProviderABI, erc20ABI, cometABI, vaultABI}

// fakeCaller answers eth_call by selector, packing canned outputs with the real ABI codec.
// Methods without a canned answer revert.
type fakeCaller struct {
	mu        sync.Mutex
	responses map[common.Address]map[string][]interface{}
	calls     int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[common.Address]map[string][]interface{})}
}

func (f *fakeCaller) on(addr, method string, outputs ...interface{}) *fakeCaller {
	a := common.HexToAddress(addr)
	if f.responses[a] == nil {
		f.responses[a] = make(map[string][]interface{})
	}
	f.responses[a][method] = outputs
	return f
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("malformed call")
	}
	var method *abi.Method
	for _, parsed := range allABIs {
		if m, err := parsed.MethodById(msg.Data[:4]); err == nil {
			method = m
			break
		}
	}
	if method == nil {
		return nil, fmt.Errorf("unknown selector %x", msg.Data[:4])
	}
	out, ok := f.responses[*msg.To][method.Name]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return method.Outputs.Pack(out...)
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeChain serves one caller per network at a fixed block height.
type fakeChain struct {
	callers     map[types.NetworkID]*fakeCaller
	block       uint64
	callerCalls int
}

func (f *fakeChain) Caller(n types.NetworkID) (ethereum.ContractCaller, error) {
	f.callerCalls++
	c, ok := f.callers[n]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not connected", types.ErrConnection, n)
	}
	return c, nil
}

func (f *fakeChain) CurrentBlock(types.NetworkID) uint64 { return f.block }

func newMockClock() *clock.Mock {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return mock
}

// pow10 returns n * 10^exp.
func pow10(n int64, exp int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil))
}
