package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"golang.org/x/time/rate"

	"github.com/yourorg/lending-monitor/internal/metrics"
	"github.com/yourorg/lending-monitor/internal/types"
)

// limitedCaller bounds every eth_call by the network's token bucket and the call timeout.
type limitedCaller struct {
	network types.NetworkID
	client  Client
	limiter *rate.Limiter
	timeout time.Duration
}

func (c *limitedCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s rate limiter: %v", types.ErrContractCall, c.network, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.client.CallContract(ctx, msg, block)
	metrics.RPCDuration.WithLabelValues(string(c.network), "eth_call").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCCalls.WithLabelValues(string(c.network), "eth_call", "error").Inc()
		return nil, fmt.Errorf("%w: %v", types.ErrContractCall, err)
	}
	metrics.RPCCalls.WithLabelValues(string(c.network), "eth_call", "ok").Inc()
	return out, nil
}
