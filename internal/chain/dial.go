package chain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/lending-monitor/internal/types"
)

// Client is the slice of an Ethereum JSON-RPC client the monitor needs.
// *ethclient.Client satisfies it.
type Client interface {
	ethereum.ContractCaller
	BlockNumber(ctx context.Context) (uint64, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *gethtypes.Header) (ethereum.Subscription, error)
	Close()
}

// Dialer opens a Client for a network endpoint.
type Dialer func(ctx context.Context, network types.NetworkID, endpoint string) (Client, error)

var _ Client = (*ethclient.Client)(nil)

// DialEthereum connects through go-ethereum's rpc client. HTTP endpoints ride on a
// retrying transport; websocket endpoints also get head subscriptions.
func DialEthereum(ctx context.Context, network types.NetworkID, endpoint string) (Client, error) {
	rc, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(newRetryClient(network).StandardClient()))
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(rc), nil
}

func newRetryClient(network types.NetworkID) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 250 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = retryLogger{entry: logrus.WithField("network", network)}
	return c
}

// retryLogger routes retryablehttp's leveled logging into logrus at debug level.
type retryLogger struct {
	entry *logrus.Entry
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.with(kv).Warn(msg) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.with(kv).Debug(msg) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.with(kv).Debug(msg) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.with(kv).Debug(msg) }

func (l retryLogger) with(kv []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok && k != "url" {
			fields[k] = kv[i+1]
		}
	}
	return l.entry.WithFields(fields)
}
