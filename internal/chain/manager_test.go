package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/lending-monitor/internal/types"
)

type fakeSub struct {
	errs chan error
}

func (s *fakeSub) Err() <-chan error { return s.errs }
func (s *fakeSub) Unsubscribe()      {}

type fakeClient struct {
	mu         sync.Mutex
	height     uint64
	blockErr   error
	blockCalls int
	canSub     bool
	heads      chan<- *gethtypes.Header
	closed     bool
	call       func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

func (f *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.call != nil {
		return f.call(ctx, msg)
	}
	return nil, nil
}

func (f *fakeClient) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockCalls++
	return f.height, f.blockErr
}

func (f *fakeClient) SubscribeNewHead(_ context.Context, ch chan<- *gethtypes.Header) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.canSub {
		return nil, errors.New("notifications not supported")
	}
	f.heads = ch
	return &fakeSub{errs: make(chan error)}, nil
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeClient) set(height uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.height = height
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockCalls
}

func (f *fakeClient) headChan() chan<- *gethtypes.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heads
}

type resolverFunc func(types.NetworkID) (string, error)

func (r resolverFunc) Endpoint(id types.NetworkID) (string, error) { return r(id) }

var testResolver = resolverFunc(func(id types.NetworkID) (string, error) {
	return "http://" + string(id) + ".test", nil
})

func newTestManager(t *testing.T, client *fakeClient, mock *clock.Mock, opts Options) (*Manager, *int32) {
	t.Helper()
	var dials int32
	opts.Dialer = func(context.Context, types.NetworkID, string) (Client, error) {
		atomic.AddInt32(&dials, 1)
		return client, nil
	}
	opts.Clock = mock
	opts.NewBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	m := NewManager(testResolver, opts)
	t.Cleanup(m.Close)
	return m, &dials
}

func TestEnsureConnection_ConcurrentCallersDialOnce(t *testing.T) {
	client := &fakeClient{height: 100}
	m, dials := newTestManager(t, client, clock.NewMock(), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.EnsureConnection(context.Background(), types.NetworkBase))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(dials))
	assert.Equal(t, uint64(100), m.CurrentBlock(types.NetworkBase))
	assert.Equal(t, []types.NetworkID{types.NetworkBase}, m.ListConnected())
	assert.True(t, m.Connected(types.NetworkBase))
}

func TestEnsureConnection_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		network types.NetworkID
		wantErr error
	}{
		{"unknown network", "fantom", types.ErrUnsupportedNetwork},
		{"non-EVM network", types.NetworkSolana, types.ErrConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, dials := newTestManager(t, &fakeClient{height: 1}, clock.NewMock(), Options{})
			err := m.EnsureConnection(context.Background(), tt.network)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, atomic.LoadInt32(dials))
			assert.Empty(t, m.ListConnected())
		})
	}
}

func TestEnsureConnection_LivenessFailure(t *testing.T) {
	client := &fakeClient{blockErr: errors.New("connection refused")}
	m, dials := newTestManager(t, client, clock.NewMock(), Options{DialRetries: 2})

	err := m.EnsureConnection(context.Background(), types.NetworkEthereum)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConnection)
	assert.Equal(t, int32(3), atomic.LoadInt32(dials))
	assert.False(t, m.Connected(types.NetworkEthereum))
	assert.Zero(t, m.CurrentBlock(types.NetworkEthereum))
	assert.True(t, client.closed)
}

func TestCurrentBlock_UnknownNetworkIsZero(t *testing.T) {
	m, _ := newTestManager(t, &fakeClient{}, clock.NewMock(), Options{})
	assert.Zero(t, m.CurrentBlock(types.NetworkPolygon))
	assert.Zero(t, m.CurrentBlock("fantom"))
}

func TestTracker_PollAdvancesHeightMonotonically(t *testing.T) {
	mock := clock.NewMock()
	client := &fakeClient{height: 100}
	m, _ := newTestManager(t, client, mock, Options{PollInterval: 12 * time.Second})

	require.NoError(t, m.EnsureConnection(context.Background(), types.NetworkArbitrum))
	assert.Equal(t, 1, client.calls())

	client.set(112)
	mock.Add(12 * time.Second)
	assert.Eventually(t, func() bool {
		return m.CurrentBlock(types.NetworkArbitrum) == 112
	}, time.Second, 5*time.Millisecond)

	// A lagging node must not roll the height back.
	client.set(90)
	mock.Add(12 * time.Second)
	assert.Eventually(t, func() bool { return client.calls() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(112), m.CurrentBlock(types.NetworkArbitrum))
}

func TestTracker_PollFailureIsTolerated(t *testing.T) {
	mock := clock.NewMock()
	client := &fakeClient{height: 50}
	m, _ := newTestManager(t, client, mock, Options{})

	require.NoError(t, m.EnsureConnection(context.Background(), types.NetworkOptimism))

	client.mu.Lock()
	client.blockErr = errors.New("timeout")
	client.mu.Unlock()
	mock.Add(12 * time.Second)
	assert.Eventually(t, func() bool { return client.calls() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(50), m.CurrentBlock(types.NetworkOptimism))

	client.mu.Lock()
	client.blockErr = nil
	client.height = 60
	client.mu.Unlock()
	mock.Add(12 * time.Second)
	assert.Eventually(t, func() bool {
		return m.CurrentBlock(types.NetworkOptimism) == 60
	}, time.Second, 5*time.Millisecond)
}

func TestTracker_SubscriptionHeads(t *testing.T) {
	client := &fakeClient{height: 10, canSub: true}
	m, _ := newTestManager(t, client, clock.NewMock(), Options{Subscribe: true})

	require.NoError(t, m.EnsureConnection(context.Background(), types.NetworkEthereum))
	require.Eventually(t, func() bool { return client.headChan() != nil }, time.Second, 5*time.Millisecond)

	client.headChan() <- &gethtypes.Header{Number: big.NewInt(25)}
	assert.Eventually(t, func() bool {
		return m.CurrentBlock(types.NetworkEthereum) == 25
	}, time.Second, 5*time.Millisecond)
}

func TestCaller(t *testing.T) {
	client := &fakeClient{height: 1}
	m, _ := newTestManager(t, client, clock.NewMock(), Options{CallTimeout: 20 * time.Millisecond})

	_, err := m.Caller(types.NetworkBase)
	assert.ErrorIs(t, err, types.ErrConnection)

	require.NoError(t, m.EnsureConnection(context.Background(), types.NetworkBase))
	caller, err := m.Caller(types.NetworkBase)
	require.NoError(t, err)

	target := common.HexToAddress("0x0000000000000000000000000000000000000001")
	client.call = func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
		if *msg.To == target {
			return []byte{0x01}, nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}

	out, err := caller.CallContract(context.Background(), ethereum.CallMsg{To: &target}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, out)

	other := common.HexToAddress("0x0000000000000000000000000000000000000002")
	_, err = caller.CallContract(context.Background(), ethereum.CallMsg{To: &other}, nil)
	assert.ErrorIs(t, err, types.ErrContractCall)
}

func TestClose(t *testing.T) {
	client := &fakeClient{height: 1}
	m := NewManager(testResolver, Options{
		Dialer: func(context.Context, types.NetworkID, string) (Client, error) { return client, nil },
		Clock:  clock.NewMock(),
	})

	require.NoError(t, m.EnsureConnection(context.Background(), types.NetworkPolygon))
	m.Close()

	assert.True(t, client.closed)
	assert.False(t, m.Connected(types.NetworkPolygon))
}
