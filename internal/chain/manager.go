// Package chain manages one live RPC connection per network and tracks block heights.
package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/yourorg/lending-monitor/internal/metrics"
	"github.com/yourorg/lending-monitor/internal/network"
	"github.com/yourorg/lending-monitor/internal/types"
)

// EndpointResolver maps a network to its RPC URL. config.Config satisfies it.
type EndpointResolver interface {
	Endpoint(id types.NetworkID) (string, error)
}

// Options tunes the Manager. Zero values fall back to the defaults below.
type Options struct {
	Dialer       Dialer
	Clock        clock.Clock
	PollInterval time.Duration
	CallTimeout  time.Duration
	Subscribe    bool
	DialRetries  int
	RateLimit    float64
	RateBurst    int

	// NewBackOff builds the retry policy for the initial dial. Tests use a zero backoff.
	NewBackOff func() backoff.BackOff
}

func (o *Options) setDefaults() {
	if o.Dialer == nil {
		o.Dialer = DialEthereum
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 12 * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 15 * time.Second
	}
	if o.DialRetries < 0 {
		o.DialRetries = 0
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	if o.NewBackOff == nil {
		o.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		}
	}
}

type connection struct {
	client  Client
	limiter *rate.Limiter
}

// Manager owns the per-network connections. Connections are created on first use and
// kept until Close; each one has a background task keeping its block height fresh.
type Manager struct {
	resolver EndpointResolver
	opts     Options

	mu      sync.RWMutex
	conns   map[types.NetworkID]*connection
	heights map[types.NetworkID]uint64

	dials singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager. Background trackers live until Close is called.
func NewManager(resolver EndpointResolver, opts Options) *Manager {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		resolver: resolver,
		opts:     opts,
		conns:    make(map[types.NetworkID]*connection),
		heights:  make(map[types.NetworkID]uint64),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// EnsureConnection connects to a network if it is not connected yet. The first block
// height is read synchronously as a liveness check; failure leaves no connection behind.
func (m *Manager) EnsureConnection(ctx context.Context, id types.NetworkID) error {
	d, err := network.Get(string(id))
	if err != nil {
		return err
	}
	if !d.EVM {
		return fmt.Errorf("%w: %s does not expose an Ethereum JSON-RPC interface", types.ErrConnection, id)
	}
	if m.Connected(id) {
		return nil
	}

	_, err, _ = m.dials.Do(string(id), func() (interface{}, error) {
		if m.Connected(id) {
			return nil, nil
		}
		return nil, m.connect(ctx, id)
	})
	return err
}

func (m *Manager) connect(ctx context.Context, id types.NetworkID) error {
	endpoint, err := m.resolver.Endpoint(id)
	if err != nil {
		return err
	}

	var (
		client Client
		height uint64
	)
	attempt := 0
	op := func() error {
		attempt++
		c, err := m.opts.Dialer(ctx, id, endpoint)
		if err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
		defer cancel()
		h, err := c.BlockNumber(callCtx)
		if err != nil {
			c.Close()
			return err
		}
		client, height = c, h
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logrus.WithFields(logrus.Fields{
			"network": id,
			"attempt": attempt,
			"retry":   wait,
		}).Warnf("RPC connection attempt failed: %v", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(m.opts.NewBackOff(), uint64(m.opts.DialRetries)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		metrics.RPCCalls.WithLabelValues(string(id), "eth_blockNumber", "error").Inc()
		return fmt.Errorf("%w: %s: %v", types.ErrConnection, id, err)
	}
	metrics.RPCCalls.WithLabelValues(string(id), "eth_blockNumber", "ok").Inc()

	limit := rate.Inf
	if m.opts.RateLimit > 0 {
		limit = rate.Limit(m.opts.RateLimit)
	}

	m.mu.Lock()
	m.conns[id] = &connection{client: client, limiter: rate.NewLimiter(limit, m.opts.RateBurst)}
	m.heights[id] = height
	connected := len(m.conns)
	m.mu.Unlock()

	metrics.Connections.Set(float64(connected))
	metrics.BlockHeight.WithLabelValues(string(id)).Set(float64(height))
	logrus.WithFields(logrus.Fields{
		"network": id,
		"block":   height,
	}).Info("Connected to network")

	// The ticker exists before the tracker starts so a mock clock can drive it deterministically.
	ticker := m.opts.Clock.Ticker(m.opts.PollInterval)
	m.wg.Add(1)
	go m.track(id, client, ticker)
	return nil
}

// track keeps the block height fresh from new-head notifications when the transport
// supports them, and from the periodic poll in every case.
func (m *Manager) track(id types.NetworkID, client Client, ticker *clock.Ticker) {
	defer m.wg.Done()
	defer ticker.Stop()

	var (
		heads   chan *gethtypes.Header
		subErrs <-chan error
	)
	if m.opts.Subscribe {
		ch := make(chan *gethtypes.Header, 16)
		sub, err := client.SubscribeNewHead(m.ctx, ch)
		if err != nil {
			logrus.WithField("network", id).Debugf("Head subscription unavailable, polling only: %v", err)
		} else {
			defer sub.Unsubscribe()
			heads, subErrs = ch, sub.Err()
		}
	}

	for {
		select {
		case <-m.ctx.Done():
			return
		case h := <-heads:
			if h != nil && h.Number != nil {
				m.observe(id, h.Number.Uint64())
			}
		case err := <-subErrs:
			logrus.WithField("network", id).Warnf("Head subscription ended, falling back to polling: %v", err)
			heads, subErrs = nil, nil
		case <-ticker.C:
			m.poll(id, client)
		}
	}
}

func (m *Manager) poll(id types.NetworkID, client Client) {
	ctx, cancel := context.WithTimeout(m.ctx, m.opts.CallTimeout)
	defer cancel()

	h, err := client.BlockNumber(ctx)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		metrics.RPCCalls.WithLabelValues(string(id), "eth_blockNumber", "error").Inc()
		logrus.WithField("network", id).Warnf("Block height poll failed: %v", err)
		return
	}
	metrics.RPCCalls.WithLabelValues(string(id), "eth_blockNumber", "ok").Inc()
	m.observe(id, h)
}

// observe records a height only if it moves forward, so a late or reordered
// update can never roll the tracked height back.
func (m *Manager) observe(id types.NetworkID, height uint64) {
	m.mu.Lock()
	if height <= m.heights[id] {
		m.mu.Unlock()
		return
	}
	m.heights[id] = height
	m.mu.Unlock()

	metrics.BlockHeight.WithLabelValues(string(id)).Set(float64(height))
}

// CurrentBlock returns the last known height, or 0 for a network never connected.
func (m *Manager) CurrentBlock(id types.NetworkID) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.heights[id]
}

// Connected reports whether a live connection exists for the network.
func (m *Manager) Connected(id types.NetworkID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conns[id]
	return ok
}

// ListConnected returns the live networks in registry order.
func (m *Manager) ListConnected() []types.NetworkID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.NetworkID, 0, len(m.conns))
	for _, id := range network.IDs() {
		if _, ok := m.conns[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Caller returns a rate-limited, timeout-bounded contract caller for a connected network.
func (m *Manager) Caller(id types.NetworkID) (ethereum.ContractCaller, error) {
	m.mu.RLock()
	conn, ok := m.conns[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not connected", types.ErrConnection, id)
	}
	return &limitedCaller{
		network: id,
		client:  conn.client,
		limiter: conn.limiter,
		timeout: m.opts.CallTimeout,
	}, nil
}

// Close stops every tracker and closes the underlying clients.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, conn := range m.conns {
		conn.client.Close()
		delete(m.conns, id)
	}
	metrics.Connections.Set(0)
}
