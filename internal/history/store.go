// Package history keeps a bounded, block-ordered reading history per pool for the process lifetime.
package history

import (
	"sync"

	"github.com/yourorg/lending-monitor/internal/metrics"
	"github.com/yourorg/lending-monitor/internal/model"
)

// DefaultMaxHistory is the per-pool capacity when the caller passes none.
const DefaultMaxHistory = 100

// Store maps pool ids to readings in strictly increasing block order.
type Store struct {
	mu    sync.RWMutex
	pools map[string][]model.PoolMetric
}

func NewStore() *Store {
	return &Store{pools: make(map[string][]model.PoolMetric)}
}

// Store appends each metric whose block is newer than the pool's last stored block and
// evicts the oldest entries beyond maxHistory. Re-observations of a recorded block are
// dropped silently. It returns how many metrics were appended.
func (s *Store) Store(batch []model.PoolMetric, maxHistory int) int {
	if maxHistory < 1 {
		maxHistory = DefaultMaxHistory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	appended := 0
	for _, m := range batch {
		seq := s.pools[m.PoolID]
		if n := len(seq); n > 0 && m.BlockNumber <= seq[n-1].BlockNumber {
			continue
		}
		seq = append(seq, m)
		if len(seq) > maxHistory {
			// Copy into a fresh slice so evicted entries do not pin the old backing array.
			trimmed := make([]model.PoolMetric, maxHistory)
			copy(trimmed, seq[len(seq)-maxHistory:])
			seq = trimmed
		}
		s.pools[m.PoolID] = seq
		appended++
	}

	metrics.PoolsTracked.Set(float64(len(s.pools)))
	return appended
}

// GetHistory returns a copy of the pool's full sequence, oldest first. Unknown pools yield nil.
func (s *Store) GetHistory(poolID string) []model.PoolMetric {
	return s.Recent(poolID, 0)
}

// Recent returns up to n most recent entries, oldest first. n <= 0 returns everything.
func (s *Store) Recent(poolID string, n int) []model.PoolMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.pools[poolID]
	if n > 0 && n < len(seq) {
		seq = seq[len(seq)-n:]
	}
	if len(seq) == 0 {
		return nil
	}
	out := make([]model.PoolMetric, len(seq))
	copy(out, seq)
	return out
}

// Latest returns the most recent stored entry for the pool.
func (s *Store) Latest(poolID string) (model.PoolMetric, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.pools[poolID]
	if len(seq) == 0 {
		return model.PoolMetric{}, false
	}
	return seq[len(seq)-1], true
}

// PoolCount returns the number of distinct pools tracked.
func (s *Store) PoolCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools)
}
