package history

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/lending-monitor/internal/model"
)

func reading(pool string, block uint64, apy float64) model.PoolMetric {
	return model.PoolMetric{PoolID: pool, BlockNumber: block, APY: apy, TVL: 1000}
}

func TestStore_DeduplicatesByBlock(t *testing.T) {
	s := NewStore()

	assert.Equal(t, 1, s.Store([]model.PoolMetric{reading("p", 10, 5.0)}, 100))
	assert.Equal(t, 0, s.Store([]model.PoolMetric{reading("p", 10, 9.9)}, 100), "same block must be a no-op")
	assert.Equal(t, 0, s.Store([]model.PoolMetric{reading("p", 9, 1.0)}, 100), "older block must be a no-op")
	assert.Equal(t, 1, s.Store([]model.PoolMetric{reading("p", 11, 6.0)}, 100))

	h := s.GetHistory("p")
	require.Len(t, h, 2)
	assert.Equal(t, 5.0, h[0].APY)
	assert.Equal(t, uint64(11), h[1].BlockNumber)
}

func TestStore_EvictsOldestBeyondCapacity(t *testing.T) {
	s := NewStore()
	for b := uint64(1); b <= 7; b++ {
		s.Store([]model.PoolMetric{reading("p", b, float64(b))}, 3)
	}

	h := s.GetHistory("p")
	require.Len(t, h, 3)
	assert.Equal(t, []uint64{5, 6, 7}, blocks(h))
}

func TestStore_UnknownPoolAndCounts(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.GetHistory("missing"))
	_, ok := s.Latest("missing")
	assert.False(t, ok)
	assert.Zero(t, s.PoolCount())

	s.Store([]model.PoolMetric{reading("a", 1, 1), reading("b", 1, 1), reading("a", 2, 1)}, 0)
	assert.Equal(t, 2, s.PoolCount())

	latest, ok := s.Latest("a")
	require.True(t, ok)
	assert.Equal(t, uint64(2), latest.BlockNumber)
}

func TestStore_Recent(t *testing.T) {
	s := NewStore()
	for b := uint64(1); b <= 10; b++ {
		s.Store([]model.PoolMetric{reading("p", b, 0)}, 100)
	}

	assert.Equal(t, []uint64{8, 9, 10}, blocks(s.Recent("p", 3)))
	assert.Len(t, s.Recent("p", 50), 10)
	assert.Len(t, s.Recent("p", 0), 10)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	s.Store([]model.PoolMetric{reading("p", 1, 5)}, 10)

	h := s.GetHistory("p")
	h[0].APY = 99

	latest, _ := s.Latest("p")
	assert.Equal(t, 5.0, latest.APY)
}

// Property: any sequence of non-decreasing blocks, stored in random batch sizes,
// leaves a strictly increasing sequence no longer than the capacity.
func TestStore_OrderingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		s := NewStore()
		capacity := 1 + rng.Intn(20)
		block := uint64(rng.Intn(5))

		for i := 0; i < 200; {
			size := 1 + rng.Intn(4)
			batch := make([]model.PoolMetric, 0, size)
			for j := 0; j < size && i < 200; j, i = j+1, i+1 {
				block += uint64(rng.Intn(3)) // 0 repeats the block
				batch = append(batch, reading("p", block, 0))
			}
			s.Store(batch, capacity)

			h := s.GetHistory("p")
			require.LessOrEqual(t, len(h), capacity)
			for k := 1; k < len(h); k++ {
				require.Greater(t, h[k].BlockNumber, h[k-1].BlockNumber)
			}
		}
	}
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for b := uint64(1); b <= 100; b++ {
				s.Store([]model.PoolMetric{reading("shared", b, float64(w))}, 50)
				_ = s.GetHistory("shared")
			}
		}(w)
	}
	wg.Wait()

	h := s.GetHistory("shared")
	assert.Len(t, h, 50)
	for k := 1; k < len(h); k++ {
		assert.Greater(t, h[k].BlockNumber, h[k-1].BlockNumber)
	}
}

func blocks(h []model.PoolMetric) []uint64 {
	out := make([]uint64, len(h))
	for i, m := range h {
		out[i] = m.BlockNumber
	}
	return out
}
