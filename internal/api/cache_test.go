package api

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultCache_GetPut(t *testing.T) {
	cache := NewResultCache(10, time.Hour)
	assert.Nil(t, cache.Get("a"))

	cache.Put("a", []byte("1"))
	assert.Equal(t, []byte("1"), cache.Get("a"))

	cache.Put("a", []byte("2"))
	assert.Equal(t, []byte("2"), cache.Get("a"))
	assert.Equal(t, 1, cache.Stats().Entries)
}

func TestResultCache_TTLExpiration(t *testing.T) {
	cache := NewResultCache(10, 50*time.Millisecond)
	cache.Put("a", []byte("1"))
	assert.NotNil(t, cache.Get("a"))

	time.Sleep(60 * time.Millisecond)
	assert.Nil(t, cache.Get("a"))

	cache.mu.RLock()
	_, exists := cache.entries["a"]
	cache.mu.RUnlock()
	assert.False(t, exists)
}

func TestResultCache_LRUEviction(t *testing.T) {
	cache := NewResultCache(3, time.Hour)
	cache.Put("a", []byte("1"))
	cache.Put("b", []byte("2"))
	cache.Put("c", []byte("3"))

	// Touch "a" so "b" is the oldest.
	cache.Get("a")
	cache.Put("d", []byte("4"))

	assert.NotNil(t, cache.Get("a"))
	assert.Nil(t, cache.Get("b"))
	assert.NotNil(t, cache.Get("c"))
	assert.NotNil(t, cache.Get("d"))
}

func TestResultCache_Stats(t *testing.T) {
	cache := NewResultCache(5, time.Hour)
	cache.Put("a", []byte("1"))
	cache.Get("a")
	cache.Get("b")

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 5, stats.MaxEntries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestResultCache_ConcurrentAccess(t *testing.T) {
	cache := NewResultCache(50, time.Hour)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				key := fmt.Sprintf("%d-%d", i, j%10)
				cache.Put(key, []byte(key))
				cache.Get(key)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Stats().Entries, 50)
}
