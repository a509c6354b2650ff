package kvengine

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempEnginePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "engine.db")
}

func openEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := Open(tempEnginePath(t), opts...)
	require.NoError(t, err)
	return e
}

func TestEngine_BasicPutGet(t *testing.T) {
	e := openEngine(t)
	defer e.Close()

	assert.True(t, e.Put(1, []byte("hello")))
	assert.Equal(t, []byte("hello"), e.Get(1))

	assert.True(t, e.Put(1, []byte("world")))
	assert.Equal(t, []byte("world"), e.Get(1))
}

func TestEngine_BasicDelete(t *testing.T) {
	e := openEngine(t)
	defer e.Close()

	e.Put(2, []byte("test"))
	assert.Equal(t, []byte("test"), e.Get(2))

	assert.True(t, e.Del(2))
	assert.Empty(t, e.Get(2))
	assert.False(t, e.Del(2))
}

func TestEngine_CacheHit(t *testing.T) {
	e := openEngine(t, WithThreadPoolSize(4), WithCacheCapacity(16), WithCacheSegments(4))
	defer e.Close()

	e.Put(100, []byte("cache_value"))
	assert.Equal(t, []byte("cache_value"), e.Get(100))

	readsAfterFirst := e.FileStoreReadCount()

	assert.Equal(t, []byte("cache_value"), e.Get(100))
	readsAfterSecond := e.FileStoreReadCount()

	assert.Equal(t, readsAfterFirst, readsAfterSecond)
}

// TestEngine_LRUBehavior mirrors the original engine test suite's
// LRUBehavior scenario: a single-shard, capacity-3 cache, where the
// fourth distinct key evicts key 2, the least recently touched entry.
func TestEngine_LRUBehavior(t *testing.T) {
	e := openEngine(t, WithThreadPoolSize(4), WithCacheCapacity(3), WithCacheSegments(1))
	defer e.Close()

	initialReads := e.FileStoreReadCount()
	assert.EqualValues(t, 0, initialReads)

	e.Put(1, []byte("value1"))
	e.Put(2, []byte("value2"))
	e.Put(3, []byte("value3"))
	assert.Equal(t, initialReads, e.FileStoreReadCount())

	assert.Equal(t, []byte("value1"), e.Get(1))
	assert.Equal(t, []byte("value2"), e.Get(2))
	assert.Equal(t, []byte("value3"), e.Get(3))
	assert.Equal(t, initialReads, e.FileStoreReadCount())

	assert.Equal(t, []byte("value1"), e.Get(1))
	assert.Equal(t, initialReads, e.FileStoreReadCount())

	// capacity is 3; inserting key 4 evicts the LRU victim, key 2
	e.Put(4, []byte("value4"))

	assert.Equal(t, []byte("value2"), e.Get(2))
	assert.Equal(t, initialReads+1, e.FileStoreReadCount())

	assert.Equal(t, []byte("value2"), e.Get(2))
	assert.Equal(t, initialReads+1, e.FileStoreReadCount())

	assert.Equal(t, []byte("value3"), e.Get(3))
	assert.Equal(t, []byte("value4"), e.Get(4))
	assert.Equal(t, initialReads+2, e.FileStoreReadCount())
}

func TestEngine_AsyncOperations(t *testing.T) {
	e := openEngine(t)
	defer e.Close()

	putDone := make(chan bool, 1)
	e.PutAsync(10, []byte("async_val"), func(ok bool) { putDone <- ok })
	require.True(t, <-putDone)

	getDone := make(chan []byte, 1)
	e.GetAsync(10, func(v []byte) { getDone <- v })
	assert.Equal(t, []byte("async_val"), <-getDone)

	delDone := make(chan bool, 1)
	e.DelAsync(10, func(ok bool) { delDone <- ok })
	require.True(t, <-delDone)

	assert.Empty(t, e.Get(10))
}

func TestEngine_GarbageCollect(t *testing.T) {
	e := openEngine(t)
	defer e.Close()

	for i := int32(0); i < 20; i++ {
		e.Put(i, []byte(fmt.Sprintf("value_%d", i)))
	}
	for i := int32(0); i < 10; i++ {
		e.Del(i)
	}

	require.NoError(t, e.GarbageCollect())

	for i := int32(10); i < 20; i++ {
		assert.Equal(t, []byte(fmt.Sprintf("value_%d", i)), e.Get(i))
	}
	for i := int32(0); i < 10; i++ {
		assert.Empty(t, e.Get(i))
	}
}

func TestEngine_ConcurrentAccess(t *testing.T) {
	e := openEngine(t, WithThreadPoolSize(8), WithCacheCapacity(1000), WithCacheSegments(16))
	defer e.Close()

	const n = 1000
	var completedPuts, completedGets atomic.Int32

	var wg sync.WaitGroup
	wg.Add(n)
	for i := int32(0); i < n; i++ {
		i := i
		e.PutAsync(i, []byte(fmt.Sprintf("val_%d", i)), func(ok bool) {
			assert.True(t, ok)
			completedPuts.Add(1)
			wg.Done()
		})
	}
	wg.Wait()
	assert.EqualValues(t, n, completedPuts.Load())

	wg.Add(n)
	for i := int32(0); i < n; i++ {
		i := i
		e.GetAsync(i, func(v []byte) {
			assert.Equal(t, []byte(fmt.Sprintf("val_%d", i)), v)
			completedGets.Add(1)
			wg.Done()
		})
	}
	wg.Wait()
	assert.EqualValues(t, n, completedGets.Load())
}

func TestEngine_StopDropsAsyncGetSilently(t *testing.T) {
	e := openEngine(t)
	e.Put(1, []byte("value"))
	e.Stop()

	called := false
	e.GetAsync(1, func([]byte) { called = true })

	time.Sleep(10 * time.Millisecond)
	assert.False(t, called)

	require.NoError(t, e.Close())
}

func TestEngine_StopFiresPutDelCallbacksWithFalse(t *testing.T) {
	e := openEngine(t)
	e.Stop()

	putResult := make(chan bool, 1)
	e.PutAsync(1, []byte("value"), func(ok bool) { putResult <- ok })
	assert.False(t, <-putResult)

	delResult := make(chan bool, 1)
	e.DelAsync(1, func(ok bool) { delResult <- ok })
	assert.False(t, <-delResult)

	require.NoError(t, e.Close())
}

func TestEngine_RestartPersistence(t *testing.T) {
	path := tempEnginePath(t)

	e, err := Open(path)
	require.NoError(t, err)
	e.Put(1, []byte("value"))
	e.Put(2, []byte("other"))
	e.Del(2)
	require.NoError(t, e.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []byte("value"), reopened.Get(1))
	assert.Empty(t, reopened.Get(2))
}

func TestEngine_CleanStart(t *testing.T) {
	path := tempEnginePath(t)

	e, err := Open(path)
	require.NoError(t, err)
	e.Put(1, []byte("value"))
	require.NoError(t, e.Close())

	reopened, err := Open(path, WithCleanStart())
	require.NoError(t, err)
	defer reopened.Close()

	assert.Empty(t, reopened.Get(1))
}
