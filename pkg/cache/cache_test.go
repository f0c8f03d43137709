package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissOnEmptyCache(t *testing.T) {
	c := New[string, int]("empty", Config{}, nil, nil, nil)
	_, ok := c.Get("missing")
	assert.False(t, ok)
	assert.EqualValues(t, 1, c.Stats().MissNotFound)
}

func TestPutThenGet(t *testing.T) {
	c := New[string, int]("basic", Config{}, nil, nil, nil)
	c.Put("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.EqualValues(t, 1, c.Stats().Hits)
}

func TestLRUBoundEvictsOldest(t *testing.T) {
	c := New[string, int]("bounded", Config{MaxInMemory: 2}, nil, nil, nil)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // touch a so it's more recently used than b
	c.Put("c", 3)

	assert.Equal(t, 2, c.Len())
	_, bOK := c.Get("b")
	assert.False(t, bOK, "b should have been evicted as the least recently used entry")
	_, aOK := c.Get("a")
	assert.True(t, aOK)
	_, cOK := c.Get("c")
	assert.True(t, cOK)
}

func TestExpirationMakesEntryAMiss(t *testing.T) {
	c := New[string, int]("expiring", Config{ExpireAfter: 10 * time.Millisecond}, nil, nil, nil)
	c.Put("a", 1)
	_, ok := c.Get("a")
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.EqualValues(t, 1, c.Stats().MissExpired)
}

func TestPutIfAbsentIsAtomicUnderConcurrency(t *testing.T) {
	c := New[string, int]("race", Config{}, nil, nil, nil)
	const n = 100
	var wg sync.WaitGroup
	successes := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, stored := c.PutIfAbsent("key", i)
			successes[i] = stored
		}(i)
	}
	wg.Wait()

	count := 0
	for _, s := range successes {
		if s {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one PutIfAbsent call should have won the race")
}

func TestPutIfAbsentKeepsExistingValue(t *testing.T) {
	c := New[string, int]("existing", Config{}, nil, nil, nil)
	c.Put("a", 1)
	v, stored := c.PutIfAbsent("a", 2)
	assert.False(t, stored)
	assert.Equal(t, 1, v)
}

func TestRemoveReportsPresence(t *testing.T) {
	c := New[string, int]("removal", Config{}, nil, nil, nil)
	assert.False(t, c.Remove("a"))
	c.Put("a", 1)
	assert.True(t, c.Remove("a"))
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestListenerNotifiedSynchronously(t *testing.T) {
	c := New[string, int]("listened", Config{}, nil, nil, nil)
	var added, removed []string
	c.AddListener(ListenerFuncs[string, int]{
		OnAddition: func(key string, value int) { added = append(added, key) },
		OnRemoval:  func(key string, value int) { removed = append(removed, key) },
	})
	c.Put("a", 1)
	c.Remove("a")
	assert.Equal(t, []string{"a"}, added)
	assert.Equal(t, []string{"a"}, removed)
}

func TestClearEvictsEveryInMemoryEntry(t *testing.T) {
	c := New[string, int]("clearable", Config{}, nil, nil, nil)
	c.Put("a", 1)
	c.Put("b", 2)
	require.Equal(t, 2, c.Len())

	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestClearOnBoundedCache(t *testing.T) {
	c := New[string, int]("clearable-bounded", Config{MaxInMemory: 2}, nil, nil, nil)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Clear()

	assert.Equal(t, 0, c.Len())
	c.Put("c", 3)
	v, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestManagerRegisterAndGet(t *testing.T) {
	m := NewManager()
	c := New[string, int]("registered", Config{}, nil, nil, nil)
	Register(m, c)

	got, ok := Get[string, int](m, "registered")
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = Get[string, string](m, "registered")
	assert.False(t, ok, "type-mismatched lookup should miss rather than panic")
}
