package history

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushEvictsOldest(t *testing.T) {
	h := New[int](10)
	for i := 1; i <= 15; i++ {
		h.Push(i)
	}

	require.Equal(t, 10, h.Len())
	assert.Equal(t, []int{15, 14, 13, 12, 11, 10, 9, 8, 7, 6}, h.Items())

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, 15, latest)
}

func TestReadsDoNotReorder(t *testing.T) {
	h := New[string](3)
	h.Push("a")
	h.Push("b")
	_ = h.Items()
	h.Latest()
	h.Push("c")
	h.Push("d")
	assert.Equal(t, []string{"d", "c", "b"}, h.Items())
}

func TestDefaultsAndClear(t *testing.T) {
	h := New[int](0)
	assert.Equal(t, DefaultCapacity, h.Cap())

	_, ok := h.Latest()
	assert.False(t, ok)
	assert.Empty(t, h.Items())

	h.Push(1)
	h.Clear()
	assert.Equal(t, 0, h.Len())
}

func TestConcurrentPush(t *testing.T) {
	h := New[int](5)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Push(i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, h.Len())
}
