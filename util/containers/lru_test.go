// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package containers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLruCache(t *testing.T) {
	var evicted []int
	c := NewLruCacheWithOnEvict[int, string](2, func(k int, _ string) {
		evicted = append(evicted, k)
	})
	c.Add(1, "one")
	c.Add(2, "two")
	v, ok := c.Get(1)
	require.True(t, ok)
	require.Equal(t, "one", v)
	c.Add(3, "three")
	require.Equal(t, []int{2}, evicted)
	require.False(t, c.Contains(2))
	require.Equal(t, 2, c.Len())

	c.Resize(1)
	require.Equal(t, 1, c.Len())
	c.Resize(0)
	require.Equal(t, 0, c.Len())
	require.ElementsMatch(t, []int{2, 1, 3}, evicted)
	c.Add(4, "four")
	_, ok = c.Get(4)
	require.False(t, ok)
}

func TestZeroSizeLruCache(t *testing.T) {
	c := NewLruCache[string, int](0)
	c.Add("a", 1)
	require.False(t, c.Contains("a"))
	c.Resize(4)
	c.Add("a", 1)
	require.True(t, c.Contains("a"))
	c.Remove("a")
	require.Equal(t, 0, c.Len())
}
