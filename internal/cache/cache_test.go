package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := New[bool]("installed", DefaultExpiration, DefaultCleanupInterval, nil)

	_, found := c.Get("numpy")
	assert.False(t, found)

	c.Set("numpy", true, 0)
	v, found := c.Get("numpy")
	require.True(t, found)
	assert.True(t, v)
}

func TestCache_Expiry(t *testing.T) {
	c := New[string]("info", DefaultExpiration, DefaultCleanupInterval, nil)

	c.Set("k", "v", time.Millisecond)
	require.Eventually(t, func() bool {
		_, found := c.Get("k")
		return !found
	}, time.Second, 5*time.Millisecond)
}

func TestCache_ZeroDefaultNeverExpires(t *testing.T) {
	c := New[string]("info", 0, DefaultCleanupInterval, nil)

	c.Set("k", "v", 0)
	time.Sleep(10 * time.Millisecond)
	v, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, "v", v)
}
