package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nintynick/transitive-trust/internal/trust"
)

func TestNeighborhoodCacheRoundTrip(t *testing.T) {
	c, err := New(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	opts := trust.DefaultOptions()
	nb := trust.Neighborhood{"a": &trust.TrustNode{Trust: 0.7, MinHops: 1}}

	_, ok := c.Get("viewer", "food", opts)
	assert.False(t, ok, "empty cache must miss")

	c.Put("viewer", "food", opts, nb)
	c.Wait()

	got, ok := c.Get("viewer", "food", opts)
	require.True(t, ok)
	assert.Equal(t, 0.7, got["a"].Trust)
}

func TestNeighborhoodCacheKeyDiscriminates(t *testing.T) {
	c, err := New(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	opts := trust.DefaultOptions()
	c.Put("viewer", "food", opts, trust.Neighborhood{})
	c.Wait()

	_, ok := c.Get("viewer", "travel", opts)
	assert.False(t, ok, "different domain, different key")

	_, ok = c.Get("other", "food", opts)
	assert.False(t, ok, "different viewer, different key")

	deeper := opts
	deeper.MaxHops = 6
	_, ok = c.Get("viewer", "food", deeper)
	assert.False(t, ok, "different propagation options, different key")

	scoringOnly := opts
	scoringOnly.VerificationBoost = 3
	_, ok = c.Get("viewer", "food", scoringOnly)
	assert.True(t, ok, "scoring-only options share the neighborhood")
}

func TestNeighborhoodCacheInvalidate(t *testing.T) {
	c, err := New(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	opts := trust.DefaultOptions()
	c.Put("viewer", "food", opts, trust.Neighborhood{})
	c.Wait()

	c.Invalidate()
	_, ok := c.Get("viewer", "food", opts)
	assert.False(t, ok, "invalidate drops everything")
}
