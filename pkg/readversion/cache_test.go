package readversion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetMissesWhenEmpty(t *testing.T) {
	c := &Cache{}
	_, ok := c.Get(Cached())
	assert.False(t, ok)
}

func TestServerPolicyNeverCaches(t *testing.T) {
	c := &Cache{}
	c.Update(42)
	_, ok := c.Get(Server())
	assert.False(t, ok)
}

func TestCachedPolicyAlwaysHitsRegardlessOfAge(t *testing.T) {
	c := &Cache{}
	c.Update(7)
	time.Sleep(2 * time.Millisecond)
	v, ok := c.Get(Cached())
	assert.True(t, ok)
	assert.EqualValues(t, 7, v)
}

func TestStalePolicyRespectsAge(t *testing.T) {
	c := &Cache{}
	c.Update(1)

	v, ok := c.Get(Stale(time.Hour))
	assert.True(t, ok)
	assert.EqualValues(t, 1, v)

	v, ok = c.Get(Stale(0))
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestUpdateIsMonotonic(t *testing.T) {
	c := &Cache{}
	c.Update(10)
	c.Update(5)
	v, _, _ := c.Info()
	assert.EqualValues(t, 10, v)

	c.Update(15)
	v, _, _ = c.Info()
	assert.EqualValues(t, 15, v)
}

func TestClear(t *testing.T) {
	c := &Cache{}
	c.Update(1)
	c.Clear()
	_, _, ok := c.Info()
	assert.False(t, ok)
}
