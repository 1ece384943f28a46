package bitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetArbitraryIndex(t *testing.T) {
	const size = 257
	b := New(size)
	for i := uint64(0); i < size; i++ {
		b.Set(i)
		require.True(t, b.Get(i), "bit %d should be set immediately after Set", i)
		b.Reset(i)
		require.False(t, b.Get(i), "bit %d should be clear immediately after Reset", i)
	}
}

func TestSetDoesNotDisturbOtherBits(t *testing.T) {
	b := New(64)
	b.Set(3)
	b.Set(40)
	assert.True(t, b.Get(3))
	assert.True(t, b.Get(40))
	assert.False(t, b.Get(4))
	assert.False(t, b.Get(39))

	b.Reset(3)
	assert.False(t, b.Get(3))
	assert.True(t, b.Get(40))
}

func TestOutOfRangeIsNoOp(t *testing.T) {
	b := New(8)
	b.Set(100)
	assert.False(t, b.Get(100))
	assert.Equal(t, uint64(0), b.Count())
}

func TestClearAndCount(t *testing.T) {
	b := New(20)
	for i := uint64(0); i < 20; i += 2 {
		b.Set(i)
	}
	assert.Equal(t, uint64(10), b.Count())
	b.Clear()
	assert.Equal(t, uint64(0), b.Count())
}

func TestLen(t *testing.T) {
	b := New(123)
	assert.Equal(t, uint64(123), b.Len())
}
