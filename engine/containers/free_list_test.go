package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeListPopsInAscendingOrder(t *testing.T) {
	fl := NewFreeList[uint32](3)
	for want := uint32(0); want < 3; want++ {
		got, err := fl.Pop()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := fl.Pop()
	assert.ErrorIs(t, err, ErrFreeListEmpty)
	assert.True(t, fl.IsEmpty())
	assert.Equal(t, uint32(3), fl.Used())
}

func TestFreeListLIFOReuse(t *testing.T) {
	fl := NewFreeList[uint32](4)
	a, _ := fl.Pop()
	b, _ := fl.Pop()
	fl.Push(a)
	got, err := fl.Pop()
	require.NoError(t, err)
	assert.Equal(t, a, got)
	assert.NotEqual(t, b, got)
	assert.Equal(t, uint32(2), fl.Used())
	assert.Equal(t, 2, fl.Len())
}

func TestFreeListZeroCapacity(t *testing.T) {
	fl := NewFreeList[uint32](0)
	_, err := fl.Pop()
	assert.ErrorIs(t, err, ErrFreeListEmpty)
	assert.Equal(t, uint32(0), fl.Capacity())
}
