package arena

import (
	"testing"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan/vktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slot struct {
	A, B uint32
}

func TestSlotPoolOffsetsAreUnique(t *testing.T) {
	device := vktest.NewDevice()
	pool, err := NewSlotPool[slot](device, "slots", 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), pool.Buffer().Size)

	live := map[uint32]Allocation[slot]{}
	for i := 0; i < 8; i++ {
		a, err := pool.Allocate()
		require.NoError(t, err)
		_, dup := live[a.Offset]
		require.False(t, dup, "offset %d handed out twice", a.Offset)
		assert.Less(t, a.Offset, uint32(8))
		live[a.Offset] = a
	}
	_, err = pool.Allocate()
	require.ErrorIs(t, err, core.ErrCapacityExhausted)

	// Free two, reallocate two: only the freed offsets come back.
	require.NoError(t, pool.Deallocate(live[3]))
	require.NoError(t, pool.Deallocate(live[5]))
	delete(live, 3)
	delete(live, 5)
	for i := 0; i < 2; i++ {
		a, err := pool.Allocate()
		require.NoError(t, err)
		_, dup := live[a.Offset]
		require.False(t, dup)
		live[a.Offset] = a
	}
	assert.Equal(t, uint32(8), pool.Used())
}

func TestSlotPoolWritesLandInBuffer(t *testing.T) {
	device := vktest.NewDevice()
	pool, err := NewSlotPool[slot](device, "slots", 4)
	require.NoError(t, err)
	a, err := pool.Allocate()
	require.NoError(t, err)
	require.Equal(t, uint32(0), a.Offset)

	a.Ptr.B = 0x01020304
	mem := device.Memory(pool.Buffer())
	assert.Equal(t, []byte{4, 3, 2, 1}, mem[4:8])
	assert.Same(t, a.Ptr, pool.At(0))
}

func TestSlotPoolRejectsForeignAllocations(t *testing.T) {
	device := vktest.NewDevice()
	pool, err := NewSlotPool[slot](device, "slots", 4)
	require.NoError(t, err)
	other, err := NewSlotPool[slot](device, "other", 4)
	require.NoError(t, err)

	a, err := other.Allocate()
	require.NoError(t, err)
	assert.ErrorIs(t, pool.Deallocate(a), core.ErrStaleAllocation)
	assert.ErrorIs(t, pool.Deallocate(Allocation[slot]{Offset: 9}), core.ErrStaleAllocation)

	mine, err := pool.Allocate()
	require.NoError(t, err)
	require.NoError(t, pool.Deallocate(mine))
	assert.ErrorIs(t, pool.Deallocate(mine), core.ErrInvariantViolation)
}

func TestSlotPoolZeroCapacity(t *testing.T) {
	_, err := NewSlotPool[slot](vktest.NewDevice(), "empty", 0)
	assert.ErrorIs(t, err, core.ErrInvariantViolation)
}

func TestIndirectPoolSwapRemove(t *testing.T) {
	device := vktest.NewDevice()
	pool, err := NewIndirectPool[vulkan.DrawIndexedIndirectCommand](device, "draws", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3*vulkan.DrawIndexedIndirectStride), pool.Buffer().Size)

	for i := uint32(0); i < 3; i++ {
		a, err := pool.Allocate()
		require.NoError(t, err)
		assert.Equal(t, i, a.Offset)
		a.Ptr.FirstInstance = 10 + i
	}
	_, err = pool.Allocate()
	require.ErrorIs(t, err, core.ErrCapacityExhausted)

	from, moved, err := pool.SwapRemove(0)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, uint32(2), from)
	assert.Equal(t, uint32(2), pool.Count())
	assert.Equal(t, uint32(12), pool.At(0).FirstInstance)
	assert.Equal(t, uint32(0), pool.At(2).FirstInstance)

	_, moved, err = pool.SwapRemove(1)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, uint32(1), pool.Count())

	_, _, err = pool.SwapRemove(1)
	assert.ErrorIs(t, err, core.ErrStaleAllocation)
}

func TestDeviceArenaAddAndReserve(t *testing.T) {
	device := vktest.NewDevice()
	a, err := NewIndexArena(device, "indices", 10)
	require.NoError(t, err)

	r, err := a.Add([]uint32{7, 8}, 1)
	require.NoError(t, err)
	assert.Equal(t, Range{Offset: 0, Size: 2}, r)

	r, err = a.Add([]uint32{1, 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, Range{Offset: 2, Size: 4}, r)
	assert.Equal(t, Range{Offset: 4, Size: 2}, r.Frame(1, 2))
	assert.Equal(t, Range{Offset: 2, Size: 2}, r.Frame(2, 2), "frame indices wrap")
	assert.Equal(t, r.Frame(1, 2), r.Frame(5, 2))

	words := vulkan.AsBytes([]uint32{7, 8, 1, 2, 1, 2})
	assert.Equal(t, words, device.Memory(a.Buffer())[:len(words)])

	r, err = a.Reserve(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), r.End())
	assert.Equal(t, a.Capacity(), a.Count())

	_, err = a.Add([]uint32{1}, 1)
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)
	assert.Equal(t, uint32(10), a.Count())
}

func TestHostUniform(t *testing.T) {
	device := vktest.NewDevice()
	u, err := NewHostUniform[slot](device, "lighting")
	require.NoError(t, err)
	u.Update(slot{A: 1, B: 2})
	assert.Equal(t, slot{A: 1, B: 2}, u.Value())
	assert.Equal(t, byte(2), device.Memory(u.Buffer())[4])
}
