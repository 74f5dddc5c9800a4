package vulkan

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockPoolSerializesGroup(t *testing.T) {
	p := NewVulkanLockPool()
	var wg sync.WaitGroup
	inside, maxInside := 0, 0
	var mu sync.Mutex
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.SafeCall(BufferManagement, func() error {
				mu.Lock()
				inside++
				maxInside = max(maxInside, inside)
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

func TestLockPoolReturnsError(t *testing.T) {
	p := NewVulkanLockPool()
	boom := errors.New("boom")
	assert.ErrorIs(t, p.SafeCall(ImageManagement, func() error { return boom }), boom)
	p.SetQueueFamily(0)
	assert.NoError(t, p.SafeQueueCall(0, func() error { return nil }))
	// a nested call on another group does not deadlock
	assert.NoError(t, p.SafeCall(ImageManagement, func() error {
		return p.SafeQueueCall(1, func() error { return nil })
	}))
}
