package vulkan

import "sync"

// LockGroup names a class of externally synchronized Vulkan objects. Calls
// in the same group never run concurrently.
type LockGroup string

const (
	BufferManagement        LockGroup = "buffer"
	ImageManagement         LockGroup = "image"
	SamplerManagement       LockGroup = "sampler"
	ShaderManagement        LockGroup = "shader"
	PipelineManagement      LockGroup = "pipeline"
	CommandBufferManagement LockGroup = "command_buffer"
	RenderpassManagement    LockGroup = "renderpass"
	SwapchainManagement     LockGroup = "swapchain"
)

// VulkanLockPool hands out one mutex per lock group and one per queue
// family. Mutexes are created on first use and live as long as the pool.
type VulkanLockPool struct {
	mu     sync.Mutex
	groups map[LockGroup]*sync.Mutex
	queues map[uint32]*sync.Mutex
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		groups: make(map[LockGroup]*sync.Mutex),
		queues: make(map[uint32]*sync.Mutex),
	}
}

func lockFor[K comparable](pool *VulkanLockPool, m map[K]*sync.Mutex, key K) *sync.Mutex {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	l, ok := m[key]
	if !ok {
		l = &sync.Mutex{}
		m[key] = l
	}
	return l
}

// SafeCall runs fn while holding the mutex of group.
func (p *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := lockFor(p, p.groups, group)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// SetQueueFamily creates the mutex of a queue family ahead of use. Graphics
// and present may share a family, in which case they share the mutex.
func (p *VulkanLockPool) SetQueueFamily(index uint32) {
	lockFor(p, p.queues, index)
}

// SafeQueueCall runs fn while holding the mutex of the queue family.
func (p *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	l := lockFor(p, p.queues, queueFamilyIndex)
	l.Lock()
	defer l.Unlock()
	return fn()
}
