package systems

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/scene"
)

// ComputeMesh is a dynamic primitive whose vertices a compute shader
// rewrites every frame.
type ComputeMesh struct {
	Shader    string
	Primitive *scene.Primitive
	Groups    [3]uint32
}

type computeMeshState struct {
	meshes    []*ComputeMesh
	pipelines map[string]*vulkan.Pipeline
	time      float32
}

// ComputeMesh registers prim to be animated by the compute shader code.
// Meshes naming the same shader share one pipeline; code is only compiled
// the first time a name is seen.
func (sm *SceneManager) ComputeMesh(shader string, code []byte, prim *scene.Primitive, x, y, z uint32) (*ComputeMesh, error) {
	if prim.Type() != scene.Dynamic {
		core.LogError("compute mesh should be dynamic primitive!")
		return nil, fmt.Errorf("compute mesh should be dynamic primitive! (%s): %w", shader, core.ErrInvariantViolation)
	}
	if uint32(len(sm.computeMeshes.meshes)) >= sm.config.MaxNumDynamicMeshes {
		core.LogError("exceeding max number of dynamic meshes!")
		return nil, fmt.Errorf("exceeding max number of dynamic meshes! (%d): %w", sm.config.MaxNumDynamicMeshes, core.ErrCapacityExhausted)
	}
	if sm.computeMeshes.pipelines == nil {
		sm.computeMeshes.pipelines = make(map[string]*vulkan.Pipeline)
	}
	if _, ok := sm.computeMeshes.pipelines[shader]; !ok {
		pipeline, err := sm.buildComputePipeline(shader, code)
		if err != nil {
			return nil, err
		}
		sm.computeMeshes.pipelines[shader] = pipeline
	}
	mesh := &ComputeMesh{Shader: shader, Primitive: prim, Groups: [3]uint32{x, y, z}}
	sm.computeMeshes.meshes = append(sm.computeMeshes.meshes, mesh)
	return mesh, nil
}

func (sm *SceneManager) buildComputePipeline(name string, code []byte) (*vulkan.Pipeline, error) {
	module, err := vulkan.NewShaderModule(sm.device, code, vk.ShaderStageComputeBit)
	if err != nil {
		return nil, fmt.Errorf("compute shader %s: %w", name, err)
	}
	defer sm.device.DestroyShaderModule(module)
	return vulkan.NewComputePipeline(sm.device, name, sm.computeLayout, module)
}

// ReloadComputeShader swaps the pipeline of every compute mesh using name.
// On failure the previous pipeline stays in place.
func (sm *SceneManager) ReloadComputeShader(name string, code []byte) error {
	old, ok := sm.computeMeshes.pipelines[name]
	if !ok {
		return nil
	}
	pipeline, err := sm.buildComputePipeline(name, code)
	if err != nil {
		core.LogWarn("Keeping previous compute pipeline %s: %v", name, err)
		return err
	}
	if err := sm.device.WaitIdle(); err != nil {
		sm.device.DestroyPipeline(pipeline)
		return err
	}
	sm.device.DestroyPipeline(old)
	sm.computeMeshes.pipelines[name] = pipeline
	core.LogInfo("Reloaded compute shader %s.", name)
	return nil
}

// ComputeTime is the accumulated time pushed to compute meshes.
func (sm *SceneManager) ComputeTime() float32 {
	return sm.computeMeshes.time
}

func (sm *SceneManager) dispatchComputeMeshes(cb vulkan.CommandRecorder, frame uint32, elapsed float32) {
	state := &sm.computeMeshes
	if len(state.meshes) == 0 {
		return
	}
	state.time += elapsed
	cb.BindDescriptorSets(vk.PipelineBindPointCompute, sm.computeLayout, 0, []*vulkan.DescriptorSet{sm.compute})
	for _, m := range state.meshes {
		pos := m.Primitive.Position().Frame(frame, sm.frames)
		norm := m.Primitive.Normal().Frame(frame, sm.frames)
		c := ComputeMeshConstant{
			PositionOffset: pos.Offset,
			NormalOffset:   norm.Offset,
			VertexCount:    pos.Size,
			Time:           state.time,
		}
		cb.BindPipeline(state.pipelines[m.Shader])
		cb.PushConstants(sm.computeLayout, stageCompute, 0, vulkan.ValueBytes(&c))
		cb.Dispatch(m.Groups[0], m.Groups[1], m.Groups[2])
	}
	cb.MemoryBarrier(vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), vk.PipelineStageFlags(vk.PipelineStageVertexInputBit),
		vk.AccessFlags(vk.AccessShaderWriteBit), vk.AccessFlags(vk.AccessVertexAttributeReadBit))
}

func (sm *SceneManager) destroyComputeMeshes() {
	for _, p := range sm.computeMeshes.pipelines {
		sm.device.DestroyPipeline(p)
	}
	sm.computeMeshes = computeMeshState{}
}
