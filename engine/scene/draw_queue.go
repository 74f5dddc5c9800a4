package scene

import (
	"fmt"

	"github.com/spaghettifunk/vesta/engine/arena"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
)

// DrawType is a bucket of indirect draws sharing one pipeline.
type DrawType uint32

const (
	OpaqueTriangles DrawType = iota
	OpaqueLines
	TransparentTriangles
	TransparentLines
	Terrain
	NumDrawTypes
)

var drawTypeNames = [NumDrawTypes]string{"opaque-tri", "opaque-line", "translucent-tri", "translucent-line", "terrain"}

func (d DrawType) String() string {
	if d < NumDrawTypes {
		return drawTypeNames[d]
	}
	return fmt.Sprintf("draw-type(%d)", uint32(d))
}

// Classify picks the bucket of a primitive topology drawn with a material
// type. Every combination without a pipeline is ErrNotSupported.
func Classify(topology Topology, material MaterialType) (DrawType, error) {
	switch material {
	case MaterialBRDF, MaterialBRDFSG, MaterialReflective, MaterialRefractive, MaterialNone:
		switch topology {
		case Triangles:
			return OpaqueTriangles, nil
		case Lines:
			return OpaqueLines, nil
		}
	case MaterialTranslucent:
		switch topology {
		case Triangles:
			return TransparentTriangles, nil
		case Lines:
			return TransparentLines, nil
		}
	case MaterialTerrain:
		if topology == Patches {
			return Terrain, nil
		}
	}
	return 0, fmt.Errorf("draw %s with %s material: %w", topology, material, core.ErrNotSupported)
}

// DrawQueueIndex locates one draw command: the flat queue id and the
// element inside that queue.
type DrawQueueIndex struct {
	Queue  uint32
	Offset uint32
}

type QueueCapacities [NumDrawTypes]uint32

type drawCommands = arena.IndirectPool[vulkan.DrawIndexedIndirectCommand]

type queue struct {
	commands *drawCommands
	// owners[i] is the owner key of command i.
	owners []uint32
}

/**
 * @brief Routes draws into indirect command buffers. There is one static
 * queue per draw type and, for each frame in flight, one dynamic queue per
 * draw type. Flat queue ids are frame-major: static queues come first, then
 * the queues of frame 0, frame 1, ...
 */
type DrawQueue struct {
	frames uint32
	queues []queue
}

func NewDrawQueue(device vulkan.Device, static, dynamic QueueCapacities, frames uint32) (*DrawQueue, error) {
	if frames == 0 {
		return nil, fmt.Errorf("draw queue needs at least one frame: %w", core.ErrInvariantViolation)
	}
	q := &DrawQueue{frames: frames, queues: make([]queue, int(NumDrawTypes)*int(frames+1))}
	for i := range q.queues {
		t := DrawType(uint32(i) % uint32(NumDrawTypes))
		capacity, name := static[t], fmt.Sprintf("draw %s", t)
		if i >= int(NumDrawTypes) {
			capacity = dynamic[t]
			name = fmt.Sprintf("draw dynamic %s frame %d", t, i/int(NumDrawTypes)-1)
		}
		commands, err := arena.NewIndirectPool[vulkan.DrawIndexedIndirectCommand](device, name, capacity)
		if err != nil {
			q.Destroy(device)
			return nil, err
		}
		q.queues[i] = queue{commands: commands, owners: make([]uint32, 0, capacity)}
	}
	return q, nil
}

func (q *DrawQueue) queueID(t DrawType, frame int) uint32 {
	return uint32(frame+1)*uint32(NumDrawTypes) + uint32(t)
}

// Allocate reserves the commands of one draw for owner: one in the static
// queue of t, or one per frame in flight when dynamic.
func (q *DrawQueue) Allocate(t DrawType, dynamic bool, owner uint32) ([]DrawQueueIndex, error) {
	if t >= NumDrawTypes {
		return nil, fmt.Errorf("allocate %s: %w", t, core.ErrNotSupported)
	}
	ids := []uint32{uint32(t)}
	if dynamic {
		ids = make([]uint32, q.frames)
		for f := range ids {
			ids[f] = q.queueID(t, f)
		}
	}
	out := make([]DrawQueueIndex, 0, len(ids))
	for _, id := range ids {
		qu := &q.queues[id]
		a, err := qu.commands.Allocate()
		if err != nil {
			for _, idx := range out {
				// Rolling back the tail of a queue never moves anything.
				_, _, _ = q.Remove(idx)
			}
			return nil, err
		}
		qu.owners = append(qu.owners, owner)
		out = append(out, DrawQueueIndex{Queue: id, Offset: a.Offset})
	}
	return out, nil
}

// Remove swap-removes a command. When another command was moved into the
// hole it returns that command's owner; the owner's stored index for this
// queue must become idx.Offset.
func (q *DrawQueue) Remove(idx DrawQueueIndex) (movedOwner uint32, moved bool, err error) {
	if int(idx.Queue) >= len(q.queues) {
		return 0, false, fmt.Errorf("queue %d does not exist: %w", idx.Queue, core.ErrStaleAllocation)
	}
	qu := &q.queues[idx.Queue]
	from, moved, err := qu.commands.SwapRemove(idx.Offset)
	if err != nil {
		return 0, false, err
	}
	if moved {
		movedOwner = qu.owners[from]
		qu.owners[idx.Offset] = movedOwner
	}
	qu.owners = qu.owners[:from]
	return movedOwner, moved, nil
}

// Command returns the mapped command at idx.
func (q *DrawQueue) Command(idx DrawQueueIndex) *vulkan.DrawIndexedIndirectCommand {
	return q.queues[idx.Queue].commands.At(idx.Offset)
}

// Owner returns the owner key stored for idx.
func (q *DrawQueue) Owner(idx DrawQueueIndex) uint32 {
	return q.queues[idx.Queue].owners[idx.Offset]
}

// Type returns the draw type served by a flat queue id.
func (q *DrawQueue) Type(queueID uint32) DrawType {
	return DrawType(queueID % uint32(NumDrawTypes))
}

func (q *DrawQueue) Buffer(t DrawType) *vulkan.Buffer {
	return q.queues[t].commands.Buffer()
}

func (q *DrawQueue) Count(t DrawType) uint32 {
	return q.queues[t].commands.Count()
}

func (q *DrawQueue) FrameBuffer(t DrawType, frame uint32) *vulkan.Buffer {
	return q.queues[q.queueID(t, int(frame%q.frames))].commands.Buffer()
}

func (q *DrawQueue) FrameCount(t DrawType, frame uint32) uint32 {
	return q.queues[q.queueID(t, int(frame%q.frames))].commands.Count()
}

func (q *DrawQueue) Frames() uint32 {
	return q.frames
}

func (q *DrawQueue) Destroy(device vulkan.Device) {
	for _, qu := range q.queues {
		if qu.commands != nil {
			qu.commands.Destroy(device)
		}
	}
	q.queues = nil
}
