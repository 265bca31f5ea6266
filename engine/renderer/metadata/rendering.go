package metadata

import "fmt"

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

func (m FaceCullMode) String() string {
	switch m {
	case FaceCullModeNone:
		return "none"
	case FaceCullModeFront:
		return "front"
	case FaceCullModeBack:
		return "back"
	case FaceCullModeFrontAndBack:
		return "front_and_back"
	}
	return fmt.Sprintf("FaceCullMode(%d)", int(m))
}

/** @brief How consecutive vertices are assembled into primitives. */
type PrimitiveTopology int

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyTriangleStrip
	PrimitiveTopologyTriangleFan
	PrimitiveTopologyPointList
	PrimitiveTopologyLineList
	PrimitiveTopologyLineStrip
	/** @brief Not expressible as a GPU input assembly mode; always rejected. */
	PrimitiveTopologyLineLoop
)

var topologyNames = map[PrimitiveTopology]string{
	PrimitiveTopologyTriangleList:  "triangle_list",
	PrimitiveTopologyTriangleStrip: "triangle_strip",
	PrimitiveTopologyTriangleFan:   "triangle_fan",
	PrimitiveTopologyPointList:     "point_list",
	PrimitiveTopologyLineList:      "line_list",
	PrimitiveTopologyLineStrip:     "line_strip",
	PrimitiveTopologyLineLoop:      "line_loop",
}

func (t PrimitiveTopology) String() string {
	if n, ok := topologyNames[t]; ok {
		return n
	}
	return fmt.Sprintf("PrimitiveTopology(%d)", int(t))
}

// Supported reports whether the topology can be used for a pipeline.
func (t PrimitiveTopology) Supported() bool {
	_, ok := topologyNames[t]
	return ok && t != PrimitiveTopologyLineLoop
}
