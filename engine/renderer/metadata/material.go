package metadata

import "github.com/spaghettifunk/anima/engine/math"

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

/**
 * @brief Material configuration typically loaded from
 * a file or created in code to load a material from.
 */
type MaterialConfig struct {
	/** @brief The name of the material. */
	Name string
	/** @brief The shader the material draws with. */
	ShaderName string
	/** @brief The diffuse colour of the material. */
	DiffuseColour math.Vec4
	/** @brief Face culling used by every object of this material. */
	CullMode FaceCullMode
	/** @brief The diffuse map name. */
	DiffuseMapName string
	/** @brief The specular map name. */
	SpecularMapName string
	/** @brief The normal map name. */
	NormalMapName string
}

/** @brief The camera matrices written once per frame. */
type CameraState struct {
	View       math.Mat4
	Projection math.Mat4
	Position   math.Vec3
}

/** @brief Scene wide lighting written once per frame. */
type SceneLighting struct {
	LightDirection math.Vec3
	AmbientColour  math.Vec4
	SpecularColour math.Vec4
}
