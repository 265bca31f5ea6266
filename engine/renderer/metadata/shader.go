package metadata

/** @brief Shader stages available in the system. */
type ShaderStage int

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageFragment ShaderStage = 0x00000004
)

/**
 * @brief The uniform data a shader reads. The renderer only writes the
 * regions a shader asks for.
 */
type UniformRequirements uint32

const (
	UniformModel UniformRequirements = 1 << iota
	UniformModelInvTranspose
	UniformViewProjection
	UniformCameraPosition
	UniformLightDirection
	UniformAmbientColor
	UniformSpecularColor
	UniformTextureFlags

	UniformNone UniformRequirements = 0
)

func (u UniformRequirements) Has(req UniformRequirements) bool {
	return u&req == req
}

// NeedsConstant reports whether the shader reads the shared per-frame region.
func (u UniformRequirements) NeedsConstant() bool {
	return u&(UniformViewProjection|UniformCameraPosition|UniformLightDirection|UniformAmbientColor|UniformSpecularColor) != 0
}

// NeedsDynamic reports whether the shader reads the per-object region.
func (u UniformRequirements) NeedsDynamic() bool {
	return u&(UniformModel|UniformModelInvTranspose|UniformTextureFlags) != 0
}

/**
 * @brief Configuration for a shader. The code blocks are pre-compiled SPIR-V.
 */
type ShaderConfig struct {
	/** @brief The name of the shader. Used as its id. */
	Name string
	/** @brief SPIR-V for the vertex stage. */
	VertexCode []byte
	/** @brief SPIR-V for the fragment stage. */
	FragmentCode []byte
	/** @brief The attributes every vertex fed to this shader carries. */
	Attributes VertexAttributes
	/** @brief The uniform data the shader reads. */
	Uniforms UniformRequirements
}
