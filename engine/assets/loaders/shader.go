package loaders

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

// ShaderLoader reads a pre-compiled SPIR-V stage from disk.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, core.ErrShaderLoad)
	}
	if err := ValidateSpirv(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &metadata.Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), ".spv"),
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     data,
	}, nil
}

func (sl *ShaderLoader) Unload(*metadata.Resource) error {
	return nil
}

// ValidateSpirv checks the size and the little-endian magic word.
func ValidateSpirv(code []byte) error {
	if len(code) < 4 || len(code)%4 != 0 {
		return fmt.Errorf("SPIR-V size %d is not a positive multiple of 4: %w", len(code), core.ErrShaderLoad)
	}
	if magic := binary.LittleEndian.Uint32(code); magic != metadata.SpirvMagic {
		return fmt.Errorf("bad SPIR-V magic 0x%08x: %w", magic, core.ErrShaderLoad)
	}
	return nil
}
