package tonemap

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

// WorkgroupSize is the compute workgroup edge length declared in the
// shader; dispatches cover width x height in tiles of this size.
const WorkgroupSize = 16

//go:embed shaders/tonemap.wgsl
var shaderWGSL string

// CompileShader compiles the embedded WGSL tone-mapping shader to
// SPIR-V words, ready for shader-module creation.
func CompileShader() ([]uint32, error) {
	spirvBytes, err := naga.Compile(shaderWGSL)
	if err != nil {
		return nil, fmt.Errorf("tonemap: compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("tonemap: SPIR-V length %d not word-aligned", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
