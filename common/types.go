// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShadowDepthFormat is the depth format used for per-frame shadow atlases and cascades.
const ShadowDepthFormat = wgpu.TextureFormatDepth32Float

// PreshadowCacheFormat is the depth format used for the persistent preshadow cache texture.
// Cached depths trade precision for residency since they live across frames.
const PreshadowCacheFormat = wgpu.TextureFormatDepth16Unorm

// CubeShadowDepthFormat is the depth format used for one-pass point light cube maps.
const CubeShadowDepthFormat = wgpu.TextureFormatDepth24Plus

// RenderTargetDesc describes a render target requested from the target allocator.
// Two descs with equal fields are interchangeable, which lets the allocator recycle targets.
type RenderTargetDesc struct {
	// Name is a debug label for the target. It does not participate in reuse matching.
	Name string
	// Width is the width of the target in texels.
	Width uint32
	// Height is the height of the target in texels.
	Height uint32
	// Format is the texel format of the target.
	Format wgpu.TextureFormat
	// Faces is 1 for 2D targets and 6 for cube targets.
	Faces uint32
	// Persistent marks targets that survive EndFrame, such as cached shadow maps.
	Persistent bool
}

// Key returns the reuse key of the desc, ignoring its debug name.
func (d RenderTargetDesc) Key() string {
	return fmt.Sprintf("%dx%dx%d/%d/%t", d.Width, d.Height, d.Faces, uint32(d.Format), d.Persistent)
}

// BytesPerTexel returns the storage size of one texel for the depth formats used by shadow targets.
//
// Parameters:
//   - format: the texture format
//
// Returns:
//   - uint64: bytes per texel, or 0 if the format is not a supported shadow format
func BytesPerTexel(format wgpu.TextureFormat) uint64 {
	switch format {
	case wgpu.TextureFormatDepth16Unorm:
		return 2
	case wgpu.TextureFormatDepth24Plus, wgpu.TextureFormatDepth32Float:
		return 4
	case wgpu.TextureFormatDepth24PlusStencil8:
		return 4
	case wgpu.TextureFormatDepth32FloatStencil8:
		return 8
	case wgpu.TextureFormatR32Float:
		return 4
	default:
		return 0
	}
}

// SizeInBytes returns the memory footprint of a target created from d.
func (d RenderTargetDesc) SizeInBytes() uint64 {
	faces := uint64(d.Faces)
	if faces == 0 {
		faces = 1
	}
	return uint64(d.Width) * uint64(d.Height) * faces * BytesPerTexel(d.Format)
}

// Mobility classifies how a scene entity may change after registration.
type Mobility uint8

const (
	// MobilityStatic entities never move or change. Their shadows can be cached indefinitely.
	MobilityStatic Mobility = iota

	// MobilityStationary entities do not move but may change other properties, such as light color.
	MobilityStationary

	// MobilityMovable entities may move every frame.
	MobilityMovable
)

// String returns a readable name for the mobility.
func (m Mobility) String() string {
	switch m {
	case MobilityStatic:
		return "static"
	case MobilityStationary:
		return "stationary"
	case MobilityMovable:
		return "movable"
	default:
		return "unknown"
	}
}

// IsMovable reports whether the entity may move.
func (m Mobility) IsMovable() bool {
	return m == MobilityMovable
}
