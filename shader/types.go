// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
)

// Kind identifies which stages a shader module provides.
type Kind uint8

const (
	// KindVertex is a vertex-only shader.
	KindVertex Kind = iota

	// KindFragment is a fragment-only shader.
	KindFragment

	// KindVertexFragment is a combined vertex+fragment shader.
	KindVertexFragment

	// KindCompute is a compute shader.
	KindCompute
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "Vertex"
	case KindFragment:
		return "Fragment"
	case KindVertexFragment:
		return "VertexFragment"
	case KindCompute:
		return "Compute"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// SizeUnbounded marks a runtime-sized (unbounded) binding.
const SizeUnbounded uint32 = math.MaxUint32

// Access describes how a storage binding may be accessed.
type Access uint8

const (
	// AccessReadWrite allows reads and writes.
	AccessReadWrite Access = iota

	// AccessReadOnly allows reads only.
	AccessReadOnly
)

// BindingType describes the resource kind a shader binding expects.
// It is a closed union; the concrete types below are the only variants.
type BindingType interface {
	bindingType()
}

// UniformBuffer is a uniform buffer binding with its byte size.
type UniformBuffer struct {
	Size uint32
}

func (UniformBuffer) bindingType() {}

// StorageBuffer is a storage buffer binding.
// Size is SizeUnbounded for runtime-sized arrays.
type StorageBuffer struct {
	Size   uint32
	Access Access
}

func (StorageBuffer) bindingType() {}

// StorageTexture is a writable storage texture binding.
type StorageTexture struct {
	Access Access
}

func (StorageTexture) bindingType() {}

// Sampler is a sampler binding.
type Sampler struct {
	Comparison bool
}

func (Sampler) bindingType() {}

// Texture is a sampled texture binding.
type Texture struct {
	Multisampled bool
}

func (Texture) bindingType() {}

// PushConstant is a push-constant range with its byte size.
// Push constants are not part of any bind group.
type PushConstant struct {
	Size uint32
}

func (PushConstant) bindingType() {}

// BindingInfo is one declared binding: its slot and resource type.
type BindingInfo struct {
	Group   uint32
	Binding uint32
	Name    string
	Type    BindingType
}

// Reflection is the structured description extracted from a shader module:
// entry points, resource bindings sorted by (group, binding), and the vertex
// input layout when a vertex stage is present.
//
// Reflection is deterministic: reflecting the same module twice yields the
// same result, including binding order. Cache keys depend on this.
type Reflection struct {
	Kind Kind

	// Entry point names; only those matching Kind are set.
	VertexEntry   string
	FragmentEntry string
	ComputeEntry  string

	// Bindings sorted by (group, binding) ascending.
	Bindings []BindingInfo

	// VertexInput is the vertex stage's input layout, nil when the vertex
	// entry point takes no vertex attributes.
	VertexInput *VertexInput

	// Workgroup is the compute workgroup size, zero for non-compute kinds.
	Workgroup [3]uint32
}

// Binding returns the binding declared at (group, binding), if any.
func (r *Reflection) Binding(group, binding uint32) (BindingInfo, bool) {
	for _, b := range r.Bindings {
		if b.Group == group && b.Binding == binding {
			return b, true
		}
	}
	return BindingInfo{}, false
}

// VertexFormat is the type of one vertex attribute. The set mirrors the
// scalar and vector forms representable in vertex input structs.
type VertexFormat uint32

const (
	FormatFloat32 VertexFormat = iota
	FormatFloat32x2
	FormatFloat32x3
	FormatFloat32x4
	FormatSint32
	FormatSint32x2
	FormatSint32x3
	FormatSint32x4
	FormatUint32
	FormatUint32x2
	FormatUint32x3
	FormatUint32x4

	formatCount
)

// Size returns the byte size of one attribute of this format.
func (f VertexFormat) Size() uint64 {
	switch f {
	case FormatFloat32, FormatSint32, FormatUint32:
		return 4
	case FormatFloat32x2, FormatSint32x2, FormatUint32x2:
		return 8
	case FormatFloat32x3, FormatSint32x3, FormatUint32x3:
		return 12
	case FormatFloat32x4, FormatSint32x4, FormatUint32x4:
		return 16
	default:
		return 0
	}
}

// GPUFormat returns the gputypes equivalent of this format.
func (f VertexFormat) GPUFormat() gputypes.VertexFormat {
	switch f {
	case FormatFloat32:
		return gputypes.VertexFormatFloat32
	case FormatFloat32x2:
		return gputypes.VertexFormatFloat32x2
	case FormatFloat32x3:
		return gputypes.VertexFormatFloat32x3
	case FormatFloat32x4:
		return gputypes.VertexFormatFloat32x4
	case FormatSint32:
		return gputypes.VertexFormatSint32
	case FormatSint32x2:
		return gputypes.VertexFormatSint32x2
	case FormatSint32x3:
		return gputypes.VertexFormatSint32x3
	case FormatSint32x4:
		return gputypes.VertexFormatSint32x4
	case FormatUint32:
		return gputypes.VertexFormatUint32
	case FormatUint32x2:
		return gputypes.VertexFormatUint32x2
	case FormatUint32x3:
		return gputypes.VertexFormatUint32x3
	case FormatUint32x4:
		return gputypes.VertexFormatUint32x4
	default:
		return gputypes.VertexFormatFloat32
	}
}

// VertexAttribute is one attribute of a vertex input struct.
type VertexAttribute struct {
	Location uint32
	Offset   uint64
	Format   VertexFormat
}

// VertexInput is the vertex stage's input layout: the struct name, the
// packed stride and the attribute list in declaration order.
type VertexInput struct {
	Name       string
	Stride     uint64
	Attributes []VertexAttribute
}

// BufferLayout converts the input description to a gputypes vertex buffer
// layout with per-vertex stepping.
func (v *VertexInput) BufferLayout() gputypes.VertexBufferLayout {
	attrs := make([]gputypes.VertexAttribute, len(v.Attributes))
	for i, a := range v.Attributes {
		attrs[i] = gputypes.VertexAttribute{
			Format:         a.Format.GPUFormat(),
			Offset:         a.Offset,
			ShaderLocation: a.Location,
		}
	}
	return gputypes.VertexBufferLayout{
		ArrayStride: v.Stride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  attrs,
	}
}
