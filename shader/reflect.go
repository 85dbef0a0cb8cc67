// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader extracts structured reflection data from WGSL shader
// modules and derives the bind-group layouts a pipeline needs from it.
// Reflection runs once per shader build; everything downstream (binding
// validation, cache keys, vertex layouts) is computed from its output.
package shader

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/naga/ir"
)

// Reflection errors.
var (
	// ErrUnsupportedType is returned for a bound global whose type cannot
	// be expressed as a binding.
	ErrUnsupportedType = errors.New("shader: unsupported binding type")

	// ErrMissingBinding is returned when a vertex input member has no
	// @location attribute.
	ErrMissingBinding = errors.New("shader: vertex input member missing location")

	// ErrUnsupportedStage is returned for entry point combinations outside
	// vertex, fragment, vertex+fragment, or compute.
	ErrUnsupportedStage = errors.New("shader: unsupported entry point combination")

	// ErrStorageImageMisrouted is returned when a storage-class image is
	// declared in the handle address space instead of var<storage>.
	ErrStorageImageMisrouted = errors.New("shader: storage texture declared in handle space")

	// ErrMissingEntryPoint is returned when a module declares no entry point.
	ErrMissingEntryPoint = errors.New("shader: no entry point found")

	// ErrDuplicateBinding is returned when two globals share a
	// (group, binding) slot.
	ErrDuplicateBinding = errors.New("shader: duplicate (group, binding)")

	// ErrUniformTooSmall is returned for uniform buffers of 16 bytes or
	// less; such a binding is below the smallest meaningful uniform block.
	ErrUniformTooSmall = errors.New("shader: uniform buffer too small")

	// ErrUnsupportedVertexInputType is returned when a vertex input member
	// is not a 32-bit scalar or vector.
	ErrUnsupportedVertexInputType = errors.New("shader: unsupported vertex input type")
)

// Reflect extracts a Reflection from an IR module.
//
// Every global variable carrying a @group/@binding annotation is classified
// by address space into a BindingInfo; the result is sorted by
// (group, binding). Entry points determine the Kind, and a vertex entry
// point's struct argument determines the vertex input layout.
//
// Reflect is a pure transform: the same module always produces the same
// reflection, including binding order.
func Reflect(m *ir.Module) (*Reflection, error) {
	bindings, err := collectBindings(m)
	if err != nil {
		return nil, err
	}

	refl := &Reflection{Bindings: bindings}

	var haveVertex, haveFragment, haveCompute bool
	for _, ep := range m.EntryPoints {
		switch ep.Stage {
		case ir.StageVertex:
			if haveVertex {
				return nil, fmt.Errorf("%w: multiple vertex entry points", ErrUnsupportedStage)
			}
			haveVertex = true
			refl.VertexEntry = ep.Name
			input, err := vertexInputOf(m, ep)
			if err != nil {
				return nil, err
			}
			refl.VertexInput = input

		case ir.StageFragment:
			if haveFragment {
				return nil, fmt.Errorf("%w: multiple fragment entry points", ErrUnsupportedStage)
			}
			haveFragment = true
			refl.FragmentEntry = ep.Name

		case ir.StageCompute:
			if haveCompute {
				return nil, fmt.Errorf("%w: multiple compute entry points", ErrUnsupportedStage)
			}
			haveCompute = true
			refl.ComputeEntry = ep.Name
			refl.Workgroup = ep.Workgroup
		}
	}

	switch {
	case haveCompute && (haveVertex || haveFragment):
		return nil, fmt.Errorf("%w: compute mixed with render stages", ErrUnsupportedStage)
	case haveCompute:
		refl.Kind = KindCompute
	case haveVertex && haveFragment:
		refl.Kind = KindVertexFragment
	case haveVertex:
		refl.Kind = KindVertex
	case haveFragment:
		refl.Kind = KindFragment
	default:
		return nil, ErrMissingEntryPoint
	}

	return refl, nil
}

// collectBindings classifies every bound global by address space.
func collectBindings(m *ir.Module) ([]BindingInfo, error) {
	var bindings []BindingInfo
	seen := make(map[[2]uint32]bool)

	for _, gv := range m.GlobalVariables {
		if gv.Binding == nil {
			continue
		}

		slot := [2]uint32{gv.Binding.Group, gv.Binding.Binding}
		if seen[slot] {
			return nil, fmt.Errorf("%w: (%d, %d)", ErrDuplicateBinding, slot[0], slot[1])
		}
		seen[slot] = true

		bt, err := classifyGlobal(m, gv)
		if err != nil {
			return nil, fmt.Errorf("binding %q at (%d, %d): %w", gv.Name, slot[0], slot[1], err)
		}

		bindings = append(bindings, BindingInfo{
			Group:   gv.Binding.Group,
			Binding: gv.Binding.Binding,
			Name:    gv.Name,
			Type:    bt,
		})
	}

	sort.Slice(bindings, func(i, j int) bool {
		if bindings[i].Group != bindings[j].Group {
			return bindings[i].Group < bindings[j].Group
		}
		return bindings[i].Binding < bindings[j].Binding
	})

	return bindings, nil
}

func classifyGlobal(m *ir.Module, gv ir.GlobalVariable) (BindingType, error) {
	inner, err := resolveInner(m, gv.Type)
	if err != nil {
		return nil, err
	}

	switch gv.Space {
	case ir.SpaceUniform:
		size, err := TypeSize(m, gv.Type)
		if err != nil {
			return nil, err
		}
		if size <= 16 {
			return nil, fmt.Errorf("%w: %d bytes", ErrUniformTooSmall, size)
		}
		return UniformBuffer{Size: size}, nil

	case ir.SpacePushConstant:
		size, err := TypeSize(m, gv.Type)
		if err != nil {
			return nil, err
		}
		return PushConstant{Size: size}, nil

	case ir.SpaceStorage:
		switch inner.(type) {
		case ir.ImageType:
			return StorageTexture{Access: AccessReadWrite}, nil
		case ir.StructType, ir.ArrayType:
			size, err := TypeSize(m, gv.Type)
			if err != nil {
				return nil, err
			}
			return StorageBuffer{Size: size, Access: AccessReadWrite}, nil
		default:
			return nil, fmt.Errorf("%w: storage global of type %T", ErrUnsupportedType, inner)
		}

	case ir.SpaceHandle:
		switch t := inner.(type) {
		case ir.SamplerType:
			return Sampler{Comparison: t.Comparison}, nil
		case ir.ImageType:
			if t.Class == ir.ImageClassStorage {
				return nil, ErrStorageImageMisrouted
			}
			return Texture{Multisampled: t.Multisampled}, nil
		default:
			return nil, fmt.Errorf("%w: handle global of type %T", ErrUnsupportedType, inner)
		}

	default:
		return nil, fmt.Errorf("%w: address space %d", ErrUnsupportedType, gv.Space)
	}
}

// resolveInner returns the inner type at h, following pointers.
func resolveInner(m *ir.Module, h ir.TypeHandle) (ir.TypeInner, error) {
	for {
		if int(h) >= len(m.Types) {
			return nil, fmt.Errorf("%w: type handle %d out of range", ErrUnsupportedType, h)
		}
		inner := m.Types[h].Inner
		ptr, ok := inner.(ir.PointerType)
		if !ok {
			return inner, nil
		}
		h = ptr.Base
	}
}

// vertexInputOf walks the vertex entry point's struct argument and computes
// a packed attribute layout. Builtin-bound arguments are skipped; a vertex
// shader driven purely by vertex_index has no vertex input (nil).
func vertexInputOf(m *ir.Module, ep ir.EntryPoint) (*VertexInput, error) {
	if int(ep.Function) >= len(m.Functions) {
		return nil, fmt.Errorf("%w: function handle %d out of range", ErrUnsupportedType, ep.Function)
	}
	fn := m.Functions[ep.Function]

	for _, arg := range fn.Arguments {
		if isBuiltinBound(arg.Binding) {
			continue
		}

		inner, err := resolveInner(m, arg.Type)
		if err != nil {
			return nil, err
		}
		st, ok := inner.(ir.StructType)
		if !ok {
			// A lone @location argument outside a struct.
			if loc, isLoc := locationOf(arg.Binding); isLoc {
				format, err := vertexFormatOf(m, arg.Type)
				if err != nil {
					return nil, err
				}
				return &VertexInput{
					Name:   arg.Name,
					Stride: format.Size(),
					Attributes: []VertexAttribute{
						{Location: loc.Location, Offset: 0, Format: format},
					},
				}, nil
			}
			return nil, fmt.Errorf("%w: argument %q", ErrMissingBinding, arg.Name)
		}

		input := &VertexInput{Name: m.Types[arg.Type].Name}
		var offset uint64
		for _, member := range st.Members {
			if isBuiltinBound(member.Binding) {
				continue
			}
			loc, isLoc := locationOf(member.Binding)
			if !isLoc {
				return nil, fmt.Errorf("%w: member %q", ErrMissingBinding, member.Name)
			}
			format, err := vertexFormatOf(m, member.Type)
			if err != nil {
				return nil, fmt.Errorf("member %q: %w", member.Name, err)
			}
			input.Attributes = append(input.Attributes, VertexAttribute{
				Location: loc.Location,
				Offset:   offset,
				Format:   format,
			})
			offset += format.Size()
		}
		input.Stride = offset
		return input, nil
	}

	return nil, nil
}

// isBuiltinBound reports whether b carries a @builtin annotation.
func isBuiltinBound(b *ir.Binding) bool {
	if b == nil {
		return false
	}
	_, ok := (*b).(ir.BuiltinBinding)
	return ok
}

// locationOf extracts a @location annotation, if present.
func locationOf(b *ir.Binding) (ir.LocationBinding, bool) {
	if b == nil {
		return ir.LocationBinding{}, false
	}
	loc, ok := (*b).(ir.LocationBinding)
	return loc, ok
}
