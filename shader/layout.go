// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"

	"github.com/gogpu/naga/ir"
)

// std140-like layout rules used for binding size inference:
// scalars are 4 bytes; vec2 aligns to 8; vec3 and vec4 align to 16 with
// sizes 12 and 16; each matrix column is rounded up to 16 bytes; a struct
// is the padded sum of its members, rounded up to the largest member
// alignment. Runtime-sized arrays report SizeUnbounded.

// TypeSize returns the std140 byte size of the type at h.
// Runtime-sized arrays yield SizeUnbounded.
func TypeSize(m *ir.Module, h ir.TypeHandle) (uint32, error) {
	size, _, err := typeLayout(m, h)
	return size, err
}

func typeLayout(m *ir.Module, h ir.TypeHandle) (size, align uint32, err error) {
	if int(h) >= len(m.Types) {
		return 0, 0, fmt.Errorf("%w: type handle %d out of range", ErrUnsupportedType, h)
	}
	return innerLayout(m, m.Types[h].Inner)
}

func innerLayout(m *ir.Module, inner ir.TypeInner) (size, align uint32, err error) {
	switch t := inner.(type) {
	case ir.ScalarType:
		return 4, 4, nil

	case ir.AtomicType:
		return 4, 4, nil

	case ir.VectorType:
		switch t.Size {
		case ir.Vec2:
			return 8, 8, nil
		case ir.Vec3:
			return 12, 16, nil
		case ir.Vec4:
			return 16, 16, nil
		}
		return 0, 0, fmt.Errorf("%w: vector size %d", ErrUnsupportedType, t.Size)

	case ir.MatrixType:
		// Each column is padded to a 16-byte row.
		return uint32(t.Columns) * 16, 16, nil

	case ir.ArrayType:
		if t.Size.Constant == nil {
			return SizeUnbounded, 16, nil
		}
		stride := t.Stride
		if stride == 0 {
			elemSize, elemAlign, err := typeLayout(m, t.Base)
			if err != nil {
				return 0, 0, err
			}
			if elemSize == SizeUnbounded {
				return 0, 0, fmt.Errorf("%w: nested runtime array", ErrUnsupportedType)
			}
			stride = alignUp(elemSize, elemAlign)
		}
		return *t.Size.Constant * stride, 16, nil

	case ir.StructType:
		var offset, maxAlign uint32
		for _, member := range t.Members {
			msize, malign, err := typeLayout(m, member.Type)
			if err != nil {
				return 0, 0, err
			}
			if msize == SizeUnbounded {
				// A trailing runtime array makes the whole struct unbounded.
				return SizeUnbounded, 16, nil
			}
			if malign > maxAlign {
				maxAlign = malign
			}
			offset = alignUp(offset, malign) + msize
		}
		if maxAlign == 0 {
			maxAlign = 4
		}
		return alignUp(offset, maxAlign), maxAlign, nil

	case ir.PointerType:
		return typeLayout(m, t.Base)

	default:
		return 0, 0, fmt.Errorf("%w: %T", ErrUnsupportedType, inner)
	}
}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// vertexFormatOf maps a scalar or vector IR type to a vertex attribute
// format. Anything else is not representable as a vertex input.
func vertexFormatOf(m *ir.Module, h ir.TypeHandle) (VertexFormat, error) {
	if int(h) >= len(m.Types) {
		return 0, fmt.Errorf("%w: type handle %d out of range", ErrUnsupportedVertexInputType, h)
	}
	switch t := m.Types[h].Inner.(type) {
	case ir.ScalarType:
		return scalarVertexFormat(t.Kind, 1)
	case ir.VectorType:
		return scalarVertexFormat(t.Scalar.Kind, int(t.Size))
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedVertexInputType, m.Types[h].Inner)
	}
}

func scalarVertexFormat(kind ir.ScalarKind, components int) (VertexFormat, error) {
	var base VertexFormat
	switch kind {
	case ir.ScalarFloat:
		base = FormatFloat32
	case ir.ScalarSint:
		base = FormatSint32
	case ir.ScalarUint:
		base = FormatUint32
	default:
		return 0, fmt.Errorf("%w: scalar kind %d", ErrUnsupportedVertexInputType, kind)
	}
	if components < 1 || components > 4 {
		return 0, fmt.Errorf("%w: %d components", ErrUnsupportedVertexInputType, components)
	}
	return base + VertexFormat(components-1), nil
}
