// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Binary container layout, all integers little-endian:
//
//	magic              20 bytes
//	kind               u32 (0=Vertex 1=Fragment 2=VertexFragment 3=Compute)
//	entry point        u32 length + UTF-8 bytes ("vs,fs" for VertexFragment)
//	binding count      u32
//	per binding        group u32, binding u32, name (u32 length + bytes),
//	                   type tag u32, type payload
//	vertex input flag  u32 (0 or 1)
//	vertex input       name (u32 length + bytes), stride u64,
//	                   attribute count u32,
//	                   per attribute: location u32, offset u64, format u32
//	payload            u32 length + SPIR-V bytes
//
// Type tags 0..5 map to UniformBuffer, StorageBuffer, StorageTexture,
// Sampler, Texture, PushConstant. Payloads: UniformBuffer and PushConstant
// carry size u32; StorageBuffer carries size u32 + access u32;
// StorageTexture carries access u32; Sampler and Texture carry one u32 flag
// (comparison, multisampled).

// binaryMagic is the fixed 20-byte container prefix.
const binaryMagic = "gfx-binary-shader-v1"

// Container errors.
var (
	// ErrNotBinary is returned when the input does not start with the
	// container magic.
	ErrNotBinary = errors.New("shader: not a binary shader container")

	// ErrMalformedBinary is returned for a truncated or inconsistent
	// container.
	ErrMalformedBinary = errors.New("shader: malformed binary shader container")
)

const (
	tagUniformBuffer uint32 = iota
	tagStorageBuffer
	tagStorageTexture
	tagSampler
	tagTexture
	tagPushConstant
)

// IsBinary reports whether data starts with the binary container magic.
func IsBinary(data []byte) bool {
	return len(data) >= len(binaryMagic) && string(data[:len(binaryMagic)]) == binaryMagic
}

// EncodeBinary serializes a reflection plus its compiled SPIR-V payload
// into the binary container format.
func EncodeBinary(refl *Reflection, spirv []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(binaryMagic)

	writeU32(&buf, uint32(refl.Kind))
	writeString(&buf, entryPointField(refl))

	writeU32(&buf, uint32(len(refl.Bindings)))
	for _, b := range refl.Bindings {
		writeU32(&buf, b.Group)
		writeU32(&buf, b.Binding)
		writeString(&buf, b.Name)
		if err := writeBindingType(&buf, b.Type); err != nil {
			return nil, err
		}
	}

	if refl.VertexInput != nil {
		writeU32(&buf, 1)
		vi := refl.VertexInput
		writeString(&buf, vi.Name)
		writeU64(&buf, vi.Stride)
		writeU32(&buf, uint32(len(vi.Attributes)))
		for _, a := range vi.Attributes {
			writeU32(&buf, a.Location)
			writeU64(&buf, a.Offset)
			writeU32(&buf, uint32(a.Format))
		}
	} else {
		writeU32(&buf, 0)
	}

	writeU32(&buf, uint32(len(spirv)))
	buf.Write(spirv)

	return buf.Bytes(), nil
}

// DecodeBinary parses a binary container back into a reflection and its
// SPIR-V payload.
func DecodeBinary(data []byte) (*Reflection, []byte, error) {
	if !IsBinary(data) {
		return nil, nil, ErrNotBinary
	}
	r := &binaryReader{data: data, off: len(binaryMagic)}

	kind := Kind(r.u32())
	if kind > KindCompute {
		return nil, nil, fmt.Errorf("%w: kind %d", ErrMalformedBinary, kind)
	}
	entry := r.str()

	refl := &Reflection{Kind: kind}
	if err := setEntryPoints(refl, entry); err != nil {
		return nil, nil, err
	}

	count := r.u32()
	for i := uint32(0); i < count && r.err == nil; i++ {
		info := BindingInfo{
			Group:   r.u32(),
			Binding: r.u32(),
			Name:    r.str(),
		}
		bt, err := r.bindingType()
		if err != nil {
			return nil, nil, err
		}
		info.Type = bt
		refl.Bindings = append(refl.Bindings, info)
	}

	if r.u32() == 1 {
		vi := &VertexInput{
			Name:   r.str(),
			Stride: r.u64(),
		}
		attrCount := r.u32()
		for i := uint32(0); i < attrCount && r.err == nil; i++ {
			loc := r.u32()
			off := r.u64()
			raw := r.u32()
			if raw >= uint32(formatCount) {
				return nil, nil, fmt.Errorf("%w: vertex format %d", ErrMalformedBinary, raw)
			}
			vi.Attributes = append(vi.Attributes, VertexAttribute{
				Location: loc,
				Offset:   off,
				Format:   VertexFormat(raw),
			})
		}
		refl.VertexInput = vi
	}

	payload := r.bytes(int(r.u32()))
	if r.err != nil {
		return nil, nil, r.err
	}

	return refl, payload, nil
}

func entryPointField(refl *Reflection) string {
	switch refl.Kind {
	case KindVertex:
		return refl.VertexEntry
	case KindFragment:
		return refl.FragmentEntry
	case KindVertexFragment:
		return refl.VertexEntry + "," + refl.FragmentEntry
	case KindCompute:
		return refl.ComputeEntry
	default:
		return ""
	}
}

func setEntryPoints(refl *Reflection, entry string) error {
	switch refl.Kind {
	case KindVertex:
		refl.VertexEntry = entry
	case KindFragment:
		refl.FragmentEntry = entry
	case KindVertexFragment:
		vs, fs, ok := strings.Cut(entry, ",")
		if !ok {
			return fmt.Errorf("%w: entry point %q lacks comma pair", ErrMalformedBinary, entry)
		}
		refl.VertexEntry = vs
		refl.FragmentEntry = fs
	case KindCompute:
		refl.ComputeEntry = entry
	}
	return nil
}

func writeBindingType(buf *bytes.Buffer, bt BindingType) error {
	switch t := bt.(type) {
	case UniformBuffer:
		writeU32(buf, tagUniformBuffer)
		writeU32(buf, t.Size)
	case StorageBuffer:
		writeU32(buf, tagStorageBuffer)
		writeU32(buf, t.Size)
		writeU32(buf, uint32(t.Access))
	case StorageTexture:
		writeU32(buf, tagStorageTexture)
		writeU32(buf, uint32(t.Access))
	case Sampler:
		writeU32(buf, tagSampler)
		writeU32(buf, boolU32(t.Comparison))
	case Texture:
		writeU32(buf, tagTexture)
		writeU32(buf, boolU32(t.Multisampled))
	case PushConstant:
		writeU32(buf, tagPushConstant)
		writeU32(buf, t.Size)
	default:
		return fmt.Errorf("%w: cannot encode %T", ErrUnsupportedType, bt)
	}
	return nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// binaryReader is a bounds-checked cursor over container bytes. The first
// out-of-range read latches err; subsequent reads return zero values.
type binaryReader struct {
	data []byte
	off  int
	err  error
}

func (r *binaryReader) fail() {
	if r.err == nil {
		r.err = fmt.Errorf("%w: truncated at offset %d", ErrMalformedBinary, r.off)
	}
}

func (r *binaryReader) u32() uint32 {
	if r.err != nil || r.off+4 > len(r.data) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *binaryReader) u64() uint64 {
	if r.err != nil || r.off+8 > len(r.data) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

func (r *binaryReader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.off+n > len(r.data) {
		r.fail()
		return nil
	}
	v := r.data[r.off : r.off+n]
	r.off += n
	return v
}

func (r *binaryReader) str() string {
	n := r.u32()
	return string(r.bytes(int(n)))
}

func (r *binaryReader) bindingType() (BindingType, error) {
	tag := r.u32()
	switch tag {
	case tagUniformBuffer:
		return UniformBuffer{Size: r.u32()}, r.err
	case tagStorageBuffer:
		return StorageBuffer{Size: r.u32(), Access: Access(r.u32())}, r.err
	case tagStorageTexture:
		return StorageTexture{Access: Access(r.u32())}, r.err
	case tagSampler:
		return Sampler{Comparison: r.u32() == 1}, r.err
	case tagTexture:
		return Texture{Multisampled: r.u32() == 1}, r.err
	case tagPushConstant:
		return PushConstant{Size: r.u32()}, r.err
	default:
		if r.err != nil {
			return nil, r.err
		}
		return nil, fmt.Errorf("%w: binding type tag %d", ErrMalformedBinary, tag)
	}
}
