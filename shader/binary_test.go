// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"reflect"
	"testing"
)

func testReflection() *Reflection {
	return &Reflection{
		Kind:          KindVertexFragment,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		Bindings: []BindingInfo{
			{Group: 0, Binding: 0, Name: "globals", Type: UniformBuffer{Size: 64}},
			{Group: 0, Binding: 1, Name: "items", Type: StorageBuffer{Size: SizeUnbounded, Access: AccessReadOnly}},
			{Group: 0, Binding: 2, Name: "img", Type: StorageTexture{Access: AccessReadWrite}},
			{Group: 1, Binding: 0, Name: "tex", Type: Texture{Multisampled: true}},
			{Group: 1, Binding: 1, Name: "samp", Type: Sampler{Comparison: true}},
			{Group: 2, Binding: 0, Name: "pc", Type: PushConstant{Size: 32}},
		},
		VertexInput: &VertexInput{
			Name:   "VertexIn",
			Stride: 24,
			Attributes: []VertexAttribute{
				{Location: 0, Offset: 0, Format: FormatFloat32x2},
				{Location: 1, Offset: 8, Format: FormatFloat32x4},
			},
		},
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	refl := testReflection()
	payload := []byte{0x03, 0x02, 0x23, 0x07, 1, 2, 3, 4}

	data, err := EncodeBinary(refl, payload)
	if err != nil {
		t.Fatalf("EncodeBinary failed: %v", err)
	}
	if !IsBinary(data) {
		t.Fatal("IsBinary = false for encoded container")
	}

	got, gotPayload, err := DecodeBinary(data)
	if err != nil {
		t.Fatalf("DecodeBinary failed: %v", err)
	}
	if !reflect.DeepEqual(got, refl) {
		t.Errorf("reflection = %+v, want %+v", got, refl)
	}
	if !reflect.DeepEqual(gotPayload, payload) {
		t.Errorf("payload = %v, want %v", gotPayload, payload)
	}
}

func TestBinaryRoundTripCompute(t *testing.T) {
	refl := &Reflection{
		Kind:         KindCompute,
		ComputeEntry: "cs_main",
		Bindings: []BindingInfo{
			{Group: 0, Binding: 0, Name: "data", Type: StorageBuffer{Size: SizeUnbounded}},
		},
	}

	data, err := EncodeBinary(refl, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("EncodeBinary failed: %v", err)
	}
	got, _, err := DecodeBinary(data)
	if err != nil {
		t.Fatalf("DecodeBinary failed: %v", err)
	}
	if got.ComputeEntry != "cs_main" || got.Kind != KindCompute {
		t.Errorf("got %s entry %q", got.Kind, got.ComputeEntry)
	}
	if got.VertexInput != nil {
		t.Errorf("VertexInput = %+v, want nil", got.VertexInput)
	}
}

func TestBinaryRejectsForeignData(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		[]byte("short"),
		[]byte("not a shader container at all, but long enough"),
	} {
		if IsBinary(data) {
			t.Errorf("IsBinary(%q) = true", data)
		}
		if _, _, err := DecodeBinary(data); !errors.Is(err, ErrNotBinary) {
			t.Errorf("DecodeBinary(%q) err = %v, want ErrNotBinary", data, err)
		}
	}
}

func TestBinaryTruncated(t *testing.T) {
	data, err := EncodeBinary(testReflection(), []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("EncodeBinary failed: %v", err)
	}

	// Cut inside the header, inside the binding table, and inside the
	// payload; each must fail cleanly.
	for _, n := range []int{len(binaryMagic) + 2, len(data) / 2, len(data) - 2} {
		if _, _, err := DecodeBinary(data[:n]); !errors.Is(err, ErrMalformedBinary) {
			t.Errorf("truncated to %d: err = %v, want ErrMalformedBinary", n, err)
		}
	}
}

func TestBinaryBadKind(t *testing.T) {
	data, err := EncodeBinary(testReflection(), []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("EncodeBinary failed: %v", err)
	}
	data[len(binaryMagic)] = 0xFF
	if _, _, err := DecodeBinary(data); !errors.Is(err, ErrMalformedBinary) {
		t.Errorf("err = %v, want ErrMalformedBinary", err)
	}
}
