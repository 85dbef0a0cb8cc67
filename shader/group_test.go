// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestMergeBindingsORsVisibility(t *testing.T) {
	vert := &Reflection{
		Kind: KindVertex,
		Bindings: []BindingInfo{
			{Group: 0, Binding: 0, Name: "globals", Type: UniformBuffer{Size: 64}},
		},
	}
	frag := &Reflection{
		Kind: KindFragment,
		Bindings: []BindingInfo{
			{Group: 0, Binding: 0, Name: "globals", Type: UniformBuffer{Size: 64}},
			{Group: 0, Binding: 1, Name: "tex", Type: Texture{}},
		},
	}

	merged, err := mergeBindings(vert, frag)
	if err != nil {
		t.Fatalf("mergeBindings failed: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("got %d merged bindings, want 2", len(merged))
	}
	wantVis := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	if merged[0].visibility != wantVis {
		t.Errorf("shared binding visibility = %v, want vertex|fragment", merged[0].visibility)
	}
	if merged[1].visibility != gputypes.ShaderStageFragment {
		t.Errorf("fragment-only binding visibility = %v, want fragment", merged[1].visibility)
	}
}

func TestMergeBindingsRejectsConflict(t *testing.T) {
	vert := &Reflection{
		Kind: KindVertex,
		Bindings: []BindingInfo{
			{Group: 0, Binding: 0, Name: "globals", Type: UniformBuffer{Size: 64}},
		},
	}
	frag := &Reflection{
		Kind: KindFragment,
		Bindings: []BindingInfo{
			{Group: 0, Binding: 0, Name: "globals", Type: Texture{}},
		},
	}

	if _, err := mergeBindings(vert, frag); !errors.Is(err, ErrIncompatibleBinding) {
		t.Errorf("err = %v, want ErrIncompatibleBinding", err)
	}
}

func TestMergeBindingsExcludesPushConstants(t *testing.T) {
	refl := &Reflection{
		Kind: KindVertexFragment,
		Bindings: []BindingInfo{
			{Group: 0, Binding: 0, Name: "pc", Type: PushConstant{Size: 16}},
			{Group: 0, Binding: 1, Name: "tex", Type: Texture{}},
		},
	}

	merged, err := mergeBindings(refl)
	if err != nil {
		t.Fatalf("mergeBindings failed: %v", err)
	}
	if len(merged) != 1 || merged[0].info.Name != "tex" {
		t.Errorf("merged = %+v, want only tex", merged)
	}
}

func TestMergeBindingsDeterministicOrder(t *testing.T) {
	refl := &Reflection{
		Kind: KindFragment,
		Bindings: []BindingInfo{
			{Group: 1, Binding: 0, Name: "d", Type: Texture{}},
			{Group: 0, Binding: 2, Name: "c", Type: Texture{}},
			{Group: 0, Binding: 0, Name: "a", Type: UniformBuffer{Size: 64}},
			{Group: 0, Binding: 1, Name: "b", Type: Sampler{}},
		},
	}

	merged, err := mergeBindings(refl)
	if err != nil {
		t.Fatalf("mergeBindings failed: %v", err)
	}
	var got []string
	for _, mb := range merged {
		got = append(got, mb.info.Name)
	}
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestLayoutEntryKinds(t *testing.T) {
	tests := []struct {
		name string
		bt   BindingType
		chk  func(t *testing.T, e gputypes.BindGroupLayoutEntry)
	}{
		{
			name: "uniform",
			bt:   UniformBuffer{Size: 64},
			chk: func(t *testing.T, e gputypes.BindGroupLayoutEntry) {
				if e.Buffer == nil || e.Buffer.Type != gputypes.BufferBindingTypeUniform {
					t.Fatalf("Buffer = %+v, want uniform", e.Buffer)
				}
				if e.Buffer.MinBindingSize != 64 {
					t.Errorf("MinBindingSize = %d, want 64", e.Buffer.MinBindingSize)
				}
			},
		},
		{
			name: "runtime storage",
			bt:   StorageBuffer{Size: SizeUnbounded},
			chk: func(t *testing.T, e gputypes.BindGroupLayoutEntry) {
				if e.Buffer == nil || e.Buffer.Type != gputypes.BufferBindingTypeStorage {
					t.Fatalf("Buffer = %+v, want storage", e.Buffer)
				}
				if e.Buffer.MinBindingSize != 0 {
					t.Errorf("MinBindingSize = %d, want 0 for runtime size", e.Buffer.MinBindingSize)
				}
			},
		},
		{
			name: "read-only storage",
			bt:   StorageBuffer{Size: 128, Access: AccessReadOnly},
			chk: func(t *testing.T, e gputypes.BindGroupLayoutEntry) {
				if e.Buffer == nil || e.Buffer.Type != gputypes.BufferBindingTypeReadOnlyStorage {
					t.Fatalf("Buffer = %+v, want read-only storage", e.Buffer)
				}
			},
		},
		{
			name: "sampler",
			bt:   Sampler{},
			chk: func(t *testing.T, e gputypes.BindGroupLayoutEntry) {
				if e.Sampler == nil {
					t.Fatal("Sampler = nil")
				}
			},
		},
		{
			name: "texture",
			bt:   Texture{},
			chk: func(t *testing.T, e gputypes.BindGroupLayoutEntry) {
				if e.Texture == nil {
					t.Fatal("Texture = nil")
				}
			},
		},
		{
			name: "storage texture",
			bt:   StorageTexture{},
			chk: func(t *testing.T, e gputypes.BindGroupLayoutEntry) {
				if e.StorageTexture == nil {
					t.Fatal("StorageTexture = nil")
				}
				if e.StorageTexture.Access != gputypes.StorageTextureAccessReadWrite {
					t.Errorf("Access = %v, want read-write", e.StorageTexture.Access)
				}
				if e.StorageTexture.Format != gputypes.TextureFormatRGBA8Unorm {
					t.Errorf("Format = %v, want rgba8unorm", e.StorageTexture.Format)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := layoutEntry(BindingInfo{Binding: 3, Type: tt.bt}, gputypes.ShaderStageFragment)
			if err != nil {
				t.Fatalf("layoutEntry failed: %v", err)
			}
			if entry.Binding != 3 {
				t.Errorf("Binding = %d, want 3", entry.Binding)
			}
			if entry.Visibility != gputypes.ShaderStageFragment {
				t.Errorf("Visibility = %v, want fragment", entry.Visibility)
			}
			tt.chk(t, entry)
		})
	}
}

func TestLayoutEntryRejectsPushConstant(t *testing.T) {
	_, err := layoutEntry(BindingInfo{Type: PushConstant{Size: 16}}, gputypes.ShaderStageVertex)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("err = %v, want ErrUnsupportedType", err)
	}
}
