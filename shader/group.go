// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Layout derivation errors.
var (
	// ErrIncompatibleBinding is returned when two stages declare the same
	// (group, binding) slot with different types.
	ErrIncompatibleBinding = errors.New("shader: incompatible binding types across stages")
)

// GroupLayout is the derived layout for one bind group number: the backend
// handle plus the sorted binding slots it covers.
type GroupLayout struct {
	Group    uint32
	Bindings []uint32
	Handle   hal.BindGroupLayout
}

// mergedBinding pairs a binding with the union of stage visibilities that
// declare it.
type mergedBinding struct {
	info       BindingInfo
	visibility gputypes.ShaderStage
}

// stageVisibility maps a reflection kind to the backend stage flags its
// bindings are visible to.
func stageVisibility(k Kind) gputypes.ShaderStage {
	switch k {
	case KindVertex:
		return gputypes.ShaderStageVertex
	case KindFragment:
		return gputypes.ShaderStageFragment
	case KindVertexFragment:
		return gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	case KindCompute:
		return gputypes.ShaderStageCompute
	default:
		return 0
	}
}

// DeriveGroupLayouts merges the bindings of one or more reflections and
// creates one backend layout per distinct group.
//
// A (group, binding) slot declared by multiple stages must carry the same
// type in each; the visibilities are ORed. Incompatible declarations fail
// the build. Push constants are excluded; they are not part of any group.
//
// The result is sorted by group number and is deterministic for a given
// set of reflections.
func DeriveGroupLayouts(device hal.Device, label string, refls ...*Reflection) ([]GroupLayout, error) {
	merged, err := mergeBindings(refls...)
	if err != nil {
		return nil, err
	}

	byGroup := make(map[uint32][]mergedBinding)
	for _, mb := range merged {
		byGroup[mb.info.Group] = append(byGroup[mb.info.Group], mb)
	}

	groups := make([]uint32, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	layouts := make([]GroupLayout, 0, len(groups))
	for _, g := range groups {
		entries := byGroup[g]
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].info.Binding < entries[j].info.Binding
		})

		halEntries := make([]gputypes.BindGroupLayoutEntry, 0, len(entries))
		bindings := make([]uint32, 0, len(entries))
		for _, mb := range entries {
			entry, err := layoutEntry(mb.info, mb.visibility)
			if err != nil {
				return nil, err
			}
			halEntries = append(halEntries, entry)
			bindings = append(bindings, mb.info.Binding)
		}

		handle, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d bindings %v", label, g, bindings),
			Entries: halEntries,
		})
		if err != nil {
			for _, l := range layouts {
				device.DestroyBindGroupLayout(l.Handle)
			}
			return nil, fmt.Errorf("create bind group layout for group %d: %w", g, err)
		}

		layouts = append(layouts, GroupLayout{Group: g, Bindings: bindings, Handle: handle})
	}

	return layouts, nil
}

// mergeBindings combines the bindings of several reflections, ORing
// visibility per slot and rejecting type conflicts. The result is sorted
// by (group, binding).
func mergeBindings(refls ...*Reflection) ([]mergedBinding, error) {
	bySlot := make(map[[2]uint32]*mergedBinding)
	var order [][2]uint32

	for _, refl := range refls {
		vis := stageVisibility(refl.Kind)
		for _, info := range refl.Bindings {
			if _, isPush := info.Type.(PushConstant); isPush {
				continue
			}
			slot := [2]uint32{info.Group, info.Binding}
			if existing, ok := bySlot[slot]; ok {
				if existing.info.Type != info.Type {
					return nil, fmt.Errorf("%w: (%d, %d) is %T and %T",
						ErrIncompatibleBinding, slot[0], slot[1], existing.info.Type, info.Type)
				}
				existing.visibility |= vis
				continue
			}
			bySlot[slot] = &mergedBinding{info: info, visibility: vis}
			order = append(order, slot)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i][0] != order[j][0] {
			return order[i][0] < order[j][0]
		}
		return order[i][1] < order[j][1]
	})

	merged := make([]mergedBinding, 0, len(order))
	for _, slot := range order {
		merged = append(merged, *bySlot[slot])
	}
	return merged, nil
}

// layoutEntry converts one merged binding to a backend layout entry.
func layoutEntry(info BindingInfo, vis gputypes.ShaderStage) (gputypes.BindGroupLayoutEntry, error) {
	entry := gputypes.BindGroupLayoutEntry{
		Binding:    info.Binding,
		Visibility: vis,
	}

	switch t := info.Type.(type) {
	case UniformBuffer:
		min := uint64(t.Size)
		if t.Size == SizeUnbounded {
			min = 0
		}
		entry.Buffer = &gputypes.BufferBindingLayout{
			Type:           gputypes.BufferBindingTypeUniform,
			MinBindingSize: min,
		}

	case StorageBuffer:
		bt := gputypes.BufferBindingTypeStorage
		if t.Access == AccessReadOnly {
			bt = gputypes.BufferBindingTypeReadOnlyStorage
		}
		min := uint64(t.Size)
		if t.Size == SizeUnbounded {
			min = 0
		}
		entry.Buffer = &gputypes.BufferBindingLayout{
			Type:           bt,
			MinBindingSize: min,
		}

	case StorageTexture:
		entry.StorageTexture = &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessReadWrite,
			Format:        gputypes.TextureFormatRGBA8Unorm,
			ViewDimension: gputypes.TextureViewDimension2D,
		}

	case Sampler:
		entry.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}

	case Texture:
		entry.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}

	default:
		return entry, fmt.Errorf("%w: %T in bind group", ErrUnsupportedType, info.Type)
	}

	return entry, nil
}
