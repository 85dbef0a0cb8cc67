// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/cache"
	"github.com/gogpu/gfx/shader"
)

// Attachment errors.
var (
	// ErrUnknownBinding is returned when an attachment targets a
	// (group, binding) slot the shader does not declare.
	ErrUnknownBinding = errors.New("gfx: attachment targets an undeclared binding")

	// ErrBindingTypeMismatch is returned when an attachment's resource
	// kind does not match the shader's declared binding type.
	ErrBindingTypeMismatch = errors.New("gfx: attachment type does not match shader binding")

	// ErrBindingTooSmall is returned when a buffer attachment is smaller
	// than the size the shader declares for the binding.
	ErrBindingTooSmall = errors.New("gfx: buffer smaller than the shader's declared binding size")

	// ErrBindingUsageMissing is returned when an attached resource lacks
	// the usage flag its binding requires.
	ErrBindingUsageMissing = errors.New("gfx: attached resource lacks the required usage flag")

	// ErrNilAttachmentResource is returned when an attachment carries a
	// nil resource.
	ErrNilAttachmentResource = errors.New("gfx: attachment resource is nil")
)

// attachmentKind is the resource kind an Attachment carries.
type attachmentKind uint8

const (
	attachUniform attachmentKind = iota
	attachStorage
	attachTexture
	attachStorageTexture
	attachSampler
)

func (k attachmentKind) String() string {
	switch k {
	case attachUniform:
		return "UniformBuffer"
	case attachStorage:
		return "StorageBuffer"
	case attachTexture:
		return "Texture"
	case attachStorageTexture:
		return "StorageTexture"
	case attachSampler:
		return "Sampler"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// Attachment binds one resource to a shader's (group, binding) slot.
// Build attachments with the constructor matching the resource kind.
type Attachment struct {
	Group   uint32
	Binding uint32

	kind    attachmentKind
	buffer  *Buffer
	texture *Texture
	sampler *Sampler
}

// UniformAttachment binds buf as a uniform buffer.
func UniformAttachment(group, binding uint32, buf *Buffer) Attachment {
	return Attachment{Group: group, Binding: binding, kind: attachUniform, buffer: buf}
}

// StorageAttachment binds buf as a storage buffer.
func StorageAttachment(group, binding uint32, buf *Buffer) Attachment {
	return Attachment{Group: group, Binding: binding, kind: attachStorage, buffer: buf}
}

// TextureAttachment binds tex as a sampled texture.
func TextureAttachment(group, binding uint32, tex *Texture) Attachment {
	return Attachment{Group: group, Binding: binding, kind: attachTexture, texture: tex}
}

// StorageTextureAttachment binds tex as a writable storage texture.
func StorageTextureAttachment(group, binding uint32, tex *Texture) Attachment {
	return Attachment{Group: group, Binding: binding, kind: attachStorageTexture, texture: tex}
}

// SamplerAttachment binds s as a sampler.
func SamplerAttachment(group, binding uint32, s *Sampler) Attachment {
	return Attachment{Group: group, Binding: binding, kind: attachSampler, sampler: s}
}

// resourceID returns the attached resource's process-unique ID for key
// hashing.
func (a *Attachment) resourceID() uint64 {
	switch a.kind {
	case attachUniform, attachStorage:
		return a.buffer.id
	case attachTexture, attachStorageTexture:
		return a.texture.id
	case attachSampler:
		return a.sampler.id
	default:
		return 0
	}
}

// validateAttachment checks one attachment against the shader's declared
// binding: the slot must exist, the resource kind must match the declared
// type, buffers must be large enough and carry the matching usage flag.
func validateAttachment(refl *shader.Reflection, a Attachment) error {
	info, ok := refl.Binding(a.Group, a.Binding)
	if !ok {
		return fmt.Errorf("%w: (%d, %d)", ErrUnknownBinding, a.Group, a.Binding)
	}

	mismatch := func() error {
		return fmt.Errorf("%w: (%d, %d) %q wants %T, got %s",
			ErrBindingTypeMismatch, a.Group, a.Binding, info.Name, info.Type, a.kind)
	}

	switch t := info.Type.(type) {
	case shader.UniformBuffer:
		if a.kind != attachUniform {
			return mismatch()
		}
		if a.buffer == nil {
			return fmt.Errorf("%w: (%d, %d)", ErrNilAttachmentResource, a.Group, a.Binding)
		}
		if !a.buffer.usage.Contains(gputypes.BufferUsageUniform) {
			return fmt.Errorf("%w: buffer %q lacks Uniform usage", ErrBindingUsageMissing, a.buffer.label)
		}
		if t.Size != shader.SizeUnbounded && a.buffer.size < uint64(t.Size) {
			return fmt.Errorf("%w: %q is %d bytes, binding (%d, %d) declares %d",
				ErrBindingTooSmall, a.buffer.label, a.buffer.size, a.Group, a.Binding, t.Size)
		}

	case shader.StorageBuffer:
		if a.kind != attachStorage {
			return mismatch()
		}
		if a.buffer == nil {
			return fmt.Errorf("%w: (%d, %d)", ErrNilAttachmentResource, a.Group, a.Binding)
		}
		if !a.buffer.usage.Contains(gputypes.BufferUsageStorage) {
			return fmt.Errorf("%w: buffer %q lacks Storage usage", ErrBindingUsageMissing, a.buffer.label)
		}
		if t.Size != shader.SizeUnbounded && a.buffer.size < uint64(t.Size) {
			return fmt.Errorf("%w: %q is %d bytes, binding (%d, %d) declares %d",
				ErrBindingTooSmall, a.buffer.label, a.buffer.size, a.Group, a.Binding, t.Size)
		}

	case shader.Texture:
		if a.kind != attachTexture {
			return mismatch()
		}
		if a.texture == nil {
			return fmt.Errorf("%w: (%d, %d)", ErrNilAttachmentResource, a.Group, a.Binding)
		}
		if !a.texture.usage.Contains(gputypes.TextureUsageTextureBinding) {
			return fmt.Errorf("%w: texture %q lacks TextureBinding usage", ErrBindingUsageMissing, a.texture.label)
		}

	case shader.StorageTexture:
		if a.kind != attachStorageTexture {
			return mismatch()
		}
		if a.texture == nil {
			return fmt.Errorf("%w: (%d, %d)", ErrNilAttachmentResource, a.Group, a.Binding)
		}
		if !a.texture.usage.Contains(gputypes.TextureUsageStorageBinding) {
			return fmt.Errorf("%w: texture %q lacks StorageBinding usage", ErrBindingUsageMissing, a.texture.label)
		}

	case shader.Sampler:
		if a.kind != attachSampler {
			return mismatch()
		}
		if a.sampler == nil {
			return fmt.Errorf("%w: (%d, %d)", ErrNilAttachmentResource, a.Group, a.Binding)
		}

	default:
		return mismatch()
	}

	return nil
}

// validateAttachments checks every attachment against the shader.
func validateAttachments(refl *shader.Reflection, atts []Attachment) error {
	for _, a := range atts {
		if err := validateAttachment(refl, a); err != nil {
			return err
		}
	}
	return nil
}

// passBindGroup is a resolved bind group ready for SetBindGroup.
type passBindGroup struct {
	index  uint32
	handle hal.BindGroup
}

// layoutSlot maps a group number to its position in the shader's layout
// list, which is the index the pipeline layout exposes to SetBindGroup.
// The two differ when group numbers are sparse.
func layoutSlot(s *shader.Shader, group uint32) uint32 {
	for i, gl := range s.GroupLayouts() {
		if gl.Group == group {
			return uint32(i)
		}
	}
	return group
}

// bindGroupCache caches bind groups keyed by shader identity plus the
// sorted (group, binding, resource) tuples they bind.
type bindGroupCache struct {
	device  hal.Device
	entries *cache.FrameCache[hal.BindGroup]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

func newBindGroupCache(device hal.Device, cfg cache.FrameConfig) *bindGroupCache {
	bc := &bindGroupCache{
		device:  device,
		entries: cache.NewFrame[hal.BindGroup](cfg),
	}
	bc.entries.SetEvictFunc(func(bg hal.BindGroup) {
		device.DestroyBindGroup(bg)
	})
	return bc
}

// groupKey derives the cache key for one group's attachments, already
// sorted by binding.
func groupKey(shaderID uint64, group uint32, atts []Attachment) uint64 {
	k := newKeyHasher()
	k.writeU32(keyKindBindGroup)
	k.writeU64(shaderID)
	k.writeU32(group)
	for i := range atts {
		k.writeU32(atts[i].Binding)
		k.writeByte(byte(atts[i].kind))
		k.writeU64(atts[i].resourceID())
	}
	return k.sum()
}

// groupsFor resolves the attachments into one bind group per distinct
// group number, pulling from the cache where possible. Attachments must
// already have passed validateAttachments.
func (bc *bindGroupCache) groupsFor(s *shader.Shader, atts []Attachment) ([]passBindGroup, error) {
	sorted := make([]Attachment, len(atts))
	copy(sorted, atts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Group != sorted[j].Group {
			return sorted[i].Group < sorted[j].Group
		}
		return sorted[i].Binding < sorted[j].Binding
	})

	var groups []passBindGroup
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].Group == sorted[start].Group {
			end++
		}
		group := sorted[start].Group
		span := sorted[start:end]

		handle, err := bc.groupFor(s, group, span)
		if err != nil {
			return nil, err
		}
		groups = append(groups, passBindGroup{index: layoutSlot(s, group), handle: handle})
		start = end
	}
	return groups, nil
}

// groupFor returns the bind group for one group's attachments, creating
// it on a cache miss.
func (bc *bindGroupCache) groupFor(s *shader.Shader, group uint32, atts []Attachment) (hal.BindGroup, error) {
	key := groupKey(s.ID(), group, atts)
	if bg, ok := bc.entries.Get(key); ok {
		bc.hits.Add(1)
		return bg, nil
	}
	bc.misses.Add(1)

	layout, ok := s.GroupLayout(group)
	if !ok {
		return nil, fmt.Errorf("%w: shader %q has no group %d", ErrUnknownBinding, s.Label(), group)
	}

	entries := make([]gputypes.BindGroupEntry, 0, len(atts))
	for i := range atts {
		entry, err := bc.bindGroupEntry(&atts[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	bg, err := bc.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s_group_%d", s.Label(), group),
		Layout:  layout.Handle,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group %d for %q: %w", group, s.Label(), err)
	}

	if err := bc.entries.Put(key, bg); err != nil {
		bc.device.DestroyBindGroup(bg)
		return nil, fmt.Errorf("insert bind group for %q: %w", s.Label(), err)
	}
	Logger().Debug("gfx: bind group created",
		"shader", s.Label(), "group", group, "key", key, "cached", bc.entries.Len())
	return bg, nil
}

// bindGroupEntry converts one attachment to a backend bind group entry.
func (bc *bindGroupCache) bindGroupEntry(a *Attachment) (gputypes.BindGroupEntry, error) {
	entry := gputypes.BindGroupEntry{Binding: a.Binding}

	switch a.kind {
	case attachUniform, attachStorage:
		entry.Resource = gputypes.BufferBinding{
			Buffer: a.buffer.raw.NativeHandle(),
			Offset: 0,
			Size:   a.buffer.size,
		}

	case attachTexture, attachStorageTexture:
		view, err := a.texture.View(bc.device)
		if err != nil {
			return entry, err
		}
		entry.Resource = gputypes.TextureViewBinding{
			TextureView: view.NativeHandle(),
		}

	case attachSampler:
		entry.Resource = gputypes.SamplerBinding{
			Sampler: a.sampler.raw.NativeHandle(),
		}
	}

	return entry, nil
}
