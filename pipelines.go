// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/cache"
	"github.com/gogpu/gfx/shader"
)

// Key discriminators keep graphics pipelines, compute pipelines and bind
// groups from colliding even when the rest of their key material matches.
const (
	keyKindBindGroup uint32 = 0
	keyKindGraphics  uint32 = 1
	keyKindCompute   uint32 = 2
)

// BlendMode selects the blend state applied to a color target. Pipeline
// keys and batch coalescing both compare blend by mode value.
type BlendMode uint8

const (
	// BlendNone disables blending; fragments overwrite the target.
	BlendNone BlendMode = iota

	// BlendPremultiplied is standard premultiplied-alpha blending.
	BlendPremultiplied
)

// String returns the string representation of BlendMode.
func (m BlendMode) String() string {
	switch m {
	case BlendNone:
		return "None"
	case BlendPremultiplied:
		return "Premultiplied"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(m))
	}
}

// state returns the gputypes blend state for the mode, nil for BlendNone.
func (m BlendMode) state() *gputypes.BlendState {
	if m == BlendPremultiplied {
		s := gputypes.BlendStatePremultiplied()
		return &s
	}
	return nil
}

// colorTarget is one color attachment's contribution to pipeline identity.
type colorTarget struct {
	format gputypes.TextureFormat
	blend  BlendMode
}

// renderPipelineState is the full identity of a render pipeline: the
// shader (vertex layout and topology ride on it) plus the target
// configuration of the pass it will draw into.
type renderPipelineState struct {
	shader      *shader.Shader
	targets     []colorTarget
	depthFormat gputypes.TextureFormat
	sampleCount uint32
}

// key derives the cache key for this pipeline state.
func (st *renderPipelineState) key() uint64 {
	k := newKeyHasher()
	k.writeU32(keyKindGraphics)
	k.writeU64(st.shader.ID())
	if layout, ok := st.shader.VertexLayout(); ok {
		k.writeU64(layout.ArrayStride)
		for _, a := range layout.Attributes {
			k.writeU32(uint32(a.Format))
			k.writeU64(a.Offset)
			k.writeU32(a.ShaderLocation)
		}
	}
	for _, t := range st.targets {
		k.writeU32(uint32(t.format))
		k.writeU32(uint32(t.blend))
	}
	k.writeU32(uint32(st.depthFormat))
	k.writeU32(st.sampleCount)
	return k.sum()
}

// pipelineEntry is one cached pipeline with the layout it owns. Exactly
// one of render/compute is set.
type pipelineEntry struct {
	render  hal.RenderPipeline
	compute hal.ComputePipeline
	layout  hal.PipelineLayout
}

// pipelineCache caches render and compute pipelines keyed by identity
// hash. Entries age out through the frame cache; evicted entries destroy
// their backend objects.
type pipelineCache struct {
	device  hal.Device
	entries *cache.FrameCache[*pipelineEntry]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

func newPipelineCache(device hal.Device, cfg cache.FrameConfig) *pipelineCache {
	pc := &pipelineCache{
		device:  device,
		entries: cache.NewFrame[*pipelineEntry](cfg),
	}
	pc.entries.SetEvictFunc(func(e *pipelineEntry) {
		pc.destroyEntry(e)
	})
	return pc
}

func (pc *pipelineCache) destroyEntry(e *pipelineEntry) {
	if e.render != nil {
		pc.device.DestroyRenderPipeline(e.render)
	}
	if e.compute != nil {
		pc.device.DestroyComputePipeline(e.compute)
	}
	if e.layout != nil {
		pc.device.DestroyPipelineLayout(e.layout)
	}
}

// renderFor returns the pipeline for the given state, building it on a
// cache miss.
func (pc *pipelineCache) renderFor(st *renderPipelineState) (hal.RenderPipeline, error) {
	key := st.key()
	if e, ok := pc.entries.Get(key); ok {
		pc.hits.Add(1)
		return e.render, nil
	}
	pc.misses.Add(1)

	e, err := pc.buildRender(st)
	if err != nil {
		return nil, err
	}
	if err := pc.entries.Put(key, e); err != nil {
		pc.destroyEntry(e)
		return nil, fmt.Errorf("insert render pipeline for %q: %w", st.shader.Label(), err)
	}
	Logger().Debug("gfx: render pipeline created",
		"shader", st.shader.Label(), "key", key, "cached", pc.entries.Len())
	return e.render, nil
}

// computeFor returns the compute pipeline for the shader, building it on
// a cache miss.
func (pc *pipelineCache) computeFor(s *shader.Shader) (hal.ComputePipeline, error) {
	k := newKeyHasher()
	k.writeU32(keyKindCompute)
	k.writeU64(s.ID())
	key := k.sum()

	if e, ok := pc.entries.Get(key); ok {
		pc.hits.Add(1)
		return e.compute, nil
	}
	pc.misses.Add(1)

	e, err := pc.buildCompute(s)
	if err != nil {
		return nil, err
	}
	if err := pc.entries.Put(key, e); err != nil {
		pc.destroyEntry(e)
		return nil, fmt.Errorf("insert compute pipeline for %q: %w", s.Label(), err)
	}
	Logger().Debug("gfx: compute pipeline created",
		"shader", s.Label(), "key", key, "cached", pc.entries.Len())
	return e.compute, nil
}

// buildLayout creates the pipeline layout from the shader's derived
// group layouts.
func (pc *pipelineCache) buildLayout(s *shader.Shader) (hal.PipelineLayout, error) {
	groups := s.GroupLayouts()
	handles := make([]hal.BindGroupLayout, len(groups))
	for i, g := range groups {
		handles[i] = g.Handle
	}
	layout, err := pc.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            s.Label() + "_pipe_layout",
		BindGroupLayouts: handles,
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout for %q: %w", s.Label(), err)
	}
	return layout, nil
}

func (pc *pipelineCache) buildRender(st *renderPipelineState) (*pipelineEntry, error) {
	s := st.shader
	refl := s.Reflection()

	layout, err := pc.buildLayout(s)
	if err != nil {
		return nil, err
	}

	var buffers []gputypes.VertexBufferLayout
	if vl, ok := s.VertexLayout(); ok {
		buffers = []gputypes.VertexBufferLayout{vl}
	}

	targets := make([]gputypes.ColorTargetState, len(st.targets))
	for i, t := range st.targets {
		targets[i] = gputypes.ColorTargetState{
			Format:    t.format,
			Blend:     t.blend.state(),
			WriteMask: gputypes.ColorWriteMaskAll,
		}
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  s.Label() + "_pipeline",
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     s.VertexModule(),
			EntryPoint: refl.VertexEntry,
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     s.FragmentModule(),
			EntryPoint: refl.FragmentEntry,
			Targets:    targets,
		},
		Primitive: s.Primitive(),
		Multisample: gputypes.MultisampleState{
			Count: st.sampleCount,
			Mask:  0xFFFFFFFF,
		},
	}

	if st.depthFormat != gputypes.TextureFormatUndefined {
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            st.depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront:      keep,
			StencilBack:       keep,
			StencilReadMask:   0xFF,
			StencilWriteMask:  0xFF,
		}
	}

	pipeline, err := pc.device.CreateRenderPipeline(desc)
	if err != nil {
		pc.device.DestroyPipelineLayout(layout)
		return nil, fmt.Errorf("create render pipeline for %q: %w", s.Label(), err)
	}
	return &pipelineEntry{render: pipeline, layout: layout}, nil
}

func (pc *pipelineCache) buildCompute(s *shader.Shader) (*pipelineEntry, error) {
	refl := s.Reflection()
	if refl.Kind != shader.KindCompute {
		return nil, fmt.Errorf("gfx: %s shader %q used for compute dispatch", refl.Kind, s.Label())
	}

	layout, err := pc.buildLayout(s)
	if err != nil {
		return nil, err
	}

	pipeline, err := pc.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  s.Label() + "_pipeline",
		Layout: layout,
		Compute: hal.ComputeState{
			Module:     s.Module(),
			EntryPoint: refl.ComputeEntry,
		},
	})
	if err != nil {
		pc.device.DestroyPipelineLayout(layout)
		return nil, fmt.Errorf("create compute pipeline for %q: %w", s.Label(), err)
	}
	return &pipelineEntry{compute: pipeline, layout: layout}, nil
}
