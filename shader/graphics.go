// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/cache"
)

// Builder errors.
var (
	// ErrNoSource is returned by Build when neither source nor binary was set.
	ErrNoSource = errors.New("shader: no source set")

	// ErrSourceConflict is returned when combined source, split sources and
	// binary input are mixed on one builder.
	ErrSourceConflict = errors.New("shader: conflicting source inputs")

	// ErrVertexLayoutMismatch is returned when an explicit vertex layout
	// does not cover the locations the shader declares.
	ErrVertexLayoutMismatch = errors.New("shader: vertex layout does not match reflection")
)

// nextShaderID assigns identity to built shaders. Pipeline and bind-group
// cache keys hash this id, so two distinct builds of the same source still
// produce distinct pipelines.
var nextShaderID atomic.Uint64

// Shader is a built shader: backend module(s), reflection, and the derived
// bind group layouts. Shaders are immutable after Build and safe to share
// between passes.
type Shader struct {
	id    uint64
	label string
	kind  Kind

	reflection *Reflection

	// module holds the combined or compute module; fragmentModule is set
	// only for split vertex/fragment sources.
	module         hal.ShaderModule
	fragmentModule hal.ShaderModule

	groups    []GroupLayout
	primitive gputypes.PrimitiveState

	vertexLayout    gputypes.VertexBufferLayout
	hasVertexLayout bool
}

// ID returns the shader's unique identity.
func (s *Shader) ID() uint64 { return s.id }

// Label returns the debug label.
func (s *Shader) Label() string { return s.label }

// Kind returns which stages the shader provides.
func (s *Shader) Kind() Kind { return s.kind }

// Reflection returns the shader's reflection data. For split sources this
// is the merged reflection across both stages.
func (s *Shader) Reflection() *Reflection { return s.reflection }

// VertexModule returns the module containing the vertex (or compute) stage.
func (s *Shader) VertexModule() hal.ShaderModule { return s.module }

// Module returns the primary shader module: the combined or vertex
// module for graphics shaders, the compute module for compute shaders.
func (s *Shader) Module() hal.ShaderModule { return s.module }

// FragmentModule returns the module containing the fragment stage. For
// combined sources this is the same module as VertexModule.
func (s *Shader) FragmentModule() hal.ShaderModule {
	if s.fragmentModule != nil {
		return s.fragmentModule
	}
	return s.module
}

// GroupLayouts returns the derived bind group layouts, sorted by group.
func (s *Shader) GroupLayouts() []GroupLayout { return s.groups }

// GroupLayout returns the layout for one group number.
func (s *Shader) GroupLayout(group uint32) (GroupLayout, bool) {
	for _, g := range s.groups {
		if g.Group == group {
			return g, true
		}
	}
	return GroupLayout{}, false
}

// Primitive returns the primitive state configured at build time.
func (s *Shader) Primitive() gputypes.PrimitiveState { return s.primitive }

// VertexLayout returns the vertex buffer layout and whether one exists.
func (s *Shader) VertexLayout() (gputypes.VertexBufferLayout, bool) {
	return s.vertexLayout, s.hasVertexLayout
}

// Destroy releases the backend modules and layouts.
func (s *Shader) Destroy(device hal.Device) {
	for _, g := range s.groups {
		device.DestroyBindGroupLayout(g.Handle)
	}
	s.groups = nil
	if s.fragmentModule != nil {
		device.DestroyShaderModule(s.fragmentModule)
		s.fragmentModule = nil
	}
	if s.module != nil {
		device.DestroyShaderModule(s.module)
		s.module = nil
	}
}

// compiled pairs a reflection with the IR module it came from.
type compiled struct {
	refl   *Reflection
	module *ir.Module
}

// compileCache memoizes parse+lower+reflect per source text. Reflection is
// a pure function of the source, so one entry serves every shader built
// from the same WGSL.
var compileCache = cache.NewSharded[string, *compiled](64, cache.StringHasher)

// compileWGSL parses and lowers WGSL source and reflects the result.
func compileWGSL(source string) (*Reflection, *ir.Module, error) {
	if c, ok := compileCache.Get(source); ok {
		return c.refl, c.module, nil
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return nil, nil, fmt.Errorf("parse shader: %w", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, nil, fmt.Errorf("lower shader: %w", err)
	}
	refl, err := Reflect(module)
	if err != nil {
		return nil, nil, err
	}

	compileCache.Set(source, &compiled{refl: refl, module: module})
	return refl, module, nil
}

// spirvWords converts SPIR-V bytes to little-endian 32-bit words.
func spirvWords(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
	}
	return words
}

// GraphicsBuilder builds a render shader from combined WGSL, split
// vertex/fragment WGSL, or a binary container.
type GraphicsBuilder struct {
	label          string
	source         string
	vertexSource   string
	fragmentSource string
	binary         []byte

	primitive    gputypes.PrimitiveState
	vertexLayout *gputypes.VertexBufferLayout
}

// NewGraphics returns a graphics shader builder with triangle-list
// topology and no culling.
func NewGraphics() *GraphicsBuilder {
	return &GraphicsBuilder{
		primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
	}
}

// SetLabel sets the debug label.
func (b *GraphicsBuilder) SetLabel(label string) *GraphicsBuilder {
	b.label = label
	return b
}

// SetSource sets combined WGSL containing both vertex and fragment entry
// points.
func (b *GraphicsBuilder) SetSource(source string) *GraphicsBuilder {
	b.source = source
	return b
}

// SetVertexSource sets WGSL containing only the vertex entry point.
func (b *GraphicsBuilder) SetVertexSource(source string) *GraphicsBuilder {
	b.vertexSource = source
	return b
}

// SetFragmentSource sets WGSL containing only the fragment entry point.
func (b *GraphicsBuilder) SetFragmentSource(source string) *GraphicsBuilder {
	b.fragmentSource = source
	return b
}

// SetBinary sets a precompiled binary shader container as the input.
func (b *GraphicsBuilder) SetBinary(data []byte) *GraphicsBuilder {
	b.binary = data
	return b
}

// SetTopology overrides the primitive topology.
func (b *GraphicsBuilder) SetTopology(t gputypes.PrimitiveTopology) *GraphicsBuilder {
	b.primitive.Topology = t
	return b
}

// SetCullMode overrides the cull mode.
func (b *GraphicsBuilder) SetCullMode(m gputypes.CullMode) *GraphicsBuilder {
	b.primitive.CullMode = m
	return b
}

// SetVertexLayout overrides the vertex buffer layout inferred from
// reflection. The layout must provide every location the shader declares.
func (b *GraphicsBuilder) SetVertexLayout(layout gputypes.VertexBufferLayout) *GraphicsBuilder {
	b.vertexLayout = &layout
	return b
}

// Build compiles, reflects, and creates the backend objects.
func (b *GraphicsBuilder) Build(device hal.Device) (*Shader, error) {
	combined := b.source != ""
	split := b.vertexSource != "" || b.fragmentSource != ""
	bin := len(b.binary) > 0

	switch {
	case !combined && !split && !bin:
		return nil, ErrNoSource
	case combined && split, combined && bin, split && bin:
		return nil, ErrSourceConflict
	case split && (b.vertexSource == "" || b.fragmentSource == ""):
		return nil, fmt.Errorf("%w: split build needs both stages", ErrNoSource)
	}

	if split {
		return b.buildSplit(device)
	}

	var refl *Reflection
	var payload []byte
	if bin {
		var err error
		refl, payload, err = DecodeBinary(b.binary)
		if err != nil {
			return nil, err
		}
	} else {
		r, module, err := compileWGSL(b.source)
		if err != nil {
			return nil, err
		}
		payload, err = naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3})
		if err != nil {
			return nil, fmt.Errorf("generate SPIR-V: %w", err)
		}
		refl = r
	}

	if refl.Kind != KindVertex && refl.Kind != KindVertexFragment {
		return nil, fmt.Errorf("%w: %s shader in graphics build", ErrUnsupportedStage, refl.Kind)
	}

	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  b.label,
		Source: hal.ShaderSource{SPIRV: spirvWords(payload)},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module: %w", err)
	}

	return b.finish(device, refl, module, nil)
}

func (b *GraphicsBuilder) buildSplit(device hal.Device) (*Shader, error) {
	vertRefl, vertModule, err := compileWGSL(b.vertexSource)
	if err != nil {
		return nil, fmt.Errorf("vertex stage: %w", err)
	}
	if vertRefl.Kind != KindVertex {
		return nil, fmt.Errorf("%w: vertex source is %s", ErrUnsupportedStage, vertRefl.Kind)
	}
	fragRefl, fragModule, err := compileWGSL(b.fragmentSource)
	if err != nil {
		return nil, fmt.Errorf("fragment stage: %w", err)
	}
	if fragRefl.Kind != KindFragment {
		return nil, fmt.Errorf("%w: fragment source is %s", ErrUnsupportedStage, fragRefl.Kind)
	}

	vertSPIRV, err := naga.GenerateSPIRV(vertModule, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, fmt.Errorf("generate vertex SPIR-V: %w", err)
	}
	fragSPIRV, err := naga.GenerateSPIRV(fragModule, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, fmt.Errorf("generate fragment SPIR-V: %w", err)
	}

	merged, err := mergeReflections(vertRefl, fragRefl)
	if err != nil {
		return nil, err
	}

	vs, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  b.label + " vs",
		Source: hal.ShaderSource{SPIRV: spirvWords(vertSPIRV)},
	})
	if err != nil {
		return nil, fmt.Errorf("create vertex module: %w", err)
	}
	fs, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  b.label + " fs",
		Source: hal.ShaderSource{SPIRV: spirvWords(fragSPIRV)},
	})
	if err != nil {
		device.DestroyShaderModule(vs)
		return nil, fmt.Errorf("create fragment module: %w", err)
	}

	return b.finish(device, merged, vs, fs)
}

func (b *GraphicsBuilder) finish(device hal.Device, refl *Reflection, module, fragModule hal.ShaderModule) (*Shader, error) {
	destroyModules := func() {
		if fragModule != nil {
			device.DestroyShaderModule(fragModule)
		}
		device.DestroyShaderModule(module)
	}

	groups, err := DeriveGroupLayouts(device, b.label, refl)
	if err != nil {
		destroyModules()
		return nil, err
	}

	s := &Shader{
		id:             nextShaderID.Add(1),
		label:          b.label,
		kind:           refl.Kind,
		reflection:     refl,
		module:         module,
		fragmentModule: fragModule,
		groups:         groups,
		primitive:      b.primitive,
	}

	switch {
	case b.vertexLayout != nil:
		if err := checkVertexLayout(refl.VertexInput, b.vertexLayout); err != nil {
			s.Destroy(device)
			return nil, err
		}
		s.vertexLayout = *b.vertexLayout
		s.hasVertexLayout = true
	case refl.VertexInput != nil:
		s.vertexLayout = refl.VertexInput.BufferLayout()
		s.hasVertexLayout = true
	}

	return s, nil
}

// mergeReflections combines split vertex and fragment reflections into one
// VertexFragment reflection with the union of bindings.
func mergeReflections(vert, frag *Reflection) (*Reflection, error) {
	merged, err := mergeBindings(vert, frag)
	if err != nil {
		return nil, err
	}
	bindings := make([]BindingInfo, len(merged))
	for i, mb := range merged {
		bindings[i] = mb.info
	}
	return &Reflection{
		Kind:          KindVertexFragment,
		VertexEntry:   vert.VertexEntry,
		FragmentEntry: frag.FragmentEntry,
		Bindings:      bindings,
		VertexInput:   vert.VertexInput,
	}, nil
}

// checkVertexLayout verifies an explicit layout covers every location the
// reflection declares.
func checkVertexLayout(input *VertexInput, layout *gputypes.VertexBufferLayout) error {
	if input == nil {
		return nil
	}
	provided := make(map[uint32]bool, len(layout.Attributes))
	for _, a := range layout.Attributes {
		provided[a.ShaderLocation] = true
	}
	for _, a := range input.Attributes {
		if !provided[a.Location] {
			return fmt.Errorf("%w: location %d not provided", ErrVertexLayoutMismatch, a.Location)
		}
	}
	return nil
}
