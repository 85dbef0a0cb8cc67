// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/shader"
)

// Render pass builder errors.
var (
	// ErrNoAttachments is returned when a pass has neither color nor
	// depth targets.
	ErrNoAttachments = errors.New("gfx: render pass has no attachments")

	// ErrNotRenderTarget is returned when a color target lacks
	// RenderAttachment usage.
	ErrNotRenderTarget = errors.New("gfx: color target lacks RenderAttachment usage")

	// ErrAttachmentSizeMismatch is returned when attachments disagree on
	// dimensions.
	ErrAttachmentSizeMismatch = errors.New("gfx: attachment sizes differ")

	// ErrSampleCountMismatch is returned when attachments disagree on
	// sample count.
	ErrSampleCountMismatch = errors.New("gfx: attachment sample counts differ")

	// ErrResolveCountMismatch is returned when a multisampled pass does
	// not pair every color target with a resolve target.
	ErrResolveCountMismatch = errors.New("gfx: every multisampled color target needs a resolve target")

	// ErrResolveTargetInvalid is returned when a resolve target is
	// multisampled or disagrees with its color target's format or size.
	ErrResolveTargetInvalid = errors.New("gfx: invalid resolve target")

	// ErrNotDepthFormat is returned when the depth target's format has
	// no depth aspect.
	ErrNotDepthFormat = errors.New("gfx: depth target format has no depth aspect")
)

// maxPushConstantBytes caps the push constant range, matching the
// guaranteed minimum on the narrowest backends.
const maxPushConstantBytes = 128

// passState tracks a pass through its lifecycle.
type passState int

const (
	passConfiguring passState = iota
	passRecording
	passEnded
)

// String returns the string representation of passState.
func (s passState) String() string {
	switch s {
	case passConfiguring:
		return "Configuring"
	case passRecording:
		return "Recording"
	case passEnded:
		return "Ended"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// viewportRect is a captured viewport.
type viewportRect struct {
	x, y, w, h         float32
	minDepth, maxDepth float32
}

func (v *viewportRect) degenerate() bool {
	return v.w <= 0 || v.h <= 0
}

// scissorRect is a captured scissor rectangle.
type scissorRect struct {
	x, y, w, h uint32
}

func (s *scissorRect) degenerate() bool {
	return s.w == 0 || s.h == 0
}

// renderColorTarget is one color attachment under construction.
type renderColorTarget struct {
	texture *Texture
	resolve *Texture
	loadOp  gputypes.LoadOp
	clear   Color
}

// RenderPassBuilder validates attachments and opens a RenderPass on a
// command buffer.
type RenderPassBuilder struct {
	label      string
	colors     []renderColorTarget
	depth      *Texture
	depthClear float32
}

// NewRenderPass returns a render pass builder.
func NewRenderPass() *RenderPassBuilder {
	return &RenderPassBuilder{depthClear: 1}
}

// SetLabel sets the debug label.
func (b *RenderPassBuilder) SetLabel(label string) *RenderPassBuilder {
	b.label = label
	return b
}

// AddColorTarget adds a color attachment cleared to the given color.
func (b *RenderPassBuilder) AddColorTarget(tex *Texture, clear Color) *RenderPassBuilder {
	b.colors = append(b.colors, renderColorTarget{
		texture: tex,
		loadOp:  gputypes.LoadOpClear,
		clear:   clear,
	})
	return b
}

// AddColorTargetLoad adds a color attachment that preserves its previous
// contents.
func (b *RenderPassBuilder) AddColorTargetLoad(tex *Texture) *RenderPassBuilder {
	b.colors = append(b.colors, renderColorTarget{
		texture: tex,
		loadOp:  gputypes.LoadOpLoad,
	})
	return b
}

// SetResolveTarget pairs the index-th color target with a single-sample
// resolve target. Required for every color target when the pass is
// multisampled.
func (b *RenderPassBuilder) SetResolveTarget(index int, tex *Texture) *RenderPassBuilder {
	if index >= 0 && index < len(b.colors) {
		b.colors[index].resolve = tex
	}
	return b
}

// SetDepthTarget sets the depth attachment, cleared to clearDepth.
func (b *RenderPassBuilder) SetDepthTarget(tex *Texture, clearDepth float32) *RenderPassBuilder {
	b.depth = tex
	b.depthClear = clearDepth
	return b
}

// Begin validates the attachment set and opens the pass on cmd. The
// command buffer accepts no other work until the pass ends.
func (b *RenderPassBuilder) Begin(cmd *CommandBuffer) (*RenderPass, error) {
	if err := cmd.checkRecording(); err != nil {
		return nil, fmt.Errorf("begin render pass %q: %w", b.label, err)
	}
	if len(b.colors) == 0 && b.depth == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoAttachments, b.label)
	}

	var width, height, samples uint32
	first := true
	checkDims := func(tex *Texture) error {
		if first {
			width, height, samples = tex.width, tex.height, tex.samples
			first = false
			return nil
		}
		if tex.width != width || tex.height != height {
			return fmt.Errorf("%w: %q is %dx%d, pass is %dx%d",
				ErrAttachmentSizeMismatch, tex.label, tex.width, tex.height, width, height)
		}
		if tex.samples != samples {
			return fmt.Errorf("%w: %q has %d samples, pass has %d",
				ErrSampleCountMismatch, tex.label, tex.samples, samples)
		}
		return nil
	}

	for _, ct := range b.colors {
		if !ct.texture.usage.Contains(gputypes.TextureUsageRenderAttachment) {
			return nil, fmt.Errorf("%w: %q", ErrNotRenderTarget, ct.texture.label)
		}
		if err := checkDims(ct.texture); err != nil {
			return nil, err
		}
	}
	if b.depth != nil {
		if !b.depth.IsDepth() {
			return nil, fmt.Errorf("%w: %q is %v", ErrNotDepthFormat, b.depth.label, b.depth.format)
		}
		if err := checkDims(b.depth); err != nil {
			return nil, err
		}
	}

	if samples > 1 {
		for _, ct := range b.colors {
			if ct.resolve == nil {
				return nil, fmt.Errorf("%w: %q has none", ErrResolveCountMismatch, ct.texture.label)
			}
			r := ct.resolve
			if r.samples != 1 || r.format != ct.texture.format || r.width != width || r.height != height {
				return nil, fmt.Errorf("%w: %q resolving %q", ErrResolveTargetInvalid, r.label, ct.texture.label)
			}
		}
	}

	device := cmd.ctx.device
	pass := &RenderPass{
		cmd:     cmd,
		label:   b.label,
		width:   width,
		height:  height,
		samples: samples,
		state:   passConfiguring,
	}

	for _, ct := range b.colors {
		view, err := ct.texture.View(device)
		if err != nil {
			return nil, err
		}
		att := hal.RenderPassColorAttachment{
			View:    view,
			LoadOp:  ct.loadOp,
			StoreOp: gputypes.StoreOpStore,
			ClearValue: gputypes.Color{
				R: float64(ct.clear.R), G: float64(ct.clear.G),
				B: float64(ct.clear.B), A: float64(ct.clear.A),
			},
		}
		if ct.resolve != nil {
			resolveView, err := ct.resolve.View(device)
			if err != nil {
				return nil, err
			}
			att.ResolveTarget = resolveView
		}
		pass.halColors = append(pass.halColors, att)
		pass.targets = append(pass.targets, colorTarget{format: ct.texture.format})
		pass.targetSRGB = pass.targetSRGB || isSRGBFormat(ct.texture.format)
	}

	if b.depth != nil {
		view, err := b.depth.View(device)
		if err != nil {
			return nil, err
		}
		pass.halDepth = &hal.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     gputypes.LoadOpClear,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: b.depthClear,
			StencilLoadOp:   gputypes.LoadOpClear,
			StencilStoreOp:  gputypes.StoreOpDiscard,
		}
		pass.depthFormat = b.depth.format
	} else {
		pass.depthFormat = gputypes.TextureFormatUndefined
	}

	cmd.passActive = true
	pass.state = passRecording
	return pass, nil
}

// drawKind discriminates queued draw calls.
type drawKind uint8

const (
	drawArrays drawKind = iota
	drawIndexedCall
	drawIndirectCall
	drawIndexedIndirectCall
)

// drawCall is one queued draw with its full state snapshot.
type drawCall struct {
	kind     drawKind
	pipeline hal.RenderPipeline
	groups   []passBindGroup

	vertexBuffer hal.Buffer
	indexBuffer  hal.Buffer
	indexFormat  gputypes.IndexFormat

	viewport *viewportRect
	scissor  *scissorRect
	push     []byte

	count         uint32
	instanceCount uint32
	first         uint32
	baseVertex    int32
	firstInstance uint32

	indirect       hal.Buffer
	indirectOffset uint64
}

// RenderPass records draws against a validated attachment set. State
// setters and draw calls are queued and replayed into the HAL encoder
// when End is called.
//
// Recording mistakes are caller bugs and panic: drawing without the
// shader's required vertex buffer, indexed draws without an index
// buffer, or recording after End. Degenerate viewports and scissors
// skip the draw silently.
type RenderPass struct {
	cmd     *CommandBuffer
	label   string
	width   uint32
	height  uint32
	samples uint32

	targets     []colorTarget
	targetSRGB  bool
	halColors   []hal.RenderPassColorAttachment
	halDepth    *hal.RenderPassDepthStencilAttachment
	depthFormat gputypes.TextureFormat

	state passState

	shader         *shader.Shader
	blend          BlendMode
	attachments    []Attachment
	vertexBuffer   *Buffer
	indexBuffer    *Buffer
	indexFormat    gputypes.IndexFormat
	hasIndexFormat bool
	pushConstants  []byte
	viewport       *viewportRect
	scissor        *scissorRect

	queue []drawCall
}

// State returns the pass state.
func (p *RenderPass) State() passState { return p.state }

// Label returns the debug label.
func (p *RenderPass) Label() string { return p.label }

// Size returns the attachment dimensions in pixels.
func (p *RenderPass) Size() (uint32, uint32) { return p.width, p.height }

// checkRecording panics if the pass is not recording.
func (p *RenderPass) checkRecording() {
	if p.state != passRecording {
		panic(fmt.Sprintf("gfx: recording into render pass %q in state %v", p.label, p.state))
	}
}

// SetShader selects the shader for subsequent draws.
func (p *RenderPass) SetShader(s *shader.Shader) {
	p.checkRecording()
	if s == nil {
		panic(fmt.Sprintf("gfx: nil shader on render pass %q", p.label))
	}
	p.shader = s
}

// SetBlend selects the blend mode for subsequent draws.
func (p *RenderPass) SetBlend(mode BlendMode) {
	p.checkRecording()
	p.blend = mode
}

// SetAttachments validates the resources against the current shader's
// reflection and binds them for subsequent draws. A type or size
// mismatch between an attachment and the shader's declared binding is
// reported here, before any draw is queued.
func (p *RenderPass) SetAttachments(atts ...Attachment) error {
	p.checkRecording()
	if p.shader == nil {
		panic(fmt.Sprintf("gfx: attachments set before shader on render pass %q", p.label))
	}
	if err := validateAttachments(p.shader.Reflection(), atts); err != nil {
		return fmt.Errorf("attachments for %q: %w", p.shader.Label(), err)
	}
	p.attachments = append(p.attachments[:0], atts...)
	return nil
}

// SetVertexBuffer binds the vertex buffer for subsequent draws.
func (p *RenderPass) SetVertexBuffer(buf *Buffer) {
	p.checkRecording()
	if buf == nil {
		panic(fmt.Sprintf("gfx: nil vertex buffer on render pass %q", p.label))
	}
	p.vertexBuffer = buf
}

// SetIndexBuffer binds the index buffer and its element format for
// subsequent indexed draws.
func (p *RenderPass) SetIndexBuffer(buf *Buffer, format gputypes.IndexFormat) {
	p.checkRecording()
	if buf == nil {
		panic(fmt.Sprintf("gfx: nil index buffer on render pass %q", p.label))
	}
	p.indexBuffer = buf
	p.indexFormat = format
	p.hasIndexFormat = true
}

// SetPushConstants captures the push constant bytes for subsequent
// draws, padded to 4-byte alignment. Exceeding the 128-byte range is a
// caller bug and panics.
func (p *RenderPass) SetPushConstants(data []byte) {
	p.checkRecording()
	if len(data) > maxPushConstantBytes {
		panic(fmt.Sprintf("gfx: %d push constant bytes on %q exceeds the %d-byte range",
			len(data), p.label, maxPushConstantBytes))
	}
	p.pushConstants = padPushConstants(data)
}

// padPushConstants copies data, zero-padded to 4-byte alignment.
func padPushConstants(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	padded := (len(data) + 3) &^ 3
	out := make([]byte, padded)
	copy(out, data)
	return out
}

// SetViewport sets the viewport for subsequent draws. A degenerate
// viewport is legal; draws under it are skipped.
func (p *RenderPass) SetViewport(x, y, w, h, minDepth, maxDepth float32) {
	p.checkRecording()
	p.viewport = &viewportRect{x: x, y: y, w: w, h: h, minDepth: minDepth, maxDepth: maxDepth}
}

// SetScissor sets the scissor rectangle for subsequent draws. A
// degenerate scissor is legal; draws under it are skipped.
func (p *RenderPass) SetScissor(x, y, w, h uint32) {
	p.checkRecording()
	p.scissor = &scissorRect{x: x, y: y, w: w, h: h}
}

// skipDegenerate reports whether the current clip state reduces the
// draw to nothing.
func (p *RenderPass) skipDegenerate() bool {
	if p.viewport != nil && p.viewport.degenerate() {
		Logger().Debug("gfx: draw skipped, degenerate viewport", "pass", p.label)
		return true
	}
	if p.scissor != nil && p.scissor.degenerate() {
		Logger().Debug("gfx: draw skipped, degenerate scissor", "pass", p.label)
		return true
	}
	return false
}

// snapshot resolves the pipeline and bind groups for the current state
// and captures everything a replayed draw needs. Pipeline or bind group
// resolution failing at draw time (including cache saturation) is fatal.
func (p *RenderPass) snapshot(kind drawKind) drawCall {
	if p.shader == nil {
		panic(fmt.Sprintf("gfx: draw without shader on render pass %q", p.label))
	}

	targets := make([]colorTarget, len(p.targets))
	for i, t := range p.targets {
		targets[i] = colorTarget{format: t.format, blend: p.blend}
	}
	pipeline, err := p.cmd.ctx.pipelines.renderFor(&renderPipelineState{
		shader:      p.shader,
		targets:     targets,
		depthFormat: p.depthFormat,
		sampleCount: p.samples,
	})
	if err != nil {
		panic(fmt.Sprintf("gfx: pipeline for %q: %v", p.shader.Label(), err))
	}

	var groups []passBindGroup
	if len(p.attachments) > 0 {
		groups, err = p.cmd.ctx.bindGroups.groupsFor(p.shader, p.attachments)
		if err != nil {
			panic(fmt.Sprintf("gfx: bind groups for %q: %v", p.shader.Label(), err))
		}
	}

	call := drawCall{
		kind:     kind,
		pipeline: pipeline,
		groups:   groups,
		viewport: p.viewport,
		scissor:  p.scissor,
	}
	if len(p.pushConstants) > 0 {
		call.push = append([]byte(nil), p.pushConstants...)
	}
	if p.vertexBuffer != nil {
		call.vertexBuffer = p.vertexBuffer.raw
	}
	if p.indexBuffer != nil {
		call.indexBuffer = p.indexBuffer.raw
		call.indexFormat = p.indexFormat
	}
	return call
}

// requireVertexBuffer panics when the shader consumes vertex input but
// no vertex buffer is bound.
func (p *RenderPass) requireVertexBuffer() {
	if p.shader == nil {
		return
	}
	if _, ok := p.shader.VertexLayout(); ok && p.vertexBuffer == nil {
		panic(fmt.Sprintf("gfx: draw without vertex buffer on render pass %q, shader %q declares vertex input",
			p.label, p.shader.Label()))
	}
}

// Draw queues a non-indexed draw.
func (p *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.checkRecording()
	p.requireVertexBuffer()
	if p.skipDegenerate() {
		return
	}
	call := p.snapshot(drawArrays)
	call.count = vertexCount
	call.instanceCount = instanceCount
	call.first = firstVertex
	call.firstInstance = firstInstance
	p.queue = append(p.queue, call)
}

// DrawIndexed queues an indexed draw. An index buffer with a declared
// format must be bound.
func (p *RenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.checkRecording()
	p.requireVertexBuffer()
	if p.indexBuffer == nil || !p.hasIndexFormat {
		panic(fmt.Sprintf("gfx: indexed draw without index buffer on render pass %q", p.label))
	}
	if p.skipDegenerate() {
		return
	}
	call := p.snapshot(drawIndexedCall)
	call.count = indexCount
	call.instanceCount = instanceCount
	call.first = firstIndex
	call.baseVertex = baseVertex
	call.firstInstance = firstInstance
	p.queue = append(p.queue, call)
}

// checkIndirect validates an indirect argument buffer.
func (p *RenderPass) checkIndirect(buf *Buffer, offset uint64) {
	if buf == nil {
		panic(fmt.Sprintf("gfx: nil indirect buffer on render pass %q", p.label))
	}
	if !buf.usage.Contains(gputypes.BufferUsageIndirect) {
		panic(fmt.Sprintf("gfx: buffer %q lacks Indirect usage", buf.label))
	}
	if offset%copyBufferAlignment != 0 {
		panic(fmt.Sprintf("gfx: indirect offset %d on %q not 4-byte aligned", offset, p.label))
	}
}

// DrawIndirect queues a draw whose arguments live in buf at offset.
func (p *RenderPass) DrawIndirect(buf *Buffer, offset uint64) {
	p.checkRecording()
	p.requireVertexBuffer()
	p.checkIndirect(buf, offset)
	if p.skipDegenerate() {
		return
	}
	call := p.snapshot(drawIndirectCall)
	call.indirect = buf.raw
	call.indirectOffset = offset
	p.queue = append(p.queue, call)
}

// DrawIndexedIndirect queues an indexed draw whose arguments live in buf
// at offset.
func (p *RenderPass) DrawIndexedIndirect(buf *Buffer, offset uint64) {
	p.checkRecording()
	p.requireVertexBuffer()
	if p.indexBuffer == nil || !p.hasIndexFormat {
		panic(fmt.Sprintf("gfx: indexed draw without index buffer on render pass %q", p.label))
	}
	p.checkIndirect(buf, offset)
	if p.skipDegenerate() {
		return
	}
	call := p.snapshot(drawIndexedIndirectCall)
	call.indirect = buf.raw
	call.indirectOffset = offset
	p.queue = append(p.queue, call)
}

// End replays the queued draws into the HAL encoder and closes the
// pass. End is idempotent; an empty queue still opens and closes the
// pass so attachment clears take effect.
func (p *RenderPass) End() error {
	if p.state == passEnded {
		return nil
	}
	p.state = passEnded
	p.cmd.passActive = false

	rp := p.cmd.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:                  p.label,
		ColorAttachments:       p.halColors,
		DepthStencilAttachment: p.halDepth,
	})

	for i := range p.queue {
		call := &p.queue[i]
		rp.SetPipeline(call.pipeline)
		if call.viewport != nil {
			v := call.viewport
			rp.SetViewport(v.x, v.y, v.w, v.h, v.minDepth, v.maxDepth)
		}
		if call.scissor != nil {
			s := call.scissor
			rp.SetScissorRect(s.x, s.y, s.w, s.h)
		}
		for _, g := range call.groups {
			rp.SetBindGroup(g.index, g.handle, nil)
		}
		if call.vertexBuffer != nil {
			rp.SetVertexBuffer(0, call.vertexBuffer, 0)
		}
		if call.indexBuffer != nil {
			rp.SetIndexBuffer(call.indexBuffer, call.indexFormat, 0)
		}
		if len(call.push) > 0 {
			// The HAL has no push constant upload; the captured bytes
			// are validated and carried but not delivered.
			Logger().Debug("gfx: push constants not uploaded, backend lacks support",
				"pass", p.label, "bytes", len(call.push))
		}

		switch call.kind {
		case drawArrays:
			rp.Draw(call.count, call.instanceCount, call.first, call.firstInstance)
		case drawIndexedCall:
			rp.DrawIndexed(call.count, call.instanceCount, call.first, call.baseVertex, call.firstInstance)
		case drawIndirectCall:
			rp.DrawIndirect(call.indirect, call.indirectOffset)
		case drawIndexedIndirectCall:
			rp.DrawIndexedIndirect(call.indirect, call.indirectOffset)
		}
	}

	rp.End()
	Logger().Debug("gfx: render pass replayed", "pass", p.label, "draws", len(p.queue))
	return nil
}
