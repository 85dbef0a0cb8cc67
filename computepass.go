// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/shader"
)

// dispatchCall is one queued dispatch with its state snapshot.
type dispatchCall struct {
	pipeline hal.ComputePipeline
	groups   []passBindGroup
	push     []byte

	x, y, z uint32

	isIndirect     bool
	indirect       hal.Buffer
	indirectOffset uint64
}

// ComputePass records dispatches. Like RenderPass it queues work and
// replays it into the HAL encoder at End; the same two-tier contract
// applies, with recording mistakes panicking and zero-sized dispatches
// skipped silently.
type ComputePass struct {
	cmd   *CommandBuffer
	label string
	state passState

	shader        *shader.Shader
	attachments   []Attachment
	pushConstants []byte

	queue []dispatchCall
}

// BeginComputePass opens a compute pass on the command buffer. The
// command buffer accepts no other work until the pass ends.
func (cb *CommandBuffer) BeginComputePass(label string) (*ComputePass, error) {
	if err := cb.checkRecording(); err != nil {
		return nil, fmt.Errorf("begin compute pass %q: %w", label, err)
	}
	cb.passActive = true
	return &ComputePass{cmd: cb, label: label, state: passRecording}, nil
}

// State returns the pass state.
func (p *ComputePass) State() passState { return p.state }

// Label returns the debug label.
func (p *ComputePass) Label() string { return p.label }

func (p *ComputePass) checkRecording() {
	if p.state != passRecording {
		panic(fmt.Sprintf("gfx: recording into compute pass %q in state %v", p.label, p.state))
	}
}

// SetShader selects the compute shader for subsequent dispatches.
// Passing a graphics shader is a caller bug and panics.
func (p *ComputePass) SetShader(s *shader.Shader) {
	p.checkRecording()
	if s == nil {
		panic(fmt.Sprintf("gfx: nil shader on compute pass %q", p.label))
	}
	if s.Kind() != shader.KindCompute {
		panic(fmt.Sprintf("gfx: %v shader %q on compute pass %q", s.Kind(), s.Label(), p.label))
	}
	p.shader = s
}

// SetAttachments validates the resources against the shader's reflection
// and binds them for subsequent dispatches.
func (p *ComputePass) SetAttachments(atts ...Attachment) error {
	p.checkRecording()
	if p.shader == nil {
		panic(fmt.Sprintf("gfx: attachments set before shader on compute pass %q", p.label))
	}
	if err := validateAttachments(p.shader.Reflection(), atts); err != nil {
		return fmt.Errorf("attachments for %q: %w", p.shader.Label(), err)
	}
	p.attachments = append(p.attachments[:0], atts...)
	return nil
}

// SetPushConstants captures the push constant bytes for subsequent
// dispatches, padded to 4-byte alignment.
func (p *ComputePass) SetPushConstants(data []byte) {
	p.checkRecording()
	if len(data) > maxPushConstantBytes {
		panic(fmt.Sprintf("gfx: %d push constant bytes on %q exceeds the %d-byte range",
			len(data), p.label, maxPushConstantBytes))
	}
	p.pushConstants = padPushConstants(data)
}

// snapshot resolves the pipeline and bind groups for the current state.
func (p *ComputePass) snapshot() dispatchCall {
	if p.shader == nil {
		panic(fmt.Sprintf("gfx: dispatch without shader on compute pass %q", p.label))
	}
	pipeline, err := p.cmd.ctx.pipelines.computeFor(p.shader)
	if err != nil {
		panic(fmt.Sprintf("gfx: compute pipeline for %q: %v", p.shader.Label(), err))
	}
	var groups []passBindGroup
	if len(p.attachments) > 0 {
		groups, err = p.cmd.ctx.bindGroups.groupsFor(p.shader, p.attachments)
		if err != nil {
			panic(fmt.Sprintf("gfx: bind groups for %q: %v", p.shader.Label(), err))
		}
	}
	call := dispatchCall{pipeline: pipeline, groups: groups}
	if len(p.pushConstants) > 0 {
		call.push = append([]byte(nil), p.pushConstants...)
	}
	return call
}

// Dispatch queues a dispatch of x*y*z workgroups. A zero count in any
// dimension skips the dispatch.
func (p *ComputePass) Dispatch(x, y, z uint32) {
	p.checkRecording()
	if x == 0 || y == 0 || z == 0 {
		Logger().Debug("gfx: dispatch skipped, zero workgroup count", "pass", p.label)
		return
	}
	call := p.snapshot()
	call.x, call.y, call.z = x, y, z
	p.queue = append(p.queue, call)
}

// DispatchIndirect queues a dispatch whose workgroup counts live in buf
// at offset.
func (p *ComputePass) DispatchIndirect(buf *Buffer, offset uint64) {
	p.checkRecording()
	if buf == nil {
		panic(fmt.Sprintf("gfx: nil indirect buffer on compute pass %q", p.label))
	}
	if !buf.usage.Contains(gputypes.BufferUsageIndirect) {
		panic(fmt.Sprintf("gfx: buffer %q lacks Indirect usage", buf.label))
	}
	if offset%copyBufferAlignment != 0 {
		panic(fmt.Sprintf("gfx: indirect offset %d on %q not 4-byte aligned", offset, p.label))
	}
	call := p.snapshot()
	call.isIndirect = true
	call.indirect = buf.raw
	call.indirectOffset = offset
	p.queue = append(p.queue, call)
}

// End replays the queued dispatches and closes the pass. Idempotent.
func (p *ComputePass) End() error {
	if p.state == passEnded {
		return nil
	}
	p.state = passEnded
	p.cmd.passActive = false

	cp := p.cmd.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: p.label})
	for i := range p.queue {
		call := &p.queue[i]
		cp.SetPipeline(call.pipeline)
		for _, g := range call.groups {
			cp.SetBindGroup(g.index, g.handle, nil)
		}
		if len(call.push) > 0 {
			Logger().Debug("gfx: push constants not uploaded, backend lacks support",
				"pass", p.label, "bytes", len(call.push))
		}
		if call.isIndirect {
			cp.DispatchIndirect(call.indirect, call.indirectOffset)
			continue
		}
		cp.Dispatch(call.x, call.y, call.z)
	}

	cp.End()
	Logger().Debug("gfx: compute pass replayed", "pass", p.label, "dispatches", len(p.queue))
	return nil
}
