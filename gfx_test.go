//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gfx/shader"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// newTestContext creates a context over a noop device.
func newTestContext(t *testing.T, opts *Options) (*Context, func()) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	ctx := NewContext(device, queue, opts)
	return ctx, func() {
		ctx.Close()
		cleanup()
	}
}

// mustPanic fails the test unless fn panics.
func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}

// flatWGSL has no vertex input and no bindings; draws need neither a
// vertex buffer nor attachments.
const flatWGSL = `
@vertex
fn vs_main() -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 1.0, 1.0);
}
`

// transformWGSL declares a 64-byte uniform, a texture and a sampler plus
// vertex input, covering every attachment validation path.
const transformWGSL = `
struct Uniforms {
    transform: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> uniforms: Uniforms;
@group(0) @binding(1) var tex: texture_2d<f32>;
@group(0) @binding(2) var samp: sampler;

struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) position: vec2<f32>, @location(1) uv: vec2<f32>) -> VertexOut {
    var output: VertexOut;
    output.position = uniforms.transform * vec4<f32>(position.x, position.y, 0.0, 1.0);
    output.uv = uv;
    return output;
}

@fragment
fn fs_main(input: VertexOut) -> @location(0) vec4<f32> {
    return textureSample(tex, samp, input.uv);
}
`

// doubleWGSL is a minimal compute kernel over a storage buffer.
const doubleWGSL = `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
    data[gid.x] = data[gid.x] * 2.0;
}
`

// buildGraphicsShader compiles src on the context's device.
func buildGraphicsShader(t *testing.T, ctx *Context, src string) *shader.Shader {
	t.Helper()
	s, err := shader.NewGraphics().SetLabel("test").SetSource(src).Build(ctx.device)
	if err != nil {
		t.Fatalf("build shader: %v", err)
	}
	t.Cleanup(func() { s.Destroy(ctx.device) })
	return s
}

// buildComputeShader compiles src on the context's device.
func buildComputeShader(t *testing.T, ctx *Context, src string) *shader.Shader {
	t.Helper()
	s, err := shader.NewCompute().SetLabel("test").SetSource(src).Build(ctx.device)
	if err != nil {
		t.Fatalf("build compute shader: %v", err)
	}
	t.Cleanup(func() { s.Destroy(ctx.device) })
	return s
}

// newRenderTarget creates a single-sample color target.
func newRenderTarget(t *testing.T, ctx *Context, w, h uint32) *Texture {
	t.Helper()
	tex, err := NewTexture().
		SetLabel("target").
		SetSize(w, h).
		SetUsage(gputypes.TextureUsageRenderAttachment).
		Build(ctx.device)
	if err != nil {
		t.Fatalf("create render target: %v", err)
	}
	t.Cleanup(func() { tex.Destroy(ctx.device) })
	return tex
}

// recordingEncoder wraps a hal.CommandEncoder and hands out pass encoders
// that record the indirect calls forwarded to the backend.
type recordingEncoder struct {
	hal.CommandEncoder
	render  *recordingRenderPass
	compute *recordingComputePass
}

func (e *recordingEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	e.render = &recordingRenderPass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc)}
	return e.render
}

func (e *recordingEncoder) BeginComputePass(desc *hal.ComputePassDescriptor) hal.ComputePassEncoder {
	e.compute = &recordingComputePass{ComputePassEncoder: e.CommandEncoder.BeginComputePass(desc)}
	return e.compute
}

// recordingRenderPass captures the offsets of indirect draws.
type recordingRenderPass struct {
	hal.RenderPassEncoder
	indirectDraws        []uint64
	indexedIndirectDraws []uint64
}

func (p *recordingRenderPass) DrawIndirect(buf hal.Buffer, offset uint64) {
	p.indirectDraws = append(p.indirectDraws, offset)
	p.RenderPassEncoder.DrawIndirect(buf, offset)
}

func (p *recordingRenderPass) DrawIndexedIndirect(buf hal.Buffer, offset uint64) {
	p.indexedIndirectDraws = append(p.indexedIndirectDraws, offset)
	p.RenderPassEncoder.DrawIndexedIndirect(buf, offset)
}

// recordingComputePass captures the offsets of indirect dispatches.
type recordingComputePass struct {
	hal.ComputePassEncoder
	indirectDispatches []uint64
}

func (p *recordingComputePass) DispatchIndirect(buf hal.Buffer, offset uint64) {
	p.indirectDispatches = append(p.indirectDispatches, offset)
	p.ComputePassEncoder.DispatchIndirect(buf, offset)
}
