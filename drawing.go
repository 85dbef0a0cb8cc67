// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx/shader"
)

//go:embed shaders/drawing.wgsl
var drawingWGSL string

// drawVertexStride is the byte size of one drawVertex.
const drawVertexStride = 32

// drawVertex matches the drawing shader's vertex input: position, uv,
// color. Positions are pixel-space until End applies the clip transform.
type drawVertex struct {
	pos   [2]float32
	uv    [2]float32
	color [4]float32
}

// drawBatch is a run of contiguous indices sharing draw state. One batch
// becomes one indexed draw.
type drawBatch struct {
	texture *Texture
	sampler *Sampler
	shader  *shader.Shader
	blend   BlendMode

	scissor     scissorRect
	hasScissor  bool
	viewport    viewportRect
	hasViewport bool

	firstIndex uint32
	indexCount uint32
}

// stateMatches reports whether the batch can absorb geometry recorded
// under the drawing's current state. Texture, sampler and shader compare
// by identity; blend, scissor and viewport by value.
func (b *drawBatch) stateMatches(d *Drawing) bool {
	return b.texture == d.texture &&
		b.sampler == d.sampler &&
		b.shader == d.shader &&
		b.blend == d.blend &&
		b.hasScissor == d.hasScissor &&
		(!d.hasScissor || b.scissor == d.scissor) &&
		b.hasViewport == d.hasViewport &&
		(!d.hasViewport || b.viewport == d.viewport)
}

// Drawing is an immediate-mode 2D batcher over an open render pass.
// Shapes accumulate into shared vertex/index scratch; consecutive shapes
// drawn under the same state coalesce into a single indexed draw. End
// uploads the geometry and queues one draw per batch.
//
// Coordinates are pixels with the origin at the top left. Colors are
// linear; End converts them for non-sRGB targets.
type Drawing struct {
	pass   *RenderPass
	width  float32
	height float32

	vertices []drawVertex
	indices  []uint32
	batches  []drawBatch

	texture *Texture
	sampler *Sampler
	shader  *shader.Shader
	blend   BlendMode

	scissor     scissorRect
	hasScissor  bool
	viewport    viewportRect
	hasViewport bool

	ended bool
}

// NewDrawing starts a drawing session on an open render pass.
func NewDrawing(pass *RenderPass) *Drawing {
	w, h := pass.Size()
	return &Drawing{
		pass:   pass,
		width:  float32(w),
		height: float32(h),
		blend:  BlendPremultiplied,
	}
}

// SetTexture selects the texture and sampler for subsequent shapes.
// Nil selects the context's 1x1 white texture and default sampler,
// making untextured shapes flat color.
func (d *Drawing) SetTexture(tex *Texture, samp *Sampler) {
	d.texture = tex
	d.sampler = samp
}

// SetShader selects the shader for subsequent shapes. Nil selects the
// context's textured-quad shader.
func (d *Drawing) SetShader(s *shader.Shader) {
	d.shader = s
}

// SetBlend selects the blend mode for subsequent shapes.
func (d *Drawing) SetBlend(mode BlendMode) {
	d.blend = mode
}

// SetScissor clips subsequent shapes to the rectangle.
func (d *Drawing) SetScissor(x, y, w, h uint32) {
	d.scissor = scissorRect{x: x, y: y, w: w, h: h}
	d.hasScissor = true
}

// ClearScissor removes the scissor clip.
func (d *Drawing) ClearScissor() {
	d.hasScissor = false
}

// SetViewport overrides the viewport for subsequent shapes.
func (d *Drawing) SetViewport(x, y, w, h float32) {
	d.viewport = viewportRect{x: x, y: y, w: w, h: h, minDepth: 0, maxDepth: 1}
	d.hasViewport = true
}

// ClearViewport restores the full-target viewport.
func (d *Drawing) ClearViewport() {
	d.hasViewport = false
}

// appendShape appends the shape's vertices with UVs normalized to its
// own bounding box, then its indices rebased onto the shared scratch,
// and coalesces it into the batch queue.
func (d *Drawing) appendShape(pts [][2]float32, col Color, idx []uint32) {
	base := uint32(len(d.vertices))

	minX, minY := pts[0][0], pts[0][1]
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = min(minX, p[0])
		minY = min(minY, p[1])
		maxX = max(maxX, p[0])
		maxY = max(maxY, p[1])
	}
	uvW := maxX - minX
	if uvW == 0 {
		uvW = 1
	}
	uvH := maxY - minY
	if uvH == 0 {
		uvH = 1
	}

	for _, p := range pts {
		d.vertices = append(d.vertices, drawVertex{
			pos:   p,
			uv:    [2]float32{(p[0] - minX) / uvW, (p[1] - minY) / uvH},
			color: [4]float32{col.R, col.G, col.B, col.A},
		})
	}
	for _, i := range idx {
		d.indices = append(d.indices, base+i)
	}
	d.pushQueue(uint32(len(idx)))
}

// pushQueue merges the trailing indexCount indices into the last batch
// when the draw state matches, otherwise starts a new batch.
func (d *Drawing) pushQueue(indexCount uint32) {
	if indexCount == 0 {
		return
	}
	first := uint32(len(d.indices)) - indexCount

	if n := len(d.batches); n > 0 {
		last := &d.batches[n-1]
		if last.stateMatches(d) && last.firstIndex+last.indexCount == first {
			last.indexCount += indexCount
			return
		}
	}

	d.batches = append(d.batches, drawBatch{
		texture:     d.texture,
		sampler:     d.sampler,
		shader:      d.shader,
		blend:       d.blend,
		scissor:     d.scissor,
		hasScissor:  d.hasScissor,
		viewport:    d.viewport,
		hasViewport: d.hasViewport,
		firstIndex:  first,
		indexCount:  indexCount,
	})
}

// End flushes the session into the render pass: the pixel-to-clip
// transform and color-space conversion run on the CPU, geometry is
// uploaded into the context's shared grow-only buffers, and each batch
// becomes one indexed draw. An empty session is a no-op. The pass stays
// open.
func (d *Drawing) End() error {
	if d.ended {
		return nil
	}
	d.ended = true
	if len(d.batches) == 0 {
		return nil
	}

	ctx := d.pass.cmd.ctx
	defTex, defSamp, defShader, err := ctx.drawDefaults()
	if err != nil {
		return fmt.Errorf("drawing defaults: %w", err)
	}

	// Pixel space to clip space; colors to the target's transfer
	// function. sRGB targets encode in hardware, plain formats get the
	// encoded values directly.
	encode := !d.pass.targetSRGB
	for i := range d.vertices {
		v := &d.vertices[i]
		v.pos[0] = v.pos[0]/d.width*2 - 1
		v.pos[1] = 1 - v.pos[1]/d.height*2
		if encode {
			v.color[0] = linearToSRGB(v.color[0])
			v.color[1] = linearToSRGB(v.color[1])
			v.color[2] = linearToSRGB(v.color[2])
		}
	}

	vertexBytes := make([]byte, len(d.vertices)*drawVertexStride)
	for i, v := range d.vertices {
		off := i * drawVertexStride
		binary.LittleEndian.PutUint32(vertexBytes[off:], math.Float32bits(v.pos[0]))
		binary.LittleEndian.PutUint32(vertexBytes[off+4:], math.Float32bits(v.pos[1]))
		binary.LittleEndian.PutUint32(vertexBytes[off+8:], math.Float32bits(v.uv[0]))
		binary.LittleEndian.PutUint32(vertexBytes[off+12:], math.Float32bits(v.uv[1]))
		binary.LittleEndian.PutUint32(vertexBytes[off+16:], math.Float32bits(v.color[0]))
		binary.LittleEndian.PutUint32(vertexBytes[off+20:], math.Float32bits(v.color[1]))
		binary.LittleEndian.PutUint32(vertexBytes[off+24:], math.Float32bits(v.color[2]))
		binary.LittleEndian.PutUint32(vertexBytes[off+28:], math.Float32bits(v.color[3]))
	}
	indexBytes := make([]byte, len(d.indices)*4)
	for i, idx := range d.indices {
		binary.LittleEndian.PutUint32(indexBytes[i*4:], idx)
	}

	vb, ib, err := ctx.ensureDrawBuffers(uint64(len(vertexBytes)), uint64(len(indexBytes)))
	if err != nil {
		return err
	}
	vb.Write(ctx.queue, vertexBytes)
	ib.Write(ctx.queue, indexBytes)

	for i := range d.batches {
		batch := &d.batches[i]

		tex, samp, sh := batch.texture, batch.sampler, batch.shader
		if tex == nil {
			tex = defTex
		}
		if samp == nil {
			samp = defSamp
		}
		if sh == nil {
			sh = defShader
		}

		d.pass.SetShader(sh)
		d.pass.SetBlend(batch.blend)
		if err := d.pass.SetAttachments(
			TextureAttachment(0, 0, tex),
			SamplerAttachment(0, 1, samp),
		); err != nil {
			return err
		}
		if batch.hasViewport {
			v := batch.viewport
			d.pass.SetViewport(v.x, v.y, v.w, v.h, v.minDepth, v.maxDepth)
		} else {
			d.pass.SetViewport(0, 0, d.width, d.height, 0, 1)
		}
		if batch.hasScissor {
			s := batch.scissor
			d.pass.SetScissor(s.x, s.y, s.w, s.h)
		} else {
			d.pass.SetScissor(0, 0, uint32(d.width), uint32(d.height))
		}
		d.pass.SetVertexBuffer(vb)
		d.pass.SetIndexBuffer(ib, gputypes.IndexFormatUint32)
		d.pass.DrawIndexed(batch.indexCount, 1, batch.firstIndex, 0, 0)
	}

	Logger().Debug("gfx: drawing flushed",
		"vertices", len(d.vertices), "indices", len(d.indices), "draws", len(d.batches))

	d.vertices = d.vertices[:0]
	d.indices = d.indices[:0]
	d.batches = d.batches[:0]
	return nil
}
