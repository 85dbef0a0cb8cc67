// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Command buffer errors.
var (
	// ErrCommandBufferFinished is returned when recording into a command
	// buffer after Finish or Discard.
	ErrCommandBufferFinished = errors.New("gfx: command buffer already finished")

	// ErrPassActive is returned when starting a pass or recording a copy
	// while another pass is still open.
	ErrPassActive = errors.New("gfx: a pass is still recording")

	// ErrMissingCopyUsage is returned when a copy source lacks CopySrc
	// or a destination lacks CopyDst.
	ErrMissingCopyUsage = errors.New("gfx: resource lacks the required copy usage")

	// ErrCopyOutOfBounds is returned when a copy range exceeds either
	// resource.
	ErrCopyOutOfBounds = errors.New("gfx: copy range out of bounds")

	// ErrCopyNotAligned is returned when a copy size or offset violates
	// the 4-byte copy alignment.
	ErrCopyNotAligned = errors.New("gfx: copy size or offset not 4-byte aligned")

	// ErrGPUWaitFailed is returned when the submit fence is not signaled
	// within the wait ceiling.
	ErrGPUWaitFailed = errors.New("gfx: GPU did not signal completion in time")
)

// textureRowAlignment is the required BytesPerRow alignment for
// texture-buffer copies.
const textureRowAlignment = 256

// CommandBuffer records GPU work: passes and copies, in order. At most
// one pass may be open at a time. Finish submits the recorded work;
// there is no implicit submission, a dropped CommandBuffer must be
// Discarded.
type CommandBuffer struct {
	ctx     *Context
	encoder hal.CommandEncoder
	label   string

	passActive bool
	finished   bool
}

// NewCommandBuffer creates a command buffer and begins encoding.
func (c *Context) NewCommandBuffer(label string) (*CommandBuffer, error) {
	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	return &CommandBuffer{ctx: c, encoder: encoder, label: label}, nil
}

// Context returns the owning context.
func (cb *CommandBuffer) Context() *Context { return cb.ctx }

// checkRecording verifies the command buffer accepts top-level commands.
func (cb *CommandBuffer) checkRecording() error {
	if cb.finished {
		return ErrCommandBufferFinished
	}
	if cb.passActive {
		return ErrPassActive
	}
	return nil
}

// CopyBufferToBuffer records a buffer copy. Offsets and size must be
// 4-byte aligned, in bounds, and the buffers must carry CopySrc/CopyDst.
func (cb *CommandBuffer) CopyBufferToBuffer(src, dst *Buffer, srcOffset, dstOffset, size uint64) error {
	if err := cb.checkRecording(); err != nil {
		return fmt.Errorf("copy buffer: %w", err)
	}
	if size%copyBufferAlignment != 0 || srcOffset%copyBufferAlignment != 0 || dstOffset%copyBufferAlignment != 0 {
		return fmt.Errorf("%w: offset %d/%d size %d", ErrCopyNotAligned, srcOffset, dstOffset, size)
	}
	if !src.usage.Contains(gputypes.BufferUsageCopySrc) {
		return fmt.Errorf("%w: source %q", ErrMissingCopyUsage, src.label)
	}
	if !dst.usage.Contains(gputypes.BufferUsageCopyDst) {
		return fmt.Errorf("%w: destination %q", ErrMissingCopyUsage, dst.label)
	}
	if srcOffset+size > src.size || dstOffset+size > dst.size {
		return fmt.Errorf("%w: %d bytes from %q+%d to %q+%d",
			ErrCopyOutOfBounds, size, src.label, srcOffset, dst.label, dstOffset)
	}

	cb.encoder.CopyBufferToBuffer(src.raw, dst.raw, []hal.BufferCopy{
		{SrcOffset: srcOffset, DstOffset: dstOffset, Size: size},
	})
	return nil
}

// CopyTextureToBuffer records a full-texture copy into dst with the
// given row pitch. BytesPerRow must be 256-byte aligned and cover the
// texture width; dst must hold bytesPerRow * height bytes.
func (cb *CommandBuffer) CopyTextureToBuffer(src *Texture, dst *Buffer, bytesPerRow uint32) error {
	if err := cb.checkRecording(); err != nil {
		return fmt.Errorf("copy texture: %w", err)
	}
	if bytesPerRow%textureRowAlignment != 0 {
		return fmt.Errorf("%w: bytes per row %d", ErrCopyNotAligned, bytesPerRow)
	}
	if !src.usage.Contains(gputypes.TextureUsageCopySrc) {
		return fmt.Errorf("%w: texture %q", ErrMissingCopyUsage, src.label)
	}
	if !dst.usage.Contains(gputypes.BufferUsageCopyDst) {
		return fmt.Errorf("%w: destination %q", ErrMissingCopyUsage, dst.label)
	}
	need := uint64(bytesPerRow) * uint64(src.height)
	if dst.size < need {
		return fmt.Errorf("%w: need %d bytes, buffer %q holds %d", ErrCopyOutOfBounds, need, dst.label, dst.size)
	}

	cb.encoder.CopyTextureToBuffer(src.raw, dst.raw, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  bytesPerRow,
			RowsPerImage: src.height,
		},
		TextureBase: hal.ImageCopyTexture{Texture: src.raw, MipLevel: 0},
		Size:        hal.Extent3D{Width: src.width, Height: src.height, DepthOrArrayLayers: 1},
	}})
	return nil
}

// TransitionToCopySource inserts a barrier moving a render target into
// copy-source layout, required before CopyTextureToBuffer on backends
// with explicit layouts.
func (cb *CommandBuffer) TransitionToCopySource(tex *Texture) error {
	if err := cb.checkRecording(); err != nil {
		return fmt.Errorf("transition texture: %w", err)
	}
	cb.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.raw,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	return nil
}

// Finish ends encoding and submits the recorded work. With wait set it
// blocks on a fence until the GPU has finished, bounded by the readback
// timeout. Finish fails if a pass is still open.
func (cb *CommandBuffer) Finish(wait bool) error {
	if cb.finished {
		return ErrCommandBufferFinished
	}
	if cb.passActive {
		return fmt.Errorf("finish %q: %w", cb.label, ErrPassActive)
	}
	cb.finished = true

	cmdBuf, err := cb.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding %q: %w", cb.label, err)
	}
	defer cb.ctx.device.FreeCommandBuffer(cmdBuf)

	fence, err := cb.ctx.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer cb.ctx.device.DestroyFence(fence)

	if err := cb.ctx.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit %q: %w", cb.label, err)
	}

	if wait {
		fenceOK, err := cb.ctx.device.Wait(fence, 1, readbackTimeout)
		if err != nil {
			return fmt.Errorf("wait for %q: %w", cb.label, err)
		}
		if !fenceOK {
			return fmt.Errorf("%w: %q", ErrGPUWaitFailed, cb.label)
		}
	}
	return nil
}

// Discard abandons the recorded work without submitting.
func (cb *CommandBuffer) Discard() {
	if cb.finished {
		return
	}
	cb.finished = true
	cb.encoder.DiscardEncoding()
}
