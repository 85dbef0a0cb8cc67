// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrInvalidBufferSize is returned when building a buffer with size zero.
	ErrInvalidBufferSize = errors.New("gfx: invalid buffer size")

	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("gfx: buffer has been destroyed")

	// ErrBufferNotReadable is returned by Read when the buffer carries
	// neither MapRead nor CopySrc usage.
	ErrBufferNotReadable = errors.New("gfx: buffer not created with MapRead or CopySrc usage")

	// ErrReadbackTimeout is returned when the GPU does not signal the
	// readback fence within the wait ceiling.
	ErrReadbackTimeout = errors.New("gfx: timed out waiting for GPU readback")
)

// copyBufferAlignment is the required alignment for buffer copy sizes.
const copyBufferAlignment = 4

// readbackTimeout bounds fence waits on readback paths.
const readbackTimeout = 5 * time.Second

// alignBufferSize rounds size up to the copy alignment.
func alignBufferSize(size uint64) uint64 {
	return (size + copyBufferAlignment - 1) &^ (copyBufferAlignment - 1)
}

// nextResourceID hands out process-unique IDs for buffers, textures and
// samplers. IDs, not backend handles, feed the bind group cache keys:
// backend handles are opaque and may be zero on stub backends.
var nextResourceID atomic.Uint64

// Buffer wraps a hal.Buffer with its size and usage so writes and reads
// can be validated without querying the backend.
type Buffer struct {
	id        uint64
	label     string
	raw       hal.Buffer
	size      uint64
	usage     gputypes.BufferUsage
	destroyed bool
}

// BufferBuilder configures and creates a Buffer.
type BufferBuilder struct {
	label string
	size  uint64
	usage gputypes.BufferUsage
}

// NewBuffer returns a buffer builder with no usage flags set.
func NewBuffer() *BufferBuilder {
	return &BufferBuilder{}
}

// SetLabel sets the debug label.
func (b *BufferBuilder) SetLabel(label string) *BufferBuilder {
	b.label = label
	return b
}

// SetSize sets the buffer size in bytes. The actual allocation is rounded
// up to the 4-byte copy alignment.
func (b *BufferBuilder) SetSize(size uint64) *BufferBuilder {
	b.size = size
	return b
}

// SetUsage sets the usage flags.
func (b *BufferBuilder) SetUsage(usage gputypes.BufferUsage) *BufferBuilder {
	b.usage = usage
	return b
}

// Build creates the buffer on the device.
func (b *BufferBuilder) Build(device hal.Device) (*Buffer, error) {
	if b.size == 0 {
		return nil, fmt.Errorf("%w: %q has size 0", ErrInvalidBufferSize, b.label)
	}
	size := alignBufferSize(b.size)
	raw, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label,
		Size:  size,
		Usage: b.usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", b.label, err)
	}
	return &Buffer{
		id:    nextResourceID.Add(1),
		label: b.label,
		raw:   raw,
		size:  size,
		usage: b.usage,
	}, nil
}

// ID returns the process-unique buffer ID.
func (b *Buffer) ID() uint64 { return b.id }

// Label returns the debug label.
func (b *Buffer) Label() string { return b.label }

// Size returns the allocated size in bytes, after copy alignment.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// Raw returns the underlying hal buffer.
func (b *Buffer) Raw() hal.Buffer { return b.raw }

// Write uploads data at offset 0. Writing to a destroyed buffer, writing
// past the end, or writing without CopyDst usage is a caller bug and
// panics.
func (b *Buffer) Write(queue hal.Queue, data []byte) {
	b.WriteAt(queue, 0, data)
}

// WriteAt uploads data at the given byte offset. Same contract as Write.
func (b *Buffer) WriteAt(queue hal.Queue, offset uint64, data []byte) {
	if b.destroyed {
		panic(fmt.Sprintf("gfx: write to destroyed buffer %q", b.label))
	}
	if !b.usage.Contains(gputypes.BufferUsageCopyDst) {
		panic(fmt.Sprintf("gfx: buffer %q written without CopyDst usage", b.label))
	}
	if offset+uint64(len(data)) > b.size {
		panic(fmt.Sprintf("gfx: write of %d bytes at offset %d overflows buffer %q (size %d)",
			len(data), offset, b.label, b.size))
	}
	queue.WriteBuffer(b.raw, offset, data)
}

// Read returns the buffer contents. A MapRead buffer is read directly;
// a CopySrc buffer is copied into a transient staging buffer, waited on
// with a bounded fence, and read back. Any other usage combination is
// ErrBufferNotReadable.
func (b *Buffer) Read(device hal.Device, queue hal.Queue) ([]byte, error) {
	if b.destroyed {
		return nil, ErrBufferDestroyed
	}

	if b.usage.Contains(gputypes.BufferUsageMapRead) {
		dst := make([]byte, b.size)
		if err := queue.ReadBuffer(b.raw, 0, dst); err != nil {
			return nil, fmt.Errorf("read buffer %q: %w", b.label, err)
		}
		return dst, nil
	}

	if !b.usage.Contains(gputypes.BufferUsageCopySrc) {
		return nil, fmt.Errorf("%w: %q has usage %v", ErrBufferNotReadable, b.label, b.usage)
	}

	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label + "_staging",
		Size:  b.size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer device.DestroyBuffer(staging)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gfx_buffer_readback"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gfx_buffer_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(b.raw, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: b.size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer device.DestroyFence(fence)
	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit readback: %w", err)
	}
	fenceOK, err := device.Wait(fence, 1, readbackTimeout)
	if err != nil {
		return nil, fmt.Errorf("wait for readback: %w", err)
	}
	if !fenceOK {
		return nil, ErrReadbackTimeout
	}

	dst := make([]byte, b.size)
	if err := queue.ReadBuffer(staging, 0, dst); err != nil {
		return nil, fmt.Errorf("read staging buffer: %w", err)
	}
	return dst, nil
}

// Resize reallocates the buffer with a new size, preserving the common
// prefix of the contents when the usage flags permit a GPU copy (CopySrc
// on the old contents, CopyDst on the new). The buffer keeps its ID; the
// old allocation is destroyed.
func (b *Buffer) Resize(device hal.Device, queue hal.Queue, newSize uint64) error {
	if b.destroyed {
		return ErrBufferDestroyed
	}
	if newSize == 0 {
		return fmt.Errorf("%w: resize %q to 0", ErrInvalidBufferSize, b.label)
	}
	newSize = alignBufferSize(newSize)
	if newSize == b.size {
		return nil
	}

	raw, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label,
		Size:  newSize,
		Usage: b.usage,
	})
	if err != nil {
		return fmt.Errorf("resize buffer %q: %w", b.label, err)
	}

	canCopy := b.usage.Contains(gputypes.BufferUsageCopySrc) && b.usage.Contains(gputypes.BufferUsageCopyDst)
	if canCopy {
		if err := copyBufferContents(device, queue, b.raw, raw, min(b.size, newSize)); err != nil {
			device.DestroyBuffer(raw)
			return err
		}
	}

	device.DestroyBuffer(b.raw)
	b.raw = raw
	b.size = newSize
	return nil
}

// copyBufferContents copies size bytes between raw buffers and waits for
// completion so the source can be destroyed immediately after.
func copyBufferContents(device hal.Device, queue hal.Queue, src, dst hal.Buffer, size uint64) error {
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gfx_buffer_resize"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gfx_buffer_resize"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(src, dst, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer device.DestroyFence(fence)
	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit copy: %w", err)
	}
	fenceOK, err := device.Wait(fence, 1, readbackTimeout)
	if err != nil {
		return fmt.Errorf("wait for copy: %w", err)
	}
	if !fenceOK {
		return ErrReadbackTimeout
	}
	return nil
}

// Destroy releases the backend buffer. Further use panics or errors.
func (b *Buffer) Destroy(device hal.Device) {
	if b.destroyed {
		return
	}
	b.destroyed = true
	device.DestroyBuffer(b.raw)
}
