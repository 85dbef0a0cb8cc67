// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/cache"
	"github.com/gogpu/gfx/shader"
)

// Bind groups idle longer than pipelines before aging out: they are
// cheap to hold and expensive to churn when resource sets alternate
// across frames.
const defaultBindGroupLifetime = 100

// Options configures a Context.
type Options struct {
	// PipelineCache configures the pipeline cache.
	PipelineCache cache.FrameConfig

	// BindGroupCache configures the bind group cache.
	BindGroupCache cache.FrameConfig
}

// DefaultOptions returns the default context configuration.
func DefaultOptions() *Options {
	bg := cache.DefaultFrameConfig()
	bg.Lifetime = defaultBindGroupLifetime
	return &Options{
		PipelineCache:  cache.DefaultFrameConfig(),
		BindGroupCache: bg,
	}
}

// CacheStats is a snapshot of the context's cache activity.
type CacheStats struct {
	Pipelines       int
	PipelineHits    uint64
	PipelineMisses  uint64
	BindGroups      int
	BindGroupHits   uint64
	BindGroupMisses uint64
}

// Context owns a device's caches and shared drawing state. All pipeline
// and bind group creation in this package flows through a Context, so
// identical requests across frames reuse the same backend objects.
//
// The host opens the HAL device (usually through a DeviceHandle) and
// hands it in; the Context never creates or destroys the device itself.
type Context struct {
	device hal.Device
	queue  hal.Queue

	pipelines  *pipelineCache
	bindGroups *bindGroupCache

	// Lazily created drawing defaults.
	defaultsOnce   sync.Once
	defaultsErr    error
	whiteTexture   *Texture
	defaultSampler *Sampler
	drawShader     *shader.Shader

	// Shared grow-only geometry buffers for the drawing layer.
	drawMu       sync.Mutex
	drawVertices *Buffer
	drawIndices  *Buffer

	closed bool
}

// NewContext creates a context over an open device and its queue.
// A nil opts uses DefaultOptions.
func NewContext(device hal.Device, queue hal.Queue, opts *Options) *Context {
	if opts == nil {
		opts = DefaultOptions()
	}
	c := &Context{
		device:     device,
		queue:      queue,
		pipelines:  newPipelineCache(device, opts.PipelineCache),
		bindGroups: newBindGroupCache(device, opts.BindGroupCache),
	}
	Logger().Info("gfx: context created",
		"pipeline_capacity", c.pipelines.entries.Config().Capacity,
		"bind_group_capacity", c.bindGroups.entries.Config().Capacity)
	return c
}

// Device returns the underlying hal device.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the underlying hal queue.
func (c *Context) Queue() hal.Queue { return c.queue }

// Cycle advances both caches by one frame, evicting entries that have
// been idle for their full lifetime. Call once per frame.
func (c *Context) Cycle() {
	c.pipelines.entries.Cycle()
	c.bindGroups.entries.Cycle()
	Logger().Debug("gfx: cache cycle",
		"pipelines", c.pipelines.entries.Len(),
		"bind_groups", c.bindGroups.entries.Len())
}

// CacheStats returns a snapshot of cache sizes and hit counters.
func (c *Context) CacheStats() CacheStats {
	return CacheStats{
		Pipelines:       c.pipelines.entries.Len(),
		PipelineHits:    c.pipelines.hits.Load(),
		PipelineMisses:  c.pipelines.misses.Load(),
		BindGroups:      c.bindGroups.entries.Len(),
		BindGroupHits:   c.bindGroups.hits.Load(),
		BindGroupMisses: c.bindGroups.misses.Load(),
	}
}

// Close destroys everything the context owns: cached pipelines and bind
// groups, the drawing defaults and the shared geometry buffers. The
// device itself belongs to the host and is left open. Close is
// idempotent.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true

	c.bindGroups.entries.Clear()
	c.pipelines.entries.Clear()

	if c.drawShader != nil {
		c.drawShader.Destroy(c.device)
		c.drawShader = nil
	}
	if c.defaultSampler != nil {
		c.defaultSampler.Destroy(c.device)
		c.defaultSampler = nil
	}
	if c.whiteTexture != nil {
		c.whiteTexture.Destroy(c.device)
		c.whiteTexture = nil
	}
	if c.drawVertices != nil {
		c.drawVertices.Destroy(c.device)
		c.drawVertices = nil
	}
	if c.drawIndices != nil {
		c.drawIndices.Destroy(c.device)
		c.drawIndices = nil
	}
	Logger().Info("gfx: context closed")
}

// drawDefaults returns the lazily created drawing defaults: a 1x1 opaque
// white texture, a linear clamping sampler and the textured-quad shader.
func (c *Context) drawDefaults() (*Texture, *Sampler, *shader.Shader, error) {
	c.defaultsOnce.Do(func() {
		c.defaultsErr = c.buildDrawDefaults()
	})
	if c.defaultsErr != nil {
		return nil, nil, nil, c.defaultsErr
	}
	return c.whiteTexture, c.defaultSampler, c.drawShader, nil
}

func (c *Context) buildDrawDefaults() error {
	tex, err := NewTexture().
		SetLabel("gfx_white").
		SetSize(1, 1).
		SetFormat(gputypes.TextureFormatRGBA8Unorm).
		SetUsage(gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst).
		Build(c.device)
	if err != nil {
		return fmt.Errorf("create default texture: %w", err)
	}
	c.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex.raw, MipLevel: 0},
		[]byte{0xFF, 0xFF, 0xFF, 0xFF},
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: 4, RowsPerImage: 1},
		&hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	)

	samp, err := NewSampler().SetLabel("gfx_default_sampler").Build(c.device)
	if err != nil {
		tex.Destroy(c.device)
		return fmt.Errorf("create default sampler: %w", err)
	}

	sh, err := shader.NewGraphics().
		SetLabel("gfx_drawing").
		SetSource(drawingWGSL).
		Build(c.device)
	if err != nil {
		samp.Destroy(c.device)
		tex.Destroy(c.device)
		return fmt.Errorf("build drawing shader: %w", err)
	}

	c.whiteTexture = tex
	c.defaultSampler = samp
	c.drawShader = sh
	Logger().Debug("gfx: drawing defaults created")
	return nil
}

// ensureDrawBuffers returns the shared vertex and index buffers, grown
// to hold at least the requested byte sizes. The buffers only ever grow;
// a frame with less geometry reuses the previous allocation.
func (c *Context) ensureDrawBuffers(vertexBytes, indexBytes uint64) (*Buffer, *Buffer, error) {
	c.drawMu.Lock()
	defer c.drawMu.Unlock()

	if c.drawVertices == nil || c.drawVertices.size < vertexBytes {
		if c.drawVertices != nil {
			c.drawVertices.Destroy(c.device)
			c.drawVertices = nil
		}
		vb, err := NewBuffer().
			SetLabel("gfx_draw_vertices").
			SetSize(growSize(vertexBytes)).
			SetUsage(gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst).
			Build(c.device)
		if err != nil {
			return nil, nil, fmt.Errorf("create draw vertex buffer: %w", err)
		}
		c.drawVertices = vb
	}

	if c.drawIndices == nil || c.drawIndices.size < indexBytes {
		if c.drawIndices != nil {
			c.drawIndices.Destroy(c.device)
			c.drawIndices = nil
		}
		ib, err := NewBuffer().
			SetLabel("gfx_draw_indices").
			SetSize(growSize(indexBytes)).
			SetUsage(gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst).
			Build(c.device)
		if err != nil {
			return nil, nil, fmt.Errorf("create draw index buffer: %w", err)
		}
		c.drawIndices = ib
	}

	return c.drawVertices, c.drawIndices, nil
}

// growSize rounds a requested size up to the next power of two, with a
// floor that avoids churning tiny allocations.
func growSize(n uint64) uint64 {
	const floor = 4096
	size := uint64(floor)
	for size < n {
		size *= 2
	}
	return size
}
