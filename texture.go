// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Texture errors.
var (
	// ErrInvalidTextureSize is returned when building a texture with a
	// zero dimension.
	ErrInvalidTextureSize = errors.New("gfx: invalid texture size")

	// ErrInvalidSampleCount is returned for sample counts other than
	// 1, 2, 4 or 8.
	ErrInvalidSampleCount = errors.New("gfx: invalid sample count")

	// ErrTextureDestroyed is returned when operating on a destroyed
	// texture.
	ErrTextureDestroyed = errors.New("gfx: texture has been destroyed")
)

// Texture wraps a hal.Texture with its descriptor fields and a lazily
// created default view covering the whole texture.
type Texture struct {
	id      uint64
	label   string
	raw     hal.Texture
	width   uint32
	height  uint32
	format  gputypes.TextureFormat
	samples uint32
	usage   gputypes.TextureUsage

	viewOnce  sync.Once
	view      hal.TextureView
	viewErr   error
	destroyed bool
}

// TextureBuilder configures and creates a Texture.
type TextureBuilder struct {
	label   string
	width   uint32
	height  uint32
	format  gputypes.TextureFormat
	samples uint32
	usage   gputypes.TextureUsage
}

// NewTexture returns a texture builder with RGBA8Unorm format and a
// single sample.
func NewTexture() *TextureBuilder {
	return &TextureBuilder{
		format:  gputypes.TextureFormatRGBA8Unorm,
		samples: 1,
	}
}

// SetLabel sets the debug label.
func (b *TextureBuilder) SetLabel(label string) *TextureBuilder {
	b.label = label
	return b
}

// SetSize sets the texture dimensions in pixels.
func (b *TextureBuilder) SetSize(width, height uint32) *TextureBuilder {
	b.width = width
	b.height = height
	return b
}

// SetFormat sets the pixel format.
func (b *TextureBuilder) SetFormat(format gputypes.TextureFormat) *TextureBuilder {
	b.format = format
	return b
}

// SetSamples sets the MSAA sample count.
func (b *TextureBuilder) SetSamples(samples uint32) *TextureBuilder {
	b.samples = samples
	return b
}

// SetUsage sets the usage flags.
func (b *TextureBuilder) SetUsage(usage gputypes.TextureUsage) *TextureBuilder {
	b.usage = usage
	return b
}

// Build creates the texture on the device.
func (b *TextureBuilder) Build(device hal.Device) (*Texture, error) {
	if b.width == 0 || b.height == 0 {
		return nil, fmt.Errorf("%w: %q is %dx%d", ErrInvalidTextureSize, b.label, b.width, b.height)
	}
	switch b.samples {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleCount, b.samples)
	}

	raw, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         b.label,
		Size:          hal.Extent3D{Width: b.width, Height: b.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   b.samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        b.format,
		Usage:         b.usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", b.label, err)
	}
	return &Texture{
		id:      nextResourceID.Add(1),
		label:   b.label,
		raw:     raw,
		width:   b.width,
		height:  b.height,
		format:  b.format,
		samples: b.samples,
		usage:   b.usage,
	}, nil
}

// ID returns the process-unique texture ID.
func (t *Texture) ID() uint64 { return t.id }

// Label returns the debug label.
func (t *Texture) Label() string { return t.label }

// Width returns the width in pixels.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the height in pixels.
func (t *Texture) Height() uint32 { return t.height }

// Format returns the pixel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Samples returns the MSAA sample count.
func (t *Texture) Samples() uint32 { return t.samples }

// Usage returns the usage flags.
func (t *Texture) Usage() gputypes.TextureUsage { return t.usage }

// Raw returns the underlying hal texture.
func (t *Texture) Raw() hal.Texture { return t.raw }

// IsDepth reports whether the format carries a depth aspect.
func (t *Texture) IsDepth() bool {
	return isDepthFormat(t.format)
}

func isDepthFormat(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth24PlusStencil8
}

// isSRGBFormat reports whether writes to the format are hardware
// sRGB-encoded.
func isSRGBFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatRGBA8UnormSrgb, gputypes.TextureFormatBGRA8UnormSrgb:
		return true
	default:
		return false
	}
}

// View returns the default full-texture view, creating it on first use.
func (t *Texture) View(device hal.Device) (hal.TextureView, error) {
	if t.destroyed {
		return nil, ErrTextureDestroyed
	}
	t.viewOnce.Do(func() {
		view, err := device.CreateTextureView(t.raw, &hal.TextureViewDescriptor{
			Label:         t.label + "_view",
			Format:        t.format,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			t.viewErr = fmt.Errorf("create view for texture %q: %w", t.label, err)
			return
		}
		t.view = view
	})
	return t.view, t.viewErr
}

// Destroy releases the view (if created) and the backend texture.
func (t *Texture) Destroy(device hal.Device) {
	if t.destroyed {
		return
	}
	t.destroyed = true
	if t.view != nil {
		device.DestroyTextureView(t.view)
		t.view = nil
	}
	device.DestroyTexture(t.raw)
}
