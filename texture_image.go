// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrUnsupportedImageFormat is returned when uploading or reading pixels
// on a texture whose format is not a 4-byte RGBA layout.
var ErrUnsupportedImageFormat = errors.New("gfx: texture format not supported for image transfer")

// imageBytesPerPixel reports the per-pixel byte size for formats the
// image transfer paths understand.
func imageBytesPerPixel(f gputypes.TextureFormat) (uint32, bool) {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return 4, true
	default:
		return 0, false
	}
}

// Upload writes an image into the texture. The image is converted to
// RGBA and scaled to the texture dimensions when they differ. The
// texture must carry CopyDst usage.
func (t *Texture) Upload(queue hal.Queue, img image.Image) error {
	if t.destroyed {
		return ErrTextureDestroyed
	}
	if !t.usage.Contains(gputypes.TextureUsageCopyDst) {
		return fmt.Errorf("%w: texture %q", ErrMissingCopyUsage, t.label)
	}
	bpp, ok := imageBytesPerPixel(t.format)
	if !ok {
		return fmt.Errorf("%w: %q uses %v", ErrUnsupportedImageFormat, t.label, t.format)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, int(t.width), int(t.height)))
	bounds := img.Bounds()
	if bounds.Dx() == int(t.width) && bounds.Dy() == int(t.height) {
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), img, bounds, draw.Src, nil)
	}

	queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, MipLevel: 0},
		rgba.Pix,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  bpp * t.width,
			RowsPerImage: t.height,
		},
		&hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)
	return nil
}

// ReadPixels copies the texture into a staging buffer with an aligned
// row pitch, waits for the copy, and repacks the rows into an RGBA
// image. The texture must carry CopySrc usage.
func (t *Texture) ReadPixels(device hal.Device, queue hal.Queue) (*image.RGBA, error) {
	if t.destroyed {
		return nil, ErrTextureDestroyed
	}
	if !t.usage.Contains(gputypes.TextureUsageCopySrc) {
		return nil, fmt.Errorf("%w: texture %q", ErrMissingCopyUsage, t.label)
	}
	bpp, ok := imageBytesPerPixel(t.format)
	if !ok {
		return nil, fmt.Errorf("%w: %q uses %v", ErrUnsupportedImageFormat, t.label, t.format)
	}

	rowBytes := bpp * t.width
	pitch := (rowBytes + textureRowAlignment - 1) &^ uint32(textureRowAlignment-1)

	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: t.label + "_readback",
		Size:  uint64(pitch) * uint64(t.height),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create readback buffer: %w", err)
	}
	defer device.DestroyBuffer(staging)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gfx_texture_readback"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gfx_texture_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.CopyTextureToBuffer(t.raw, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  pitch,
			RowsPerImage: t.height,
		},
		TextureBase: hal.ImageCopyTexture{Texture: t.raw, MipLevel: 0},
		Size:        hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	}})
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

	raw := make([]byte, uint64(pitch)*uint64(t.height))
	if err := queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("read readback buffer: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(t.width), int(t.height)))
	swapBGRA := t.format == gputypes.TextureFormatBGRA8Unorm || t.format == gputypes.TextureFormatBGRA8UnormSrgb
	for y := uint32(0); y < t.height; y++ {
		row := raw[y*pitch : y*pitch+rowBytes]
		dst := img.Pix[y*uint32(img.Stride) : y*uint32(img.Stride)+rowBytes]
		copy(dst, row)
		if swapBGRA {
			for x := 0; x < len(dst); x += 4 {
				dst[x], dst[x+2] = dst[x+2], dst[x]
			}
		}
	}
	return img, nil
}
