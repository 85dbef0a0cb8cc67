//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestTextureBuilderValidation(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	if _, err := NewTexture().SetSize(0, 64).Build(device); !errors.Is(err, ErrInvalidTextureSize) {
		t.Errorf("zero width: err = %v, want ErrInvalidTextureSize", err)
	}
	if _, err := NewTexture().SetSize(64, 0).Build(device); !errors.Is(err, ErrInvalidTextureSize) {
		t.Errorf("zero height: err = %v, want ErrInvalidTextureSize", err)
	}
	if _, err := NewTexture().SetSize(64, 64).SetSamples(3).Build(device); !errors.Is(err, ErrInvalidSampleCount) {
		t.Errorf("samples 3: err = %v, want ErrInvalidSampleCount", err)
	}
}

func TestTextureBuilderDefaults(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	tex, err := NewTexture().SetLabel("tex").SetSize(32, 16).
		SetUsage(gputypes.TextureUsageTextureBinding).Build(device)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer tex.Destroy(device)

	if tex.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format = %v, want RGBA8Unorm default", tex.Format())
	}
	if tex.Samples() != 1 {
		t.Errorf("Samples = %d, want 1", tex.Samples())
	}
	if tex.Width() != 32 || tex.Height() != 16 {
		t.Errorf("size = %dx%d, want 32x16", tex.Width(), tex.Height())
	}
	if tex.IsDepth() {
		t.Error("RGBA8Unorm reported as depth format")
	}
}

func TestTextureDepthFormat(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	tex, err := NewTexture().SetSize(64, 64).
		SetFormat(gputypes.TextureFormatDepth24PlusStencil8).
		SetUsage(gputypes.TextureUsageRenderAttachment).Build(device)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer tex.Destroy(device)

	if !tex.IsDepth() {
		t.Error("Depth24PlusStencil8 not reported as depth format")
	}
}

func TestIsSRGBFormat(t *testing.T) {
	tests := []struct {
		format gputypes.TextureFormat
		want   bool
	}{
		{gputypes.TextureFormatRGBA8UnormSrgb, true},
		{gputypes.TextureFormatBGRA8UnormSrgb, true},
		{gputypes.TextureFormatRGBA8Unorm, false},
		{gputypes.TextureFormatBGRA8Unorm, false},
	}
	for _, tt := range tests {
		if got := isSRGBFormat(tt.format); got != tt.want {
			t.Errorf("isSRGBFormat(%v) = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestTextureViewCached(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	tex, err := NewTexture().SetSize(8, 8).
		SetUsage(gputypes.TextureUsageTextureBinding).Build(device)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer tex.Destroy(device)

	a, err := tex.View(device)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	b, err := tex.View(device)
	if err != nil {
		t.Fatalf("second View failed: %v", err)
	}
	if a != b {
		t.Error("View created a second view for the same texture")
	}
}

func TestTextureViewAfterDestroy(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	tex, err := NewTexture().SetSize(8, 8).
		SetUsage(gputypes.TextureUsageTextureBinding).Build(device)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	tex.Destroy(device)
	tex.Destroy(device)

	if _, err := tex.View(device); !errors.Is(err, ErrTextureDestroyed) {
		t.Errorf("err = %v, want ErrTextureDestroyed", err)
	}
}
