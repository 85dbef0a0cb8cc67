// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Sampler wraps a hal.Sampler.
type Sampler struct {
	id        uint64
	label     string
	raw       hal.Sampler
	destroyed bool
}

// SamplerBuilder configures and creates a Sampler.
type SamplerBuilder struct {
	label       string
	magFilter   gputypes.FilterMode
	minFilter   gputypes.FilterMode
	mipFilter   gputypes.FilterMode
	addressMode gputypes.AddressMode
}

// NewSampler returns a sampler builder with linear filtering and
// clamp-to-edge addressing.
func NewSampler() *SamplerBuilder {
	return &SamplerBuilder{
		magFilter:   gputypes.FilterModeLinear,
		minFilter:   gputypes.FilterModeLinear,
		mipFilter:   gputypes.FilterModeLinear,
		addressMode: gputypes.AddressModeClampToEdge,
	}
}

// SetLabel sets the debug label.
func (b *SamplerBuilder) SetLabel(label string) *SamplerBuilder {
	b.label = label
	return b
}

// SetFilter sets the magnification and minification filters.
func (b *SamplerBuilder) SetFilter(mag, min gputypes.FilterMode) *SamplerBuilder {
	b.magFilter = mag
	b.minFilter = min
	return b
}

// SetAddressMode sets the addressing mode for all three axes.
func (b *SamplerBuilder) SetAddressMode(mode gputypes.AddressMode) *SamplerBuilder {
	b.addressMode = mode
	return b
}

// Build creates the sampler on the device.
func (b *SamplerBuilder) Build(device hal.Device) (*Sampler, error) {
	raw, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        b.label,
		AddressModeU: b.addressMode,
		AddressModeV: b.addressMode,
		AddressModeW: b.addressMode,
		MagFilter:    b.magFilter,
		MinFilter:    b.minFilter,
		MipmapFilter: b.mipFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler %q: %w", b.label, err)
	}
	return &Sampler{
		id:    nextResourceID.Add(1),
		label: b.label,
		raw:   raw,
	}, nil
}

// ID returns the process-unique sampler ID.
func (s *Sampler) ID() uint64 { return s.id }

// Label returns the debug label.
func (s *Sampler) Label() string { return s.label }

// Raw returns the underlying hal sampler.
func (s *Sampler) Raw() hal.Sampler { return s.raw }

// Destroy releases the backend sampler.
func (s *Sampler) Destroy(device hal.Device) {
	if s.destroyed {
		return
	}
	s.destroyed = true
	device.DestroySampler(s.raw)
}
