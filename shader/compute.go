// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/wgpu/hal"
)

// ComputeBuilder builds a compute shader from WGSL source or a binary
// container.
type ComputeBuilder struct {
	label  string
	source string
	binary []byte
}

// NewCompute returns a compute shader builder.
func NewCompute() *ComputeBuilder {
	return &ComputeBuilder{}
}

// SetLabel sets the debug label.
func (b *ComputeBuilder) SetLabel(label string) *ComputeBuilder {
	b.label = label
	return b
}

// SetSource sets WGSL containing the compute entry point.
func (b *ComputeBuilder) SetSource(source string) *ComputeBuilder {
	b.source = source
	return b
}

// SetBinary sets a precompiled binary shader container as the input.
func (b *ComputeBuilder) SetBinary(data []byte) *ComputeBuilder {
	b.binary = data
	return b
}

// Build compiles, reflects, and creates the backend objects.
func (b *ComputeBuilder) Build(device hal.Device) (*Shader, error) {
	src := b.source != ""
	bin := len(b.binary) > 0

	switch {
	case !src && !bin:
		return nil, ErrNoSource
	case src && bin:
		return nil, ErrSourceConflict
	}

	var refl *Reflection
	var payload []byte
	if bin {
		var err error
		refl, payload, err = DecodeBinary(b.binary)
		if err != nil {
			return nil, err
		}
	} else {
		r, module, err := compileWGSL(b.source)
		if err != nil {
			return nil, err
		}
		payload, err = naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3})
		if err != nil {
			return nil, fmt.Errorf("generate SPIR-V: %w", err)
		}
		refl = r
	}

	if refl.Kind != KindCompute {
		return nil, fmt.Errorf("%w: %s shader in compute build", ErrUnsupportedStage, refl.Kind)
	}

	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  b.label,
		Source: hal.ShaderSource{SPIRV: spirvWords(payload)},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module: %w", err)
	}

	groups, err := DeriveGroupLayouts(device, b.label, refl)
	if err != nil {
		device.DestroyShaderModule(module)
		return nil, err
	}

	return &Shader{
		id:         nextShaderID.Add(1),
		label:      b.label,
		kind:       KindCompute,
		reflection: refl,
		module:     module,
		groups:     groups,
	}, nil
}
