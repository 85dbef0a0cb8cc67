// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gfx is a mid-level layer over gogpu/wgpu's HAL: it owns the
// caches and state machines that sit between application code and raw
// GPU object creation.
//
// A Context wraps a hal.Device and hal.Queue and carries two frame-aged
// caches, one for pipelines and one for bind groups. Pipelines and bind
// groups are never created directly; they are requested with identity
// keys derived from shader reflection and pass state, and reused across
// frames until they age out. Call Context.Cycle once per frame to drive
// eviction.
//
// Shaders are built from WGSL (or a prebuilt binary container) through
// the shader subpackage, which reflects bindings and vertex inputs from
// the compiled module so layouts never have to be declared by hand.
//
// Render and compute passes are recorded through small state machines:
// state setters and draw calls are queued while the pass is open and
// replayed into the HAL encoder when the pass ends. On top of the render
// pass sits Drawing, an immediate-mode 2D batcher that coalesces shapes
// sharing texture, blend, shader and clip state into single draws.
//
// Construction-time problems (bad shaders, incompatible layouts, invalid
// attachments) are reported as errors. Contract violations during
// recording, such as drawing without a vertex buffer, panic.
package gfx
