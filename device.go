// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"github.com/gogpu/gpucontext"
)

// DeviceHandle provides GPU device access from the host application.
//
// gfx receives its device from the host, it does not create one. A host
// built on the gpucontext ecosystem (a window framework, an offscreen
// harness) implements gpucontext.DeviceProvider and hands it to the
// application, which opens the HAL device and constructs a Context.
// DeviceHandle is a package-local name for that same interface so gfx
// signatures stay readable without importing gpucontext at call sites.
type DeviceHandle = gpucontext.DeviceProvider
