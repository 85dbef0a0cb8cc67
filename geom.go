// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import "math"

// Point is a position in pixel space. The drawing layer converts pixel
// coordinates to clip space when a batch is flushed.
type Point struct {
	X, Y float32
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float32) Point {
	return Point{X: x, Y: y}
}

// Color is a linear-space RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float32
}

// RGBA is shorthand for Color{r, g, b, a}.
func RGBA(r, g, b, a float32) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// Common colors.
var (
	ColorWhite       = Color{1, 1, 1, 1}
	ColorBlack       = Color{0, 0, 0, 1}
	ColorTransparent = Color{0, 0, 0, 0}
)

// toSRGB converts a linear-space color to sRGB-encoded values. Alpha is
// coverage, not light, and stays linear.
func (c Color) toSRGB() Color {
	return Color{
		R: linearToSRGB(c.R),
		G: linearToSRGB(c.G),
		B: linearToSRGB(c.B),
		A: c.A,
	}
}

func linearToSRGB(v float32) float32 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	if v <= 0.0031308 {
		return v * 12.92
	}
	return float32(1.055*math.Pow(float64(v), 1.0/2.4) - 0.055)
}

// Rect is an axis-aligned rectangle in pixel space.
type Rect struct {
	Min, Max Point
}

// RectXYWH builds a Rect from an origin and size.
func RectXYWH(x, y, w, h float32) Rect {
	return Rect{Min: Point{X: x, Y: y}, Max: Point{X: x + w, Y: y + h}}
}

// W returns the rectangle width.
func (r Rect) W() float32 { return r.Max.X - r.Min.X }

// H returns the rectangle height.
func (r Rect) H() float32 { return r.Max.Y - r.Min.Y }

// Empty reports whether the rectangle has zero or negative area.
func (r Rect) Empty() bool {
	return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y
}
