// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import "math"

var quadIndices = []uint32{0, 1, 2, 0, 2, 3}

// RectFilled draws a filled axis-aligned rectangle. Empty rectangles
// are skipped.
func (d *Drawing) RectFilled(r Rect, col Color) {
	if r.Empty() {
		return
	}
	d.appendShape([][2]float32{
		{r.Min.X, r.Min.Y},
		{r.Max.X, r.Min.Y},
		{r.Max.X, r.Max.Y},
		{r.Min.X, r.Max.Y},
	}, col, quadIndices)
}

// Rect draws a rectangle outline with the given stroke thickness, built
// from four lines.
func (d *Drawing) Rect(r Rect, thickness float32, col Color) {
	if r.Empty() {
		return
	}
	d.Line(Pt(r.Min.X, r.Min.Y), Pt(r.Max.X, r.Min.Y), thickness, col)
	d.Line(Pt(r.Max.X, r.Min.Y), Pt(r.Max.X, r.Max.Y), thickness, col)
	d.Line(Pt(r.Max.X, r.Max.Y), Pt(r.Min.X, r.Max.Y), thickness, col)
	d.Line(Pt(r.Min.X, r.Max.Y), Pt(r.Min.X, r.Min.Y), thickness, col)
}

// Line draws a stroked segment from a to b as a quad extruded half the
// thickness to each side. Zero-length segments are skipped.
func (d *Drawing) Line(a, b Point, thickness float32, col Color) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	half := thickness / 2
	nx := -dy / length * half
	ny := dx / length * half
	d.appendShape([][2]float32{
		{a.X + nx, a.Y + ny},
		{b.X + nx, b.Y + ny},
		{b.X - nx, b.Y - ny},
		{a.X - nx, a.Y - ny},
	}, col, quadIndices)
}

// TriangleFilled draws a filled triangle.
func (d *Drawing) TriangleFilled(a, b, c Point, col Color) {
	d.appendShape([][2]float32{
		{a.X, a.Y},
		{b.X, b.Y},
		{c.X, c.Y},
	}, col, []uint32{0, 1, 2})
}

// Triangle draws a triangle outline with the given stroke thickness.
func (d *Drawing) Triangle(a, b, c Point, thickness float32, col Color) {
	d.Line(a, b, thickness, col)
	d.Line(b, c, thickness, col)
	d.Line(c, a, thickness, col)
}

// CircleFilled draws a filled circle approximated by a triangle fan of
// the given segment count. Fewer than 3 segments is clamped to 3.
func (d *Drawing) CircleFilled(center Point, radius float32, segments int, col Color) {
	if radius <= 0 {
		return
	}
	if segments < 3 {
		segments = 3
	}
	pts := make([][2]float32, 0, segments+1)
	pts = append(pts, [2]float32{center.X, center.Y})
	for i := range segments {
		angle := 2 * math.Pi * float64(i) / float64(segments)
		pts = append(pts, [2]float32{
			center.X + radius*float32(math.Cos(angle)),
			center.Y + radius*float32(math.Sin(angle)),
		})
	}
	idx := make([]uint32, 0, segments*3)
	for i := range segments {
		next := (i + 1) % segments
		idx = append(idx, 0, uint32(1+i), uint32(1+next))
	}
	d.appendShape(pts, col, idx)
}

// Circle draws a circle outline as a ring of stroked segments.
func (d *Drawing) Circle(center Point, radius, thickness float32, segments int, col Color) {
	if radius <= 0 {
		return
	}
	if segments < 3 {
		segments = 3
	}
	prev := Pt(center.X+radius, center.Y)
	for i := 1; i <= segments; i++ {
		angle := 2 * math.Pi * float64(i) / float64(segments)
		next := Pt(
			center.X+radius*float32(math.Cos(angle)),
			center.Y+radius*float32(math.Sin(angle)),
		)
		d.Line(prev, next, thickness, col)
		prev = next
	}
}
