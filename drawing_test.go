// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import "testing"

// newTestDrawing builds a drawing without a pass; batching is pure CPU
// state until End.
func newTestDrawing() *Drawing {
	return &Drawing{width: 800, height: 600, blend: BlendPremultiplied}
}

func TestDrawingCoalescesSameState(t *testing.T) {
	d := newTestDrawing()
	d.RectFilled(RectXYWH(0, 0, 10, 10), ColorWhite)
	d.RectFilled(RectXYWH(20, 0, 10, 10), ColorBlack)

	if len(d.vertices) != 8 {
		t.Errorf("vertices = %d, want 8", len(d.vertices))
	}
	if len(d.indices) != 12 {
		t.Errorf("indices = %d, want 12", len(d.indices))
	}
	if len(d.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(d.batches))
	}
	b := d.batches[0]
	if b.firstIndex != 0 || b.indexCount != 12 {
		t.Errorf("batch spans [%d, %d), want [0, 12)", b.firstIndex, b.firstIndex+b.indexCount)
	}
}

func TestDrawingBreaksBatchOnBlendChange(t *testing.T) {
	d := newTestDrawing()
	d.RectFilled(RectXYWH(0, 0, 10, 10), ColorWhite)
	d.SetBlend(BlendNone)
	d.RectFilled(RectXYWH(20, 0, 10, 10), ColorWhite)

	if len(d.batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(d.batches))
	}
	if d.batches[0].blend != BlendPremultiplied || d.batches[1].blend != BlendNone {
		t.Errorf("blend modes = %v, %v", d.batches[0].blend, d.batches[1].blend)
	}
}

func TestDrawingBreaksBatchOnScissorChange(t *testing.T) {
	d := newTestDrawing()
	d.RectFilled(RectXYWH(0, 0, 10, 10), ColorWhite)
	d.SetScissor(0, 0, 100, 100)
	d.RectFilled(RectXYWH(20, 0, 10, 10), ColorWhite)
	d.ClearScissor()
	d.RectFilled(RectXYWH(40, 0, 10, 10), ColorWhite)

	if len(d.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(d.batches))
	}
	if !d.batches[1].hasScissor || d.batches[1].scissor != (scissorRect{w: 100, h: 100}) {
		t.Errorf("batch 1 scissor = %+v", d.batches[1])
	}
	if d.batches[2].hasScissor {
		t.Error("batch 2 kept a cleared scissor")
	}
}

func TestDrawingResumesCoalescingAfterRevert(t *testing.T) {
	d := newTestDrawing()
	d.RectFilled(RectXYWH(0, 0, 10, 10), ColorWhite)
	d.SetBlend(BlendPremultiplied) // no-op change
	d.RectFilled(RectXYWH(20, 0, 10, 10), ColorWhite)

	if len(d.batches) != 1 {
		t.Errorf("batches = %d, want 1 after identical state", len(d.batches))
	}
}

func TestDrawingEmptyRectSkipped(t *testing.T) {
	d := newTestDrawing()
	d.RectFilled(RectXYWH(5, 5, 0, 10), ColorWhite)
	if len(d.vertices) != 0 || len(d.batches) != 0 {
		t.Errorf("empty rect recorded %d vertices, %d batches", len(d.vertices), len(d.batches))
	}
}

func TestDrawingZeroLengthLineSkipped(t *testing.T) {
	d := newTestDrawing()
	d.Line(Pt(10, 10), Pt(10, 10), 2, ColorWhite)
	if len(d.vertices) != 0 || len(d.batches) != 0 {
		t.Errorf("zero-length line recorded %d vertices, %d batches", len(d.vertices), len(d.batches))
	}
}

func TestDrawingLineQuad(t *testing.T) {
	d := newTestDrawing()
	d.Line(Pt(0, 0), Pt(10, 0), 4, ColorWhite)

	if len(d.vertices) != 4 || len(d.indices) != 6 {
		t.Fatalf("got %d vertices, %d indices, want 4, 6", len(d.vertices), len(d.indices))
	}
	// A horizontal line extrudes vertically by half the thickness.
	if d.vertices[0].pos != [2]float32{0, 2} || d.vertices[3].pos != [2]float32{0, -2} {
		t.Errorf("extruded corners = %v, %v", d.vertices[0].pos, d.vertices[3].pos)
	}
}

func TestDrawingUVNormalizedToShapeBounds(t *testing.T) {
	d := newTestDrawing()
	d.RectFilled(RectXYWH(10, 20, 30, 40), ColorWhite)

	want := [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for i, v := range d.vertices {
		if v.uv != want[i] {
			t.Errorf("vertex %d uv = %v, want %v", i, v.uv, want[i])
		}
	}
}

func TestDrawingCircleFilledCounts(t *testing.T) {
	d := newTestDrawing()
	d.CircleFilled(Pt(100, 100), 50, 8, ColorWhite)

	if len(d.vertices) != 9 {
		t.Errorf("vertices = %d, want center + 8 rim", len(d.vertices))
	}
	if len(d.indices) != 24 {
		t.Errorf("indices = %d, want 8 triangles", len(d.indices))
	}
}

func TestDrawingCircleSegmentsClamped(t *testing.T) {
	d := newTestDrawing()
	d.CircleFilled(Pt(0, 0), 10, 1, ColorWhite)
	if len(d.vertices) != 4 {
		t.Errorf("vertices = %d, want clamp to 3 segments", len(d.vertices))
	}
}

func TestDrawingTriangleOutline(t *testing.T) {
	d := newTestDrawing()
	d.Triangle(Pt(0, 0), Pt(10, 0), Pt(5, 10), 1, ColorWhite)
	if len(d.vertices) != 12 || len(d.indices) != 18 {
		t.Errorf("got %d vertices, %d indices, want 3 stroked quads", len(d.vertices), len(d.indices))
	}
	if len(d.batches) != 1 {
		t.Errorf("batches = %d, want the edges coalesced", len(d.batches))
	}
}

func TestDrawingIndicesRebased(t *testing.T) {
	d := newTestDrawing()
	d.RectFilled(RectXYWH(0, 0, 10, 10), ColorWhite)
	d.TriangleFilled(Pt(0, 0), Pt(10, 0), Pt(5, 10), ColorWhite)

	if got := d.indices[6:]; got[0] != 4 || got[1] != 5 || got[2] != 6 {
		t.Errorf("second shape indices = %v, want offset by 4", got)
	}
}

func TestDrawingEmptyEndNoop(t *testing.T) {
	d := newTestDrawing()
	if err := d.End(); err != nil {
		t.Errorf("End() = %v, want nil for empty session", err)
	}
	if err := d.End(); err != nil {
		t.Errorf("second End() = %v, want nil", err)
	}
}
