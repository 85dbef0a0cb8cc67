// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"math"
	"testing"
)

func TestRectXYWH(t *testing.T) {
	r := RectXYWH(10, 20, 30, 40)
	if r.Min != Pt(10, 20) || r.Max != Pt(40, 60) {
		t.Errorf("rect = %+v", r)
	}
	if r.W() != 30 || r.H() != 40 {
		t.Errorf("W, H = %v, %v, want 30, 40", r.W(), r.H())
	}
}

func TestRectEmpty(t *testing.T) {
	tests := []struct {
		name string
		r    Rect
		want bool
	}{
		{"normal", RectXYWH(0, 0, 10, 10), false},
		{"zero width", RectXYWH(5, 5, 0, 10), true},
		{"zero height", RectXYWH(5, 5, 10, 0), true},
		{"inverted", Rect{Min: Pt(10, 10), Max: Pt(0, 0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLinearToSRGB(t *testing.T) {
	tests := []struct {
		in, want float32
	}{
		{0, 0},
		{1, 1},
		{-0.5, 0},
		{2, 1},
		{0.001, 0.01292},
		{0.5, 0.735357},
	}
	for _, tt := range tests {
		got := linearToSRGB(tt.in)
		if math.Abs(float64(got-tt.want)) > 1e-4 {
			t.Errorf("linearToSRGB(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestColorToSRGBKeepsAlpha(t *testing.T) {
	c := RGBA(0.5, 0.25, 0.75, 0.5).toSRGB()
	if c.A != 0.5 {
		t.Errorf("alpha = %v, want 0.5 unchanged", c.A)
	}
	if c.R <= 0.5 {
		t.Errorf("R = %v, want encoded above linear value", c.R)
	}
}

func TestGrowSize(t *testing.T) {
	tests := []struct {
		in, want uint64
	}{
		{0, 4096},
		{1, 4096},
		{4096, 4096},
		{4097, 8192},
		{100000, 131072},
	}
	for _, tt := range tests {
		if got := growSize(tt.in); got != tt.want {
			t.Errorf("growSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
