// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package geom maps destination clip regions back to source sampling
// windows. Everything here is pure arithmetic on image.Rectangle.
package geom

import "image"

// Transform is the copybit transform bitset.
type Transform uint32

// Transform bits. The rotation values are combinations of the flip bits
// and the 90° bit, so setting a rotation replaces any previous flip.
const (
	FlipH  Transform = 0x1
	FlipV  Transform = 0x2
	Rot90  Transform = 0x4
	Rot180 Transform = FlipH | FlipV
	Rot270 Transform = Rot90 | FlipH | FlipV
	Dither Transform = 0x8

	// OrientationMask covers the rotation and flip bits.
	OrientationMask Transform = 0x7
)

// Degrees returns the rotation the post-processor is programmed with.
// Lone flips and flip combinations that are not a rotation return 0.
func (t Transform) Degrees() int {
	switch t & OrientationMask {
	case Rot90:
		return 90
	case Rot180:
		return 180
	case Rot270:
		return 270
	default:
		return 0
	}
}

// Swapped reports whether the transform exchanges width and height.
func (t Transform) Swapped() bool {
	return t&Rot90 != 0
}

// Intersect returns the overlap of a and b, or the zero rectangle when they
// do not overlap.
func Intersect(a, b image.Rectangle) image.Rectangle {
	return a.Intersect(b)
}

// SubRects computes the pair of rectangles one hardware transaction covers
// for a single clip region.
//
// dst and src are the destination and source rectangles of the whole blit;
// srcSize is the full source image size used for flips. The destination
// sub-rectangle is clip∩dst. The source sub-rectangle maps the offset of
// that area inside dst back into src: first the 90° remap, then scaling by
// src span over the unrotated dst span, then the flips.
//
// An empty dstSub means the region has nothing to draw.
func SubRects(t Transform, srcSize image.Point, src, dst, clip image.Rectangle) (srcSub, dstSub image.Rectangle) {
	c := clip.Intersect(dst)
	if c.Empty() {
		return image.Rectangle{}, image.Rectangle{}
	}

	var ox, oy, w, h, spanW, spanH int
	if t.Swapped() {
		ox = c.Min.Y - dst.Min.Y
		oy = dst.Max.X - c.Max.X
		w, h = c.Dy(), c.Dx()
		spanW, spanH = dst.Dy(), dst.Dx()
	} else {
		ox = c.Min.X - dst.Min.X
		oy = c.Min.Y - dst.Min.Y
		w, h = c.Dx(), c.Dy()
		spanW, spanH = dst.Dx(), dst.Dy()
	}

	ox, w = mulDiv(ox, w, src.Dx(), spanW)
	oy, h = mulDiv(oy, h, src.Dy(), spanH)

	x := src.Min.X + ox
	y := src.Min.Y + oy
	if t&FlipV != 0 {
		y = srcSize.Y - (y + h)
	}
	if t&FlipH != 0 {
		x = srcSize.X - (x + w)
	}

	srcSub = image.Rectangle{Min: image.Pt(x, y), Max: image.Pt(x+w, y+h)}
	return srcSub, c
}

// mulDiv scales an offset and a length by mul/div with truncation.
func mulDiv(off, n, mul, div int) (int, int) {
	if mul == div || div == 0 {
		return off, n
	}
	return int(int64(off) * int64(mul) / int64(div)), int(int64(n) * int64(mul) / int64(div))
}
