// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package emulator

import (
	"encoding/binary"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/copybit/format"
)

// execute runs the scale and rotation of t for same-format RGB
// transactions and reports whether pixels were written. Other formats are
// accepted but only recorded.
func execute(t Transaction, src, dst []byte) bool {
	if t.Source.FourCC != t.Framebuffer.FourCC {
		return false
	}
	var bpp int
	switch t.Source.FourCC {
	case format.FourCCRGB32:
		bpp = 4
	case format.FourCCRGB565:
		bpp = 2
	default:
		return false
	}

	frame := realFrame(t.Framebuffer.PixFormat, t.Rotation)
	s := &rawImage{pix: src, w: t.Source.Width, h: t.Source.Height, bpp: bpp}
	d := &rawImage{pix: dst, w: frame.Width, h: frame.Height, bpp: bpp}
	win := realWindow(t.Window, t.Rotation)

	draw.NearestNeighbor.Transform(d, affine(t.Crop, win, t.Rotation), s, t.Crop, draw.Src, nil)
	return true
}

// realWindow maps a window programmed in the exchanged frame of a 90° or
// 270° transaction back to the destination memory's coordinates.
func realWindow(w image.Rectangle, deg int) image.Rectangle {
	if deg != 90 && deg != 270 {
		return w
	}
	return image.Rect(w.Min.Y, w.Min.X, w.Min.Y+w.Dy(), w.Min.X+w.Dx())
}

// affine returns the source-to-destination matrix taking crop onto win,
// rotated clockwise by deg.
func affine(crop, win image.Rectangle, deg int) f64.Aff3 {
	cx, cy := float64(crop.Min.X), float64(crop.Min.Y)
	sw, sh := float64(crop.Dx()), float64(crop.Dy())
	rx, ry := float64(win.Min.X), float64(win.Min.Y)
	rw, rh := float64(win.Dx()), float64(win.Dy())

	switch deg {
	case 90:
		// Source top row lands on the right column.
		return f64.Aff3{
			0, -rw / sh, rx + rw + rw/sh*cy,
			rh / sw, 0, ry - rh/sw*cx,
		}
	case 180:
		return f64.Aff3{
			-rw / sw, 0, rx + rw + rw/sw*cx,
			0, -rh / sh, ry + rh + rh/sh*cy,
		}
	case 270:
		return f64.Aff3{
			0, rw / sh, rx - rw/sh*cy,
			-rh / sw, 0, ry + rh + rh/sw*cx,
		}
	default:
		return f64.Aff3{
			rw / sw, 0, rx - rw/sw*cx,
			0, rh / sh, ry - rh/sh*cy,
		}
	}
}

// rawImage is a packed little-endian pixel buffer whose values are moved
// untouched: the raw word travels in the red (low 16 bits) and green (high
// 16 bits) channels of an opaque color.RGBA64.
type rawImage struct {
	pix  []byte
	w, h int
	bpp  int
}

func (r *rawImage) ColorModel() color.Model { return color.RGBA64Model }

func (r *rawImage) Bounds() image.Rectangle { return image.Rect(0, 0, r.w, r.h) }

func (r *rawImage) offset(x, y int) int {
	if x < 0 || y < 0 || x >= r.w || y >= r.h {
		return -1
	}
	i := (y*r.w + x) * r.bpp
	if i+r.bpp > len(r.pix) {
		return -1
	}
	return i
}

func (r *rawImage) At(x, y int) color.Color {
	i := r.offset(x, y)
	if i < 0 {
		return color.RGBA64{}
	}
	var v uint32
	if r.bpp == 4 {
		v = binary.LittleEndian.Uint32(r.pix[i:])
	} else {
		v = uint32(binary.LittleEndian.Uint16(r.pix[i:]))
	}
	return color.RGBA64{R: uint16(v), G: uint16(v >> 16), A: 0xffff}
}

func (r *rawImage) Set(x, y int, c color.Color) {
	i := r.offset(x, y)
	if i < 0 {
		return
	}
	lo, hi, _, _ := c.RGBA()
	if r.bpp == 4 {
		binary.LittleEndian.PutUint32(r.pix[i:], lo&0xffff|hi<<16)
	} else {
		binary.LittleEndian.PutUint16(r.pix[i:], uint16(lo))
	}
}
