// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package format

import "golang.org/x/exp/constraints"

// FourCC is a post-processor (V4L2) pixel format code.
type FourCC uint32

// Post-processor formats.
const (
	FourCCRGB32   FourCC = 'R' | 'G'<<8 | 'B'<<16 | '4'<<24
	FourCCRGB565  FourCC = 'R' | 'G'<<8 | 'B'<<16 | 'P'<<24
	FourCCNV12    FourCC = 'N' | 'V'<<8 | '1'<<16 | '2'<<24
	FourCCNV12T   FourCC = 'T' | 'V'<<8 | '1'<<16 | '2'<<24
	FourCCNV21    FourCC = 'N' | 'V'<<8 | '2'<<16 | '1'<<24
	FourCCNV16    FourCC = 'N' | 'V'<<8 | '1'<<16 | '6'<<24
	FourCCNV61    FourCC = 'N' | 'V'<<8 | '6'<<16 | '1'<<24
	FourCCYUV420  FourCC = 'Y' | 'U'<<8 | '1'<<16 | '2'<<24
	FourCCYUV422P FourCC = '4' | '2'<<8 | '2'<<16 | 'P'<<24
	FourCCYUYV    FourCC = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	FourCCUYVY    FourCC = 'U' | 'Y'<<8 | 'V'<<16 | 'Y'<<24
)

// Revision50 is the FIMC revision with relaxed width alignment and
// source crop offsets.
const Revision50 = 0x50

// HWInfo describes a post-processor format.
type HWInfo struct {
	Name   string
	Bits   int
	Planes int
	YUV    bool

	heightAlign int // all revisions
	widthAlign  int // before Revision50
}

// hwTable is indexed by FourCC. Alignments are powers of two.
var hwTable = map[FourCC]HWInfo{
	FourCCRGB32:   {Name: "RGB32", Bits: 32, Planes: 1, heightAlign: 1, widthAlign: 4},
	FourCCRGB565:  {Name: "RGB565", Bits: 16, Planes: 1, heightAlign: 1, widthAlign: 8},
	FourCCYUYV:    {Name: "YUYV", Bits: 16, Planes: 1, YUV: true, heightAlign: 1, widthAlign: 4},
	FourCCUYVY:    {Name: "UYVY", Bits: 16, Planes: 1, YUV: true, heightAlign: 1, widthAlign: 4},
	FourCCNV16:    {Name: "NV16", Bits: 16, Planes: 2, YUV: true, heightAlign: 1, widthAlign: 8},
	FourCCNV61:    {Name: "NV61", Bits: 16, Planes: 2, YUV: true, heightAlign: 1, widthAlign: 8},
	FourCCYUV422P: {Name: "YUV422P", Bits: 16, Planes: 3, YUV: true, heightAlign: 1, widthAlign: 16},
	FourCCNV12:    {Name: "NV12", Bits: 12, Planes: 2, YUV: true, heightAlign: 2, widthAlign: 8},
	FourCCNV12T:   {Name: "NV12T", Bits: 12, Planes: 2, YUV: true, heightAlign: 2, widthAlign: 8},
	FourCCNV21:    {Name: "NV21", Bits: 12, Planes: 2, YUV: true, heightAlign: 2, widthAlign: 8},
	FourCCYUV420:  {Name: "YUV420", Bits: 12, Planes: 3, YUV: true, heightAlign: 2, widthAlign: 16},
}

// Info returns the descriptor of c.
func (c FourCC) Info() (HWInfo, bool) {
	hw, ok := hwTable[c]
	return hw, ok
}

// String returns the four character code.
func (c FourCC) String() string {
	b := []byte{byte(c), byte(c >> 8), byte(c >> 16), byte(c >> 24)}
	for i, ch := range b {
		if ch < ' ' || ch > '~' {
			b[i] = '?'
		}
	}
	return string(b)
}

// alignDown rounds n down to a positive multiple m.
func alignDown[T constraints.Integer](n, m T) T {
	if m <= 1 {
		return n
	}
	return n - n%m
}

// AlignWidth rounds a working width down to what the unit of revision rev
// accepts for format c. Unknown formats are returned unchanged. Widths can
// be plain ints or the unsigned fields of the kernel structs.
func AlignWidth[T constraints.Integer](rev uint32, c FourCC, width T) T {
	hw, ok := hwTable[c]
	if !ok {
		return width
	}
	if rev == Revision50 {
		if hw.YUV {
			return alignDown(width, 2)
		}
		return width
	}
	return alignDown(width, T(hw.widthAlign))
}

// AlignHeight rounds a working height down to what the unit accepts for
// format c. 4:2:0 formats need an even height on every revision.
func AlignHeight[T constraints.Integer](c FourCC, height T) T {
	hw, ok := hwTable[c]
	if !ok {
		return height
	}
	return alignDown(height, T(hw.heightAlign))
}

// Plane is one contiguous component of a frame.
type Plane struct {
	Offset int
	Length int
}

// MaxPlanes is the number of addresses a buffer descriptor carries.
const MaxPlanes = 3

// Layout returns the plane offsets of a full width×height frame in
// format c, relative to the luma base. Unused planes are zero.
func Layout(c FourCC, width, height int) [MaxPlanes]Plane {
	var p [MaxPlanes]Plane
	hw, ok := hwTable[c]
	if !ok || width <= 0 || height <= 0 {
		return p
	}
	luma := width * height
	switch hw.Planes {
	case 1:
		p[0] = Plane{Offset: 0, Length: luma * hw.Bits / 8}
	case 2:
		chroma := luma
		if hw.Bits == 12 {
			chroma = luma / 2
		}
		p[0] = Plane{Offset: 0, Length: luma}
		p[1] = Plane{Offset: luma, Length: chroma}
	case 3:
		chroma := luma / 2
		if hw.Bits == 12 {
			chroma = luma / 4
		}
		p[0] = Plane{Offset: 0, Length: luma}
		p[1] = Plane{Offset: luma, Length: chroma}
		p[2] = Plane{Offset: luma + chroma, Length: chroma}
	}
	return p
}
