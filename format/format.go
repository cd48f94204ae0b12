// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package format is the pixel format catalog of the copybit engine.
//
// Two tables live here. The portable table maps the format identifiers that
// layer producers hand in (the gralloc/copybit numbering) to the hardware
// format the post-processor is programmed with, the staging frame size rule,
// and the zero-copy pointer convention some producers use. The hardware table
// (see hw.go) describes each post-processor format: bit depth, plane count and
// the width/height alignment the unit requires.
//
// Every switch over formats that the engine needs is answered by one of these
// two tables.
package format

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when a format has no hardware mapping.
var ErrUnsupportedFormat = errors.New("format: unsupported pixel format")

// Format is a portable pixel format identifier.
type Format int32

// Portable formats. Values match the copybit/gralloc numbering so that
// descriptors coming from existing producers can be passed through unchanged.
const (
	RGBA8888 Format = 0x01
	RGBX8888 Format = 0x02
	RGB888   Format = 0x03
	RGB565   Format = 0x04
	BGRA8888 Format = 0x05
	RGBA5551 Format = 0x06
	RGBA4444 Format = 0x07

	YCbCr422SP Format = 0x10
	YCrCb420SP Format = 0x11
	YCbCr422P  Format = 0x12
	YCbCr420P  Format = 0x13
	YCbCr422I  Format = 0x14
	YCbCr420I  Format = 0x15
	CbYCrY422I Format = 0x16
	CbYCrY420I Format = 0x17
	YCbCr420SP Format = 0x21
	YCrCb422SP Format = 0x23

	// Vendor formats whose buffers carry physical plane addresses instead
	// of pixels. Video decoders and the camera produce them.
	CustomYCbCr420SP Format = 0x100
	CustomYCbCr422I  Format = 0x101
	CustomCbYCrY422I Format = 0x102
	CustomYCrCb420SP Format = 0x103
)

// Embedding describes where a zero-copy producer stores physical plane
// addresses inside the buffer's CPU-visible memory.
type Embedding uint8

const (
	// EmbedNone means the buffer holds pixels.
	EmbedNone Embedding = iota

	// EmbedLumaChroma stores two little-endian 32-bit physical addresses,
	// luma at byte 0 and interleaved chroma at byte 4.
	EmbedLumaChroma

	// EmbedLuma stores one little-endian 32-bit physical address at the
	// buffer's byte offset.
	EmbedLuma
)

// frameRule selects how many bytes a full frame occupies.
type frameRule uint8

const (
	frameNone frameRule = iota // not stageable
	frame32                    // 4 bytes per pixel
	frame16                    // 2 bytes per pixel
	frame420                   // luma plus two quarter-size chroma planes
)

type descriptor struct {
	name     string
	hw       FourCC
	frame    frameRule
	sourceOK bool
	embed    Embedding
}

// catalog is the portable format table. A zero hw value means the
// post-processor cannot read or write the format.
var catalog = map[Format]descriptor{
	RGBA8888: {name: "RGBA_8888", hw: FourCCRGB32, frame: frame32},
	RGBX8888: {name: "RGBX_8888", hw: FourCCRGB32},
	RGB888:   {name: "RGB_888"},
	RGB565:   {name: "RGB_565", hw: FourCCRGB565, frame: frame16, sourceOK: true},
	BGRA8888: {name: "BGRA_8888", hw: FourCCRGB32, frame: frame32},
	RGBA5551: {name: "RGBA_5551", frame: frame16},
	RGBA4444: {name: "RGBA_4444", frame: frame16},

	YCbCr422SP: {name: "YCbCr_422_SP", hw: FourCCNV16, frame: frame16, sourceOK: true},
	YCrCb422SP: {name: "YCrCb_422_SP", hw: FourCCNV61, sourceOK: true},
	YCbCr420SP: {name: "YCbCr_420_SP", hw: FourCCNV12, frame: frame420, sourceOK: true},
	YCrCb420SP: {name: "YCrCb_420_SP", hw: FourCCNV21, frame: frame420, sourceOK: true},
	YCbCr422P:  {name: "YCbCr_422_P", hw: FourCCYUV422P, sourceOK: true},
	YCbCr420P:  {name: "YCbCr_420_P", hw: FourCCYUV420, frame: frame420, sourceOK: true},
	YCbCr422I:  {name: "YCbCr_422_I", hw: FourCCYUYV, frame: frame16, sourceOK: true},
	CbYCrY422I: {name: "CbYCrY_422_I", hw: FourCCUYVY, frame: frame16, sourceOK: true},
	YCbCr420I:  {name: "YCbCr_420_I"},
	CbYCrY420I: {name: "CbYCrY_420_I"},

	CustomYCbCr420SP: {name: "CUSTOM_YCbCr_420_SP", hw: FourCCNV12T, frame: frame420, sourceOK: true, embed: EmbedLumaChroma},
	CustomYCrCb420SP: {name: "CUSTOM_YCrCb_420_SP", hw: FourCCNV21, frame: frame420, sourceOK: true, embed: EmbedLumaChroma},
	CustomYCbCr422I:  {name: "CUSTOM_YCbCr_422_I", hw: FourCCYUYV, frame: frame16, sourceOK: true, embed: EmbedLuma},
	CustomCbYCrY422I: {name: "CUSTOM_CbYCrY_422_I", hw: FourCCUYVY, frame: frame16, sourceOK: true, embed: EmbedLuma},
}

// Info is the hardware view of a portable format.
type Info struct {
	// Bits is the number of bits per pixel group averaged over all planes.
	Bits int

	// Planes is the number of separately addressed planes.
	Planes int

	// HW is the post-processor format code.
	HW FourCC
}

// Lookup returns the hardware view of f.
// It fails with ErrUnsupportedFormat when the post-processor has no
// mapping for f.
func Lookup(f Format) (Info, error) {
	d, ok := catalog[f]
	if !ok || d.hw == 0 {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}
	hw, _ := d.hw.Info()
	return Info{Bits: hw.Bits, Planes: hw.Planes, HW: d.hw}, nil
}

// CanAccelerate reports whether f can be the source of a hardware blit.
// This is the fast check run before any hardware or memory is touched.
//
// RGBA/BGRA 8888 sources are refused even though the unit can write them:
// the unit ignores per-pixel alpha, so those layers belong to the blender.
func CanAccelerate(f Format) bool {
	d, ok := catalog[f]
	return ok && d.hw != 0 && d.sourceOK
}

// CanStage reports whether f can be copied through a staging buffer,
// either as a source or as a destination.
func CanStage(f Format) bool {
	d, ok := catalog[f]
	return ok && d.frame != frameNone && d.embed == EmbedNone
}

// FrameSize returns the number of bytes of a full width×height frame in
// format f, or 0 when the catalog has no size rule for f.
func FrameSize(f Format, width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	size := width * height
	switch catalog[f].frame {
	case frame32:
		return size * 4
	case frame16:
		return size * 2
	case frame420:
		return size + 2*(size/4)
	default:
		return 0
	}
}

// Embedding returns the zero-copy pointer convention of f.
func (f Format) Embedding() Embedding {
	return catalog[f].embed
}

// String returns the copybit name of the format.
func (f Format) String() string {
	if d, ok := catalog[f]; ok {
		return d.name
	}
	return fmt.Sprintf("Format(%#x)", int32(f))
}
