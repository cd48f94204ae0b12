// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package copybit

import (
	"fmt"
	"image"

	"github.com/gogpu/copybit/format"
	"github.com/gogpu/copybit/internal/geom"
	"github.com/gogpu/copybit/internal/resolve"
)

// Format is a portable pixel format.
type Format = format.Format

// Pixel formats.
const (
	RGBA8888 = format.RGBA8888
	RGBX8888 = format.RGBX8888
	RGB888   = format.RGB888
	RGB565   = format.RGB565
	BGRA8888 = format.BGRA8888
	RGBA5551 = format.RGBA5551
	RGBA4444 = format.RGBA4444

	YCbCr422SP = format.YCbCr422SP
	YCrCb420SP = format.YCrCb420SP
	YCbCr422P  = format.YCbCr422P
	YCbCr420P  = format.YCbCr420P
	YCbCr422I  = format.YCbCr422I
	YCbCr420I  = format.YCbCr420I
	CbYCrY422I = format.CbYCrY422I
	CbYCrY420I = format.CbYCrY420I
	YCbCr420SP = format.YCbCr420SP
	YCrCb422SP = format.YCrCb422SP

	CustomYCbCr420SP = format.CustomYCbCr420SP
	CustomYCbCr422I  = format.CustomYCbCr422I
	CustomCbYCrY422I = format.CustomCbYCrY422I
	CustomYCrCb420SP = format.CustomYCrCb420SP
)

// Transform is the orientation bitset applied by the next blit.
type Transform = geom.Transform

// Transform bits.
const (
	FlipH  = geom.FlipH
	FlipV  = geom.FlipV
	Rot90  = geom.Rot90
	Rot180 = geom.Rot180
	Rot270 = geom.Rot270
	Dither = geom.Dither
)

// CanAccelerate reports whether images of format f can be blitted by the
// engine as a source. Compositors use it to route layers.
func CanAccelerate(f Format) bool {
	return format.CanAccelerate(f)
}

// Handle is the buffer an image lives in.
type Handle struct {
	// MemoryID identifies the buffer's memory for the physical query,
	// typically the producer's file descriptor.
	MemoryID int
}

// Image describes one side of a blit. It is owned by the caller and read
// only for the duration of the call.
type Image struct {
	Width  int
	Height int
	Format Format

	// Pixels is the CPU mapping of the buffer, starting at Offset.
	// Vendor formats hold physical plane addresses here instead.
	Pixels []byte

	// Offset is the byte offset of the image inside its buffer.
	Offset int

	// PhysAddr is the physical address of the first pixel, 0 if unknown.
	PhysAddr uint64

	// Handle may be nil.
	Handle *Handle
}

// Bounds returns the full frame of img.
func (img *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, img.Width, img.Height)
}

func (img *Image) validate(side string) error {
	if img == nil {
		return fmt.Errorf("%w: nil %s image", ErrInvalidParameter, side)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: %s image %dx%d", ErrInvalidParameter, side, img.Width, img.Height)
	}
	return nil
}

func (img *Image) descriptor() resolve.Image {
	r := resolve.Image{
		Width:    img.Width,
		Height:   img.Height,
		Format:   img.Format,
		Pixels:   img.Pixels,
		Offset:   img.Offset,
		PhysAddr: img.PhysAddr,
	}
	if img.Handle != nil {
		r.MemoryID = img.Handle.MemoryID
		r.HasMemoryID = true
	}
	return r
}
