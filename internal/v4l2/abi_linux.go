// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package v4l2

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gogpu/copybit/internal/ioc"
)

// Struct layouts follow the kernel headers of the FIMC-era kernels. Field
// types that differ between 32- and 64-bit kernels (pointers, unsigned long,
// struct timeval) are declared with uintptr or x/sys types so that the same
// declarations match both ABIs.

// Capability is struct v4l2_capability.
type Capability struct {
	Driver       [16]byte
	Card         [32]byte
	BusInfo      [32]byte
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
	Reserved     [3]uint32
}

// PixFormat is struct v4l2_pix_format as defined before the 3.x
// extensions; the FIMC driver's framebuffer ioctls are sized by it.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
	Priv         uint32
}

// Rect is struct v4l2_rect.
type Rect struct {
	Left   int32
	Top    int32
	Width  uint32
	Height uint32
}

// Window is struct v4l2_window.
type Window struct {
	W           Rect
	Field       uint32
	Chromakey   uint32
	Clips       uintptr
	ClipCount   uint32
	Bitmap      uintptr
	GlobalAlpha uint8
}

// Format is struct v4l2_format. The 200 byte union is declared as uint64
// words so that it is pointer aligned on every architecture, like the C
// union that contains struct v4l2_window.
type Format struct {
	Type uint32
	Raw  [25]uint64
}

// Pix returns the union viewed as struct v4l2_pix_format.
func (f *Format) Pix() *PixFormat {
	return (*PixFormat)(unsafe.Pointer(&f.Raw))
}

// Win returns the union viewed as struct v4l2_window.
func (f *Format) Win() *Window {
	return (*Window)(unsafe.Pointer(&f.Raw))
}

// Crop is struct v4l2_crop.
type Crop struct {
	Type uint32
	C    Rect
}

// RequestBuffers is struct v4l2_requestbuffers.
type RequestBuffers struct {
	Count    uint32
	Type     uint32
	Memory   uint32
	Reserved [2]uint32
}

// Timecode is struct v4l2_timecode.
type Timecode struct {
	Type     uint32
	Flags    uint32
	Frames   uint8
	Seconds  uint8
	Minutes  uint8
	Hours    uint8
	Userbits [4]uint8
}

// Buffer is struct v4l2_buffer. M holds the offset/userptr union.
type Buffer struct {
	Index     uint32
	Type      uint32
	BytesUsed uint32
	Flags     uint32
	Field     uint32
	Timestamp unix.Timeval
	Timecode  Timecode
	Sequence  uint32
	Memory    uint32
	M         uintptr
	Length    uint32
	Input     uint32
	Reserved  uint32
}

// Framebuffer is struct v4l2_framebuffer.
type Framebuffer struct {
	Capability uint32
	Flags      uint32
	Base       uintptr
	Fmt        PixFormat
}

// Control is struct v4l2_control.
type Control struct {
	ID    uint32
	Value int32
}

// FIMCBuffer is struct fimc_buf, the userptr payload of a queued output
// buffer. Base carries the physical plane addresses.
type FIMCBuffer struct {
	Base   [3]uint32
	Length [3]uintptr
}

// Request numbers.
var (
	VidiocQueryCap       = ioc.IOR('V', 0, unsafe.Sizeof(Capability{}))
	VidiocGetFormat      = ioc.IOWR('V', 4, unsafe.Sizeof(Format{}))
	VidiocSetFormat      = ioc.IOWR('V', 5, unsafe.Sizeof(Format{}))
	VidiocRequestBuffers = ioc.IOWR('V', 8, unsafe.Sizeof(RequestBuffers{}))
	VidiocGetFramebuffer = ioc.IOR('V', 10, unsafe.Sizeof(Framebuffer{}))
	VidiocSetFramebuffer = ioc.IOW('V', 11, unsafe.Sizeof(Framebuffer{}))
	VidiocQueueBuffer    = ioc.IOWR('V', 15, unsafe.Sizeof(Buffer{}))
	VidiocStreamOn       = ioc.IOW('V', 18, unsafe.Sizeof(int32(0)))
	VidiocStreamOff      = ioc.IOW('V', 19, unsafe.Sizeof(int32(0)))
	VidiocGetControl     = ioc.IOWR('V', 27, unsafe.Sizeof(Control{}))
	VidiocSetControl     = ioc.IOWR('V', 28, unsafe.Sizeof(Control{}))
	VidiocSetCrop        = ioc.IOW('V', 60, unsafe.Sizeof(Crop{}))
)
