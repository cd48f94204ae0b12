// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package fimc

import (
	"fmt"
	"image"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/format"
	"github.com/gogpu/copybit/internal/ioc"
	"github.com/gogpu/copybit/internal/v4l2"
)

// Engine is the post-processor's V4L2 output node.
type Engine struct {
	fd   int
	path string
}

var _ backend.Engine = (*Engine)(nil)

// OpenEngine opens the node at path.
func OpenEngine(path string) (*Engine, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("fimc: open %s: %w", path, err)
	}
	return &Engine{fd: fd, path: path}, nil
}

func (e *Engine) ioctl(name string, req uintptr, arg unsafe.Pointer) error {
	if err := ioc.Do(e.fd, req, arg); err != nil {
		return fmt.Errorf("%s %s: %w", e.path, name, err)
	}
	return nil
}

// Capabilities implements backend.Engine.
func (e *Engine) Capabilities() (backend.Caps, error) {
	var c v4l2.Capability
	if err := e.ioctl("VIDIOC_QUERYCAP", v4l2.VidiocQueryCap, unsafe.Pointer(&c)); err != nil {
		return backend.Caps{}, err
	}
	return backend.Caps{
		Driver:      unix.ByteSliceToString(c.Driver[:]),
		Card:        unix.ByteSliceToString(c.Card[:]),
		Streaming:   c.Capabilities&v4l2.CapStreaming != 0,
		VideoOutput: c.Capabilities&v4l2.CapVideoOutput != 0,
	}, nil
}

// SourceFormat implements backend.Engine.
func (e *Engine) SourceFormat() (backend.PixFormat, error) {
	f := v4l2.Format{Type: v4l2.BufTypeVideoOutput}
	if err := e.ioctl("VIDIOC_G_FMT", v4l2.VidiocGetFormat, unsafe.Pointer(&f)); err != nil {
		return backend.PixFormat{}, err
	}
	pix := f.Pix()
	return backend.PixFormat{
		Width:  int(pix.Width),
		Height: int(pix.Height),
		FourCC: format.FourCC(pix.PixelFormat),
	}, nil
}

// Control implements backend.Engine.
func (e *Engine) Control(id uint32) (int32, error) {
	c := v4l2.Control{ID: id}
	if err := e.ioctl("VIDIOC_G_CTRL", v4l2.VidiocGetControl, unsafe.Pointer(&c)); err != nil {
		return 0, err
	}
	return c.Value, nil
}

// SetControl implements backend.Engine.
func (e *Engine) SetControl(id uint32, value int32) error {
	c := v4l2.Control{ID: id, Value: value}
	return e.ioctl("VIDIOC_S_CTRL", v4l2.VidiocSetControl, unsafe.Pointer(&c))
}

// SetSourceFormat implements backend.Engine.
func (e *Engine) SetSourceFormat(pf backend.PixFormat) error {
	f := v4l2.Format{Type: v4l2.BufTypeVideoOutput}
	pix := f.Pix()
	pix.Width = uint32(pf.Width)
	pix.Height = uint32(pf.Height)
	pix.PixelFormat = uint32(pf.FourCC)
	pix.Field = v4l2.FieldNone
	return e.ioctl("VIDIOC_S_FMT", v4l2.VidiocSetFormat, unsafe.Pointer(&f))
}

// SetSourceCrop implements backend.Engine.
func (e *Engine) SetSourceCrop(r image.Rectangle) error {
	c := v4l2.Crop{Type: v4l2.BufTypeVideoOutput, C: rect(r)}
	return e.ioctl("VIDIOC_S_CROP", v4l2.VidiocSetCrop, unsafe.Pointer(&c))
}

// RequestBuffers implements backend.Engine.
func (e *Engine) RequestBuffers(count int) error {
	rb := v4l2.RequestBuffers{
		Count:  uint32(count),
		Type:   v4l2.BufTypeVideoOutput,
		Memory: v4l2.MemoryUserPtr,
	}
	return e.ioctl("VIDIOC_REQBUFS", v4l2.VidiocRequestBuffers, unsafe.Pointer(&rb))
}

// SetFramebuffer implements backend.Engine. The current framebuffer is read
// first so that capability and flag fields are written back unchanged.
func (e *Engine) SetFramebuffer(fb backend.Framebuffer) error {
	var f v4l2.Framebuffer
	if err := e.ioctl("VIDIOC_G_FBUF", v4l2.VidiocGetFramebuffer, unsafe.Pointer(&f)); err != nil {
		return err
	}
	f.Base = uintptr(fb.Base)
	f.Fmt.Width = uint32(fb.Width)
	f.Fmt.Height = uint32(fb.Height)
	f.Fmt.PixelFormat = uint32(fb.FourCC)
	return e.ioctl("VIDIOC_S_FBUF", v4l2.VidiocSetFramebuffer, unsafe.Pointer(&f))
}

// SetWindow implements backend.Engine.
func (e *Engine) SetWindow(r image.Rectangle) error {
	f := v4l2.Format{Type: v4l2.BufTypeVideoOverlay}
	f.Win().W = rect(r)
	return e.ioctl("VIDIOC_S_FMT(overlay)", v4l2.VidiocSetFormat, unsafe.Pointer(&f))
}

// StreamOn implements backend.Engine.
func (e *Engine) StreamOn() error {
	typ := int32(v4l2.BufTypeVideoOutput)
	return e.ioctl("VIDIOC_STREAMON", v4l2.VidiocStreamOn, unsafe.Pointer(&typ))
}

// Queue implements backend.Engine. The driver completes the conversion
// before the ioctl returns.
func (e *Engine) Queue(buf backend.DMABuffer) error {
	payload := new(v4l2.FIMCBuffer)
	for i := range buf.Base {
		payload.Base[i] = uint32(buf.Base[i])
		payload.Length[i] = uintptr(buf.Length[i])
	}

	var pin runtime.Pinner
	pin.Pin(payload)
	defer pin.Unpin()

	b := v4l2.Buffer{
		Type:   v4l2.BufTypeVideoOutput,
		Memory: v4l2.MemoryUserPtr,
		M:      uintptr(unsafe.Pointer(payload)),
	}
	return e.ioctl("VIDIOC_QBUF", v4l2.VidiocQueueBuffer, unsafe.Pointer(&b))
}

// StreamOff implements backend.Engine.
func (e *Engine) StreamOff() error {
	typ := int32(v4l2.BufTypeVideoOutput)
	return e.ioctl("VIDIOC_STREAMOFF", v4l2.VidiocStreamOff, unsafe.Pointer(&typ))
}

// Close implements backend.Engine.
func (e *Engine) Close() error {
	if e.fd < 0 {
		return nil
	}
	err := unix.Close(e.fd)
	e.fd = -1
	return err
}

func rect(r image.Rectangle) v4l2.Rect {
	return v4l2.Rect{
		Left:   int32(r.Min.X),
		Top:    int32(r.Min.Y),
		Width:  uint32(r.Dx()),
		Height: uint32(r.Dy()),
	}
}
