// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package emulator

import (
	"fmt"
	"image"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/format"
	"github.com/gogpu/copybit/internal/v4l2"
)

// engineState is the programming latched by the unit between calls.
type engineState struct {
	src      backend.PixFormat
	crop     image.Rectangle
	fb       backend.Framebuffer
	window   image.Rectangle
	controls map[uint32]int32

	buffers   int
	streaming bool
}

// Engine is the post-processor node of a Machine.
type Engine struct {
	m      *Machine
	closed bool
}

var _ backend.Engine = (*Engine)(nil)

// do checks the handle, records v and returns the injected fault.
// On success the machine stays locked; the caller must call e.m.mu.Unlock.
func (e *Engine) do(v Verb) error {
	e.m.mu.Lock()
	if e.closed {
		e.m.mu.Unlock()
		return ErrClosed
	}
	if err := e.m.callLocked(v); err != nil {
		e.m.mu.Unlock()
		return err
	}
	return nil
}

// Capabilities implements backend.Engine.
func (e *Engine) Capabilities() (backend.Caps, error) {
	if err := e.do(VerbQueryCap); err != nil {
		return backend.Caps{}, err
	}
	defer e.m.mu.Unlock()
	return e.m.cfg.Caps, nil
}

// SourceFormat implements backend.Engine.
func (e *Engine) SourceFormat() (backend.PixFormat, error) {
	if err := e.do(VerbGetFormat); err != nil {
		return backend.PixFormat{}, err
	}
	defer e.m.mu.Unlock()
	return e.m.eng.src, nil
}

// Control implements backend.Engine. The version control reports
// Config.Revision.
func (e *Engine) Control(id uint32) (int32, error) {
	if err := e.do(VerbGetControl); err != nil {
		return 0, err
	}
	defer e.m.mu.Unlock()
	if id == v4l2.CIDFIMCVersion {
		return int32(e.m.cfg.Revision), nil
	}
	v, ok := e.m.eng.controls[id]
	if !ok {
		return 0, fmt.Errorf("%w: unknown control %#x", ErrBadState, id)
	}
	return v, nil
}

// SetControl implements backend.Engine.
func (e *Engine) SetControl(id uint32, value int32) error {
	if err := e.do(VerbSetControl); err != nil {
		return err
	}
	defer e.m.mu.Unlock()
	if id == v4l2.CIDRotation {
		switch value {
		case 0, 90, 180, 270:
		default:
			return fmt.Errorf("%w: rotation %d", ErrBadState, value)
		}
	}
	e.m.eng.controls[id] = value
	return nil
}

// SetSourceFormat implements backend.Engine.
func (e *Engine) SetSourceFormat(f backend.PixFormat) error {
	if err := e.do(VerbSetFormat); err != nil {
		return err
	}
	defer e.m.mu.Unlock()
	if e.m.eng.streaming {
		return fmt.Errorf("%w: format change while streaming", ErrBadState)
	}
	if _, ok := f.FourCC.Info(); !ok || f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: source format %v %dx%d", ErrBadState, f.FourCC, f.Width, f.Height)
	}
	e.m.eng.src = f
	return nil
}

// SetSourceCrop implements backend.Engine.
func (e *Engine) SetSourceCrop(r image.Rectangle) error {
	if err := e.do(VerbSetCrop); err != nil {
		return err
	}
	defer e.m.mu.Unlock()
	frame := image.Rect(0, 0, e.m.eng.src.Width, e.m.eng.src.Height)
	if r.Empty() || !r.In(frame) {
		return fmt.Errorf("%w: crop %v outside %v", ErrBadState, r, frame)
	}
	e.m.eng.crop = r
	return nil
}

// RequestBuffers implements backend.Engine.
func (e *Engine) RequestBuffers(count int) error {
	if err := e.do(VerbRequestBuffers); err != nil {
		return err
	}
	defer e.m.mu.Unlock()
	if e.m.eng.streaming {
		return fmt.Errorf("%w: request buffers while streaming", ErrBadState)
	}
	e.m.eng.buffers = count
	return nil
}

// SetFramebuffer implements backend.Engine.
func (e *Engine) SetFramebuffer(fb backend.Framebuffer) error {
	if err := e.do(VerbSetFramebuffer); err != nil {
		return err
	}
	defer e.m.mu.Unlock()
	if _, ok := fb.FourCC.Info(); !ok || fb.Width <= 0 || fb.Height <= 0 {
		return fmt.Errorf("%w: framebuffer %v %dx%d", ErrBadState, fb.FourCC, fb.Width, fb.Height)
	}
	e.m.eng.fb = fb
	return nil
}

// SetWindow implements backend.Engine.
func (e *Engine) SetWindow(r image.Rectangle) error {
	if err := e.do(VerbSetWindow); err != nil {
		return err
	}
	defer e.m.mu.Unlock()
	frame := image.Rect(0, 0, e.m.eng.fb.Width, e.m.eng.fb.Height)
	if r.Empty() || !r.In(frame) {
		return fmt.Errorf("%w: window %v outside %v", ErrBadState, r, frame)
	}
	e.m.eng.window = r
	return nil
}

// StreamOn implements backend.Engine.
func (e *Engine) StreamOn() error {
	if err := e.do(VerbStreamOn); err != nil {
		return err
	}
	defer e.m.mu.Unlock()
	if e.m.eng.buffers < 1 {
		return fmt.Errorf("%w: stream on without buffers", ErrBadState)
	}
	e.m.eng.streaming = true
	return nil
}

// Queue implements backend.Engine. The transaction is executed before
// Queue returns.
func (e *Engine) Queue(buf backend.DMABuffer) error {
	if err := e.do(VerbQueue); err != nil {
		return err
	}
	defer e.m.mu.Unlock()

	m := e.m
	if !m.eng.streaming {
		return fmt.Errorf("%w: queue while not streaming", ErrBadState)
	}

	t := Transaction{
		Source:      m.eng.src,
		Crop:        m.eng.crop,
		Framebuffer: m.eng.fb,
		Window:      m.eng.window,
		Rotation:    int(m.eng.controls[v4l2.CIDRotation]),
		Buffer:      buf,
	}
	m.txns = append(m.txns, t)
	last := &m.txns[len(m.txns)-1]

	var planes [format.MaxPlanes][]byte
	for i := range buf.Base {
		p, err := m.spanLocked(buf.Base[i], buf.Length[i])
		if err != nil {
			return fmt.Errorf("source plane %d: %w", i, err)
		}
		planes[i] = p
	}

	frame := realFrame(t.Framebuffer.PixFormat, t.Rotation)
	dst, err := m.spanLocked(t.Framebuffer.Base, frameBytes(frame))
	if err != nil {
		return fmt.Errorf("framebuffer: %w", err)
	}

	last.Executed = execute(t, planes[0], dst)
	return nil
}

// StreamOff implements backend.Engine.
func (e *Engine) StreamOff() error {
	if err := e.do(VerbStreamOff); err != nil {
		return err
	}
	defer e.m.mu.Unlock()
	e.m.eng.streaming = false
	return nil
}

// Close implements backend.Engine.
func (e *Engine) Close() error {
	if err := e.do(VerbCloseEngine); err != nil {
		return err
	}
	defer e.m.mu.Unlock()
	e.closed = true
	e.m.eng.streaming = false
	e.m.eng.buffers = 0
	return nil
}

// realFrame returns the geometry of the memory behind a framebuffer
// programmed for rotation deg. For 90° and 270° the unit is handed the
// frame with width and height exchanged.
func realFrame(fb backend.PixFormat, deg int) backend.PixFormat {
	if deg == 90 || deg == 270 {
		fb.Width, fb.Height = fb.Height, fb.Width
	}
	return fb
}

func frameBytes(f backend.PixFormat) int {
	var n int
	for _, p := range format.Layout(f.FourCC, f.Width, f.Height) {
		n += p.Length
	}
	return n
}
