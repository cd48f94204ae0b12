// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package fimc drives one region through the FIMC post-processor: it checks
// the unit's size limits, rounds the working rectangles to the unit's
// alignment, programs source and destination, and runs the one-shot
// stream-on/queue/stream-off transaction.
package fimc

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/format"
	"github.com/gogpu/copybit/internal/geom"
	"github.com/gogpu/copybit/internal/v4l2"
)

// Driver errors.
var (
	// ErrRegionTooSmall is returned when a region is below the unit's
	// minimum size before or after alignment. The engine is not touched.
	ErrRegionTooSmall = errors.New("fimc: region too small")

	// ErrTransactionFailed is returned when any programming or streaming
	// step fails.
	ErrTransactionFailed = errors.New("fimc: hardware transaction failed")
)

// State is the per-region transaction state.
type State int32

const (
	StateIdle State = iota
	StateConfiguring
	StateSubmitted
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateSubmitted:
		return "submitted"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Limits are the hardware size thresholds.
type Limits struct {
	SrcMinWidth  int
	SrcMinHeight int
	DstMinWidth  int
	DstMinHeight int

	// VersionControl is the control id the revision is read from.
	VersionControl uint32
}

// DefaultLimits returns the thresholds of the S5PC110 post-processor.
func DefaultLimits() Limits {
	return Limits{
		SrcMinWidth:    16,
		SrcMinHeight:   8,
		DstMinWidth:    8,
		DstMinHeight:   4,
		VersionControl: v4l2.CIDFIMCVersion,
	}
}

// Surface is a full image frame as the unit sees it.
type Surface struct {
	Width  int
	Height int
	FourCC format.FourCC
}

// Job is one region of a blit.
type Job struct {
	Src     Surface
	SrcRect image.Rectangle
	Dst     Surface
	DstRect image.Rectangle

	Transform geom.Transform
}

// Plan is the programming derived from a Job.
type Plan struct {
	Src     backend.PixFormat
	SrcCrop image.Rectangle

	// Dst is the output frame, with width and height exchanged for 90°
	// and 270° rotations.
	Dst      backend.PixFormat
	Window   image.Rectangle
	Rotation int
}

// Binding carries the addresses resolved for a Plan.
type Binding struct {
	SrcPhys uint64

	// SrcChroma overrides the chroma plane address when non-zero.
	SrcChroma uint64

	DstPhys uint64

	// Drain, if set, runs after a successful transaction.
	Drain func() error
}

// BindFunc resolves addresses once a region has been validated.
type BindFunc func(*Plan) (Binding, error)

// Driver owns the engine session.
//
// Thread safety: Run calls are serialized.
type Driver struct {
	mu     sync.Mutex
	eng    backend.Engine
	limits Limits
	rev    uint32
	caps   backend.Caps
	log    *slog.Logger

	state atomic.Int32
	trace func(State) // test hook
}

// Open checks that eng is a streaming video-output node and reads the
// unit's revision.
func Open(eng backend.Engine, limits Limits, log *slog.Logger) (*Driver, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	caps, err := eng.Capabilities()
	if err != nil {
		return nil, fmt.Errorf("fimc: query capabilities: %w", err)
	}
	if !caps.Streaming {
		return nil, fmt.Errorf("%w: %s has no streaming support", backend.ErrNoCapability, caps.Card)
	}
	if !caps.VideoOutput {
		return nil, fmt.Errorf("%w: %s is no video output", backend.ErrNoCapability, caps.Card)
	}

	if _, err := eng.SourceFormat(); err != nil {
		return nil, fmt.Errorf("fimc: read source format: %w", err)
	}

	v, err := eng.Control(limits.VersionControl)
	if err != nil {
		return nil, fmt.Errorf("fimc: read version: %w", err)
	}

	d := &Driver{eng: eng, limits: limits, rev: uint32(v), caps: caps, log: log}
	log.Info("fimc: opened", "driver", caps.Driver, "card", caps.Card, "revision", fmt.Sprintf("%#x", d.rev))
	return d, nil
}

// Revision returns the unit revision read at open.
func (d *Driver) Revision() uint32 {
	return d.rev
}

// State returns the current transaction state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
	if d.trace != nil {
		d.trace(s)
	}
}

// Run executes one region: Idle → Configuring → Submitted → Draining →
// Idle. The driver is back in Idle on every return.
//
// bind is called after validation, so a region rejected with
// ErrRegionTooSmall resolves no addresses and touches no hardware.
func (d *Driver) Run(job Job, bind BindFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setState(StateConfiguring)
	defer d.setState(StateIdle)

	plan, err := d.Plan(job)
	if err != nil {
		return err
	}

	b, err := bind(&plan)
	if err != nil {
		return err
	}

	if err := d.transact(job, plan, b); err != nil {
		return err
	}

	d.setState(StateDraining)
	if b.Drain != nil {
		return b.Drain()
	}
	return nil
}

// Plan validates job against the unit's limits and derives the source and
// destination programming.
func (d *Driver) Plan(job Job) (Plan, error) {
	sr, dr := job.SrcRect, job.DstRect
	lim := d.limits

	if sr.Dx() < lim.SrcMinWidth || sr.Dy() < lim.SrcMinHeight {
		d.log.Debug("fimc: source region below minimum", "rect", sr, "min", image.Pt(lim.SrcMinWidth, lim.SrcMinHeight))
		return Plan{}, fmt.Errorf("%w: source %dx%d, minimum %dx%d",
			ErrRegionTooSmall, sr.Dx(), sr.Dy(), lim.SrcMinWidth, lim.SrcMinHeight)
	}
	if dr.Dx() < lim.DstMinWidth || dr.Dy() < lim.DstMinHeight {
		d.log.Debug("fimc: destination region below minimum", "rect", dr, "min", image.Pt(lim.DstMinWidth, lim.DstMinHeight))
		return Plan{}, fmt.Errorf("%w: destination %dx%d, minimum %dx%d",
			ErrRegionTooSmall, dr.Dx(), dr.Dy(), lim.DstMinWidth, lim.DstMinHeight)
	}

	var p Plan

	sw := format.AlignWidth(d.rev, job.Src.FourCC, sr.Dx())
	sh := format.AlignHeight(job.Src.FourCC, sr.Dy())
	p.Src = backend.PixFormat{Width: job.Src.Width, Height: job.Src.Height, FourCC: job.Src.FourCC}
	if d.rev == format.Revision50 {
		p.SrcCrop = image.Rect(sr.Min.X, sr.Min.Y, sr.Min.X+sw, sr.Min.Y+sh)
	} else {
		p.SrcCrop = image.Rect(0, 0, sw, sh)
	}

	p.Rotation = job.Transform.Degrees()
	var x, y, w, h int
	if p.Rotation == 90 || p.Rotation == 270 {
		p.Dst = backend.PixFormat{Width: job.Dst.Height, Height: job.Dst.Width, FourCC: job.Dst.FourCC}
		x, y = dr.Min.Y, dr.Min.X
		w = format.AlignWidth(d.rev, job.Dst.FourCC, dr.Dy())
		h = format.AlignWidth(d.rev, job.Dst.FourCC, dr.Dx())
		if d.rev != format.Revision50 {
			y += dr.Dx() - h
		}
	} else {
		p.Dst = backend.PixFormat{Width: job.Dst.Width, Height: job.Dst.Height, FourCC: job.Dst.FourCC}
		x, y = dr.Min.X, dr.Min.Y
		w = format.AlignWidth(d.rev, job.Dst.FourCC, dr.Dx())
		h = format.AlignHeight(job.Dst.FourCC, dr.Dy())
	}
	p.Window = image.Rect(x, y, x+w, y+h)

	// The rounded sizes are what the unit sees; the window is checked in
	// the exchanged frame of a rotated transaction.
	if sw < lim.SrcMinWidth || sh < lim.SrcMinHeight || w < lim.DstMinWidth || h < lim.DstMinHeight ||
		sw <= 0 || sh <= 0 || w <= 0 || h <= 0 {
		return Plan{}, fmt.Errorf("%w: aligned source %dx%d, destination %dx%d",
			ErrRegionTooSmall, sw, sh, w, h)
	}

	d.log.Debug("fimc: plan",
		"src", p.Src.FourCC, "src_frame", image.Pt(p.Src.Width, p.Src.Height), "crop", p.SrcCrop,
		"dst", p.Dst.FourCC, "dst_frame", image.Pt(p.Dst.Width, p.Dst.Height), "window", p.Window,
		"rotation", p.Rotation)
	return p, nil
}

// transact programs the unit and runs the one-shot transaction. Stream-off
// and queue release run on every exit once their counterpart was
// attempted; the first error of the whole sequence is returned.
func (d *Driver) transact(job Job, p Plan, b Binding) (err error) {
	var requested, streaming bool

	defer func() {
		if streaming {
			if e := d.eng.StreamOff(); e != nil {
				err = d.first(err, "stream off", e)
			}
		}
		if requested {
			if e := d.eng.RequestBuffers(0); e != nil {
				err = d.first(err, "release buffers", e)
			}
		}
	}()

	if e := d.eng.SetSourceFormat(p.Src); e != nil {
		return d.first(nil, "set source format", e)
	}
	if e := d.eng.SetSourceCrop(p.SrcCrop); e != nil {
		return d.first(nil, "set source crop", e)
	}
	requested = true
	if e := d.eng.RequestBuffers(1); e != nil {
		return d.first(nil, "request buffers", e)
	}
	if e := d.eng.SetControl(v4l2.CIDRotation, int32(p.Rotation)); e != nil {
		return d.first(nil, "set rotation", e)
	}
	if e := d.eng.SetFramebuffer(backend.Framebuffer{Base: b.DstPhys, PixFormat: p.Dst}); e != nil {
		return d.first(nil, "set framebuffer", e)
	}
	if e := d.eng.SetWindow(p.Window); e != nil {
		return d.first(nil, "set window", e)
	}

	buf := sourceBuffer(job.Src, b)

	d.setState(StateSubmitted)
	streaming = true
	if e := d.eng.StreamOn(); e != nil {
		return d.first(nil, "stream on", e)
	}
	if e := d.eng.Queue(buf); e != nil {
		return d.first(nil, "queue", e)
	}
	return nil
}

// first returns prev when it is already an error, logging e as a secondary
// failure; otherwise it wraps e.
func (d *Driver) first(prev error, step string, e error) error {
	if prev != nil {
		d.log.Warn("fimc: cleanup step failed", "step", step, "err", e)
		return prev
	}
	err := fmt.Errorf("%w: %s: %w", ErrTransactionFailed, step, e)
	d.log.Debug("fimc: step failed", "step", step, "err", e)
	return err
}

// sourceBuffer fills the plane addresses of the source frame.
func sourceBuffer(src Surface, b Binding) backend.DMABuffer {
	var buf backend.DMABuffer
	hw, _ := src.FourCC.Info()
	layout := format.Layout(src.FourCC, src.Width, src.Height)
	for i := 0; i < hw.Planes && i < format.MaxPlanes; i++ {
		buf.Base[i] = b.SrcPhys + uint64(layout[i].Offset)
		buf.Length[i] = layout[i].Length
	}
	if b.SrcChroma != 0 && hw.Planes > 1 {
		buf.Base[1] = b.SrcChroma
	}
	return buf
}
