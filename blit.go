// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package copybit

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/copybit/format"
	"github.com/gogpu/copybit/internal/fimc"
	"github.com/gogpu/copybit/internal/geom"
)

// Blit copies srcRect of src into dstRect of dst, scaled and oriented by
// the current parameters, clipped to each rectangle of regions and to the
// destination frame. dstRect may extend past the frame; the scale is
// always that of the whole dstRect.
//
// Each non-empty clip drives one engine transaction. A failed region does
// not stop the others, except an allocation failure, after which no more
// regions are tried. The returned error wraps the first failure.
//
// The rotation, transform and plane alpha set before the call apply to
// this call only and are reset on return.
func (d *Device) Blit(dst, src *Image, dstRect, srcRect image.Rectangle, regions Region) error {
	if s, ok := regions.(stopper); ok {
		defer s.Stop()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	defer d.resetLocked()

	if d.alpha != opaque {
		return fmt.Errorf("%w: alpha %d", ErrPlaneAlpha, d.alpha)
	}
	if err := src.validate("source"); err != nil {
		return err
	}
	if err := dst.validate("destination"); err != nil {
		return err
	}
	if regions == nil {
		return fmt.Errorf("%w: nil region", ErrInvalidParameter)
	}
	if !format.CanAccelerate(src.Format) {
		return fmt.Errorf("%w: source %v", ErrUnsupportedFormat, src.Format)
	}
	srcInfo, err := format.Lookup(src.Format)
	if err != nil {
		return err
	}
	dstInfo, err := format.Lookup(dst.Format)
	if err != nil {
		return err
	}

	job := fimc.Job{
		Src:       fimc.Surface{Width: src.Width, Height: src.Height, FourCC: srcInfo.HW},
		Dst:       fimc.Surface{Width: dst.Width, Height: dst.Height, FourCC: dstInfo.HW},
		Transform: d.transform,
	}
	bind := d.binder(dst, src)
	srcSize := image.Pt(src.Width, src.Height)
	bounds := dst.Bounds()

	var first error
	var total, failed int
	for {
		clip, ok := regions.Next()
		if !ok {
			break
		}
		clip = clip.Intersect(bounds)
		job.SrcRect, job.DstRect = geom.SubRects(d.transform, srcSize, srcRect, dstRect, clip)
		if job.DstRect.Empty() {
			continue
		}
		total++

		err := d.drv.Run(job, bind)
		if err == nil {
			continue
		}
		failed++
		if first == nil {
			first = err
		}
		d.log.Debug("copybit: region failed", "clip", clip, "src", job.SrcRect, "dst", job.DstRect, "err", err)
		if errors.Is(err, ErrAllocationFailed) {
			break
		}
	}

	if failed > 0 {
		err := fmt.Errorf("copybit: %d of %d regions failed: %w", failed, total, first)
		d.log.Error("copybit: blit failed", "src", src.Format, "dst", dst.Format, "err", err)
		return err
	}
	return nil
}

// StretchBlit is Blit with the destination's full frame as the only clip.
func (d *Device) StretchBlit(dst, src *Image, dstRect, srcRect image.Rectangle) error {
	if dst == nil {
		return fmt.Errorf("%w: nil destination image", ErrInvalidParameter)
	}
	return d.Blit(dst, src, dstRect, srcRect, Rects(dst.Bounds()))
}

// binder resolves both images once a region has been accepted by the
// driver. A staged destination is copied back when the region drained.
func (d *Device) binder(dst, src *Image) fimc.BindFunc {
	return func(*fimc.Plan) (fimc.Binding, error) {
		sa, err := d.res.Source(src.descriptor())
		if err != nil {
			return fimc.Binding{}, fmt.Errorf("source: %w", err)
		}
		da, wb, err := d.res.Destination(dst.descriptor())
		if err != nil {
			return fimc.Binding{}, fmt.Errorf("destination: %w", err)
		}
		return fimc.Binding{
			SrcPhys:   sa.Phys,
			SrcChroma: sa.Chroma,
			DstPhys:   da.Phys,
			Drain:     wb.Commit,
		}, nil
	}
}
