// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package copybit

import (
	"fmt"

	"github.com/gogpu/copybit/internal/geom"
)

// Param is a one-shot blit parameter.
type Param int

// Parameters accepted by Device.Set.
const (
	// ParamRotationDeg sets the rotation in degrees: 0, 90, 180 or 270.
	// It replaces any flip set before.
	ParamRotationDeg Param = iota + 1

	// ParamPlaneAlpha sets the plane alpha, clamped to 0..255. Blits fail
	// with ErrPlaneAlpha unless it is 255.
	ParamPlaneAlpha

	// ParamDither takes Enable or Disable.
	ParamDither

	// ParamTransform sets the orientation bits (FlipH, FlipV, Rot90)
	// from the low three bits of the value.
	ParamTransform
)

// Values of ParamDither.
const (
	Disable = 0
	Enable  = 1
)

func (p Param) String() string {
	switch p {
	case ParamRotationDeg:
		return "rotation"
	case ParamPlaneAlpha:
		return "plane alpha"
	case ParamDither:
		return "dither"
	case ParamTransform:
		return "transform"
	default:
		return fmt.Sprintf("Param(%d)", int(p))
	}
}

// Query is an engine capability.
type Query int

// Queries answered by Device.Get.
const (
	QueryMinificationLimit Query = iota + 1
	QueryMagnificationLimit
	QueryScalingFracBits
	QueryRotationStepDeg
	QueryAlphaBits
)

// Set changes a parameter of the next blit.
func (d *Device) Set(p Param, value int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	switch p {
	case ParamRotationDeg:
		var rot geom.Transform
		switch value {
		case 0:
		case 90:
			rot = geom.Rot90
		case 180:
			rot = geom.Rot180
		case 270:
			rot = geom.Rot270
		default:
			return fmt.Errorf("%w: rotation %d", ErrInvalidParameter, value)
		}
		d.transform = d.transform&^geom.OrientationMask | rot
	case ParamPlaneAlpha:
		d.alpha = min(max(value, 0), opaque)
	case ParamDither:
		if value != Disable {
			d.transform |= geom.Dither
		} else {
			d.transform &^= geom.Dither
		}
	case ParamTransform:
		d.transform = d.transform&^geom.OrientationMask | geom.Transform(value)&geom.OrientationMask
	default:
		return fmt.Errorf("%w: %v", ErrInvalidParameter, p)
	}
	return nil
}

// Get answers a capability query.
func (d *Device) Get(q Query) (int, error) {
	switch q {
	case QueryMinificationLimit, QueryMagnificationLimit:
		return d.limits.MaxScale, nil
	case QueryScalingFracBits:
		return 32, nil
	case QueryRotationStepDeg:
		return 90, nil
	case QueryAlphaBits:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: query %d", ErrInvalidParameter, int(q))
	}
}

// resetLocked restores the one-shot defaults. d.mu must be held.
func (d *Device) resetLocked() {
	d.transform = 0
	d.alpha = opaque
}
