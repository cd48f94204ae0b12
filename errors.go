// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package copybit

import (
	"errors"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/format"
	"github.com/gogpu/copybit/internal/fimc"
	"github.com/gogpu/copybit/internal/physmem"
	"github.com/gogpu/copybit/internal/resolve"
)

// Errors returned by copybit. Failures are wrapped, test them with
// errors.Is.
var (
	// ErrUnsupportedFormat: the source cannot be read by the engine, or
	// the destination cannot be written by it.
	ErrUnsupportedFormat = format.ErrUnsupportedFormat

	// ErrRegionTooSmall: a region is below the engine minimum before or
	// after alignment.
	ErrRegionTooSmall = fimc.ErrRegionTooSmall

	// ErrHardwareTransactionFailed: a programming or streaming step of the
	// engine failed.
	ErrHardwareTransactionFailed = fimc.ErrTransactionFailed

	// ErrAllocationFailed: a staging buffer could not be allocated. The
	// remaining regions of the blit are not attempted.
	ErrAllocationFailed = physmem.ErrAllocationFailed

	// ErrReleaseFailed: a staging buffer could not be released.
	ErrReleaseFailed = physmem.ErrReleaseFailed

	// ErrUnresolvableAddress: an image is neither physically addressable
	// nor stageable.
	ErrUnresolvableAddress = resolve.ErrUnresolvableAddress

	// ErrNoBackend: no kernel backend could be opened.
	ErrNoBackend = backend.ErrBackendNotAvailable

	// ErrPlaneAlpha is returned by Blit while the plane alpha is not
	// fully opaque. The engine has no blending stage.
	ErrPlaneAlpha = errors.New("copybit: plane alpha not supported")

	// ErrInvalidParameter is returned for unknown parameters and queries
	// and for values outside their domain.
	ErrInvalidParameter = errors.New("copybit: invalid parameter")

	// ErrClosed is returned by a Device after its last Close.
	ErrClosed = errors.New("copybit: device closed")
)
