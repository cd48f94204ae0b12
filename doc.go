// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package copybit blits, scales and rotates images with the FIMC
// post-processor of Samsung S5PC110 class devices.
//
// # Overview
//
// A display compositor hands copybit one source and one destination image
// and a list of clip rectangles. For each clip copybit computes the source
// window that maps onto it, finds the physical address of both images
// (copying them through a staging buffer when they have none), and runs
// one transaction on the engine. Physically addressed buffers, such as
// camera and decoder frames, are read in place.
//
// # Quick Start
//
//	s := copybit.NewSession()
//	dev, err := s.Open()
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	dev.Set(copybit.ParamRotationDeg, 90)
//	err = dev.StretchBlit(dst, src, dst.Bounds(), src.Bounds())
//
// # Parameters
//
// Set changes the rotation, transform, dither and plane alpha of the next
// blit only. Each Blit resets them when it returns, whatever its outcome.
// The engine cannot blend: a plane alpha other than 255 makes Blit fail
// with ErrPlaneAlpha.
//
// # Backends
//
// The hardware is reached through a backend (see package backend). On
// Linux the kernel backend in backend/fimc is registered by this package.
// The emulator in backend/emulator models the engine and its memory in
// process and is selected with WithBackend or WithBackendFactory.
//
// # Concurrency
//
// One Session is shared by all users of the engine. Open and Close are
// serialized; blits on the Device are serialized as well, since the engine
// and the staging buffers serve a single caller at a time.
//
// # Logging
//
// copybit logs through log/slog. It is silent until SetLogger is called.
package copybit
