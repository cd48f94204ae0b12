// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package fimc

import (
	"github.com/gogpu/copybit/backend"
)

func init() {
	backend.Register(backend.NameFIMC, Open)
}

// Open opens the kernel interfaces named by cfg.Paths.
//
// The panel geometry and the engine node are required. The carve-out is
// optional: a node the process may not open is skipped silently, any other
// failure is logged and the pool falls back to s3c-mem allocations.
func Open(cfg backend.Config) (*backend.Hardware, error) {
	log := cfg.Log()
	paths := cfg.ResolvedPaths()

	screen, err := ReadScreen(paths.Framebuffer, paths.FBIndex)
	if err != nil {
		return nil, err
	}

	eng, err := OpenEngine(paths.Engine)
	if err != nil {
		return nil, err
	}

	hw := &backend.Hardware{
		Engine:    eng,
		Allocator: NewAllocator(paths.Allocator),
		Phys:      Phys{},
		Screen:    screen,
	}

	carve, err := OpenCarveout(paths.Carveout, screen, log)
	switch {
	case err == nil:
		hw.Carveout = carve
	case isNoAccess(err):
		log.Debug("fimc: carve-out not accessible", "path", paths.Carveout)
	default:
		log.Warn("fimc: carve-out unavailable", "path", paths.Carveout, "err", err)
	}

	log.Info("fimc: backend opened",
		"engine", paths.Engine, "width", screen.Width, "height", screen.Height, "bpp", screen.BitsPerPixel)
	return hw, nil
}
