// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend defines the kernel interfaces the copybit engine drives
// and a registry of implementations.
//
// A backend supplies a Hardware bundle: the post-processor Engine, the
// physically contiguous memory Allocator, an optional Carveout of reserved
// memory, an optional PhysQuerier for zero-copy detection, and the panel
// geometry read from the framebuffer.
//
// # Backend Registration
//
// Backends register a Factory from init():
//
//	import _ "github.com/gogpu/copybit/backend/fimc"
//
// # Backend Selection
//
// Open builds a bundle by name; Default tries the registered backends in
// priority order:
//
//	hw, err := backend.Default(backend.Config{Paths: backend.DefaultPaths()})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Available Backends
//
// - "fimc": Samsung FIMC post-processor over V4L2, s3c-mem and pmem (linux)
// - "emulator": in-process model of the same interfaces (tests, development)
package backend
