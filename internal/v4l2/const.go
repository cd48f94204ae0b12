// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package v4l2 declares the subset of the V4L2 and Samsung FIMC kernel ABI
// used to drive the post-processor as a memory-to-memory unit.
package v4l2

// Capability bits.
const (
	CapVideoOutput = 0x00000002
	CapStreaming   = 0x04000000
)

// Buffer types.
const (
	BufTypeVideoOutput  = 2
	BufTypeVideoOverlay = 3
)

// Memory types.
const (
	MemoryMMap    = 1
	MemoryUserPtr = 2
)

// FieldNone is progressive content.
const FieldNone = 1

// Control ids.
const (
	CIDPrivateBase = 0x08000000

	// CIDRotation sets the output rotation in degrees.
	CIDRotation = CIDPrivateBase + 0

	// CIDFIMCVersion reads the post-processor revision.
	CIDFIMCVersion = CIDPrivateBase + 21
)
