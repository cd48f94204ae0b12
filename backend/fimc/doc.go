// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package fimc is the kernel backend of Samsung S5PC110 class devices.
//
// It drives the FIMC post-processor through its V4L2 output node, allocates
// staging memory from the s3c-mem driver, splits the pmem carve-out into the
// two staging regions, and reads the panel geometry from the framebuffer
// device. Importing the package registers it as backend.NameFIMC; it is only
// built on Linux.
//
//	import _ "github.com/gogpu/copybit/backend/fimc"
package fimc
