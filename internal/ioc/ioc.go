// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ioc encodes Linux ioctl request numbers and issues raw ioctls.
package ioc

// Request number layout of the generic Linux _IOC encoding (arm, x86, arm64).
const (
	nrBits   = 8
	typeBits = 8
	sizeBits = 14
	dirBits  = 2

	nrShift   = 0
	typeShift = nrShift + nrBits
	sizeShift = typeShift + typeBits
	dirShift  = sizeShift + sizeBits
)

// Transfer directions.
const (
	None  = 0
	Write = 1
	Read  = 2
)

// Encode builds a request number.
//
// Fields are OR-ed without masking, the same way the kernel headers build
// them, so a number wider than its field spills into the next one. Some
// vendor drivers (s3c-mem) define numbers above 255 and rely on this.
func Encode(dir, typ, nr, size uintptr) uintptr {
	return dir<<dirShift | typ<<typeShift | nr<<nrShift | size<<sizeShift
}

// IO is _IO(typ, nr).
func IO(typ, nr uintptr) uintptr {
	return Encode(None, typ, nr, 0)
}

// IOR is _IOR(typ, nr, size).
func IOR(typ, nr, size uintptr) uintptr {
	return Encode(Read, typ, nr, size)
}

// IOW is _IOW(typ, nr, size).
func IOW(typ, nr, size uintptr) uintptr {
	return Encode(Write, typ, nr, size)
}

// IOWR is _IOWR(typ, nr, size).
func IOWR(typ, nr, size uintptr) uintptr {
	return Encode(Read|Write, typ, nr, size)
}

// Dir returns the direction bits of req.
func Dir(req uintptr) uintptr {
	return req >> dirShift & (1<<dirBits - 1)
}

// Size returns the argument size encoded in req.
func Size(req uintptr) uintptr {
	return req >> sizeShift & (1<<sizeBits - 1)
}
