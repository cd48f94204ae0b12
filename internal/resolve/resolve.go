// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package resolve finds the physical address the engine should use for an
// image, staging the image through the physmem pool when it has none.
package resolve

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/format"
	"github.com/gogpu/copybit/internal/physmem"
)

// ErrUnresolvableAddress is returned when an image is neither physically
// addressable nor stageable.
var ErrUnresolvableAddress = errors.New("resolve: unresolvable address")

// Image is the part of an image descriptor address resolution looks at.
type Image struct {
	Width  int
	Height int
	Format format.Format

	// Pixels is the CPU mapping of the image.
	Pixels []byte

	// Offset is the byte offset of the image inside its memory handle.
	Offset int

	// PhysAddr is the physical address of the first pixel, 0 if unknown.
	PhysAddr uint64

	// MemoryID identifies the memory handle for the physical query.
	// HasMemoryID is false when the image has no handle.
	MemoryID    int
	HasMemoryID bool
}

// Address is a resolved image address.
type Address struct {
	// Phys is the luma (or packed) plane address.
	Phys uint64

	// Chroma is the chroma plane address carried by the buffer itself.
	// Zero means the chroma planes follow Phys per the format layout.
	Chroma uint64

	// Staged is true when the address points into a staging buffer.
	Staged bool
}

// Resolver resolves addresses against one pool.
type Resolver struct {
	pool *physmem.Pool
	phys backend.PhysQuerier
	log  *slog.Logger
}

// New creates a resolver. phys may be nil.
func New(pool *physmem.Pool, phys backend.PhysQuerier, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{pool: pool, phys: phys, log: log}
}

// Source resolves the address of a source image.
//
// Checks run in order: addresses embedded in the buffer by zero-copy
// producers, an explicit physical address, the platform physical query on
// the memory handle, and finally a copy into the source staging slot.
func (r *Resolver) Source(img Image) (Address, error) {
	if img.Format.Embedding() != format.EmbedNone {
		return embedded(img)
	}
	if a, ok := r.direct(img); ok {
		return a, nil
	}

	buf, err := r.stage(backend.SlotSource, img)
	if err != nil {
		return Address{}, err
	}
	return Address{Phys: buf.Phys, Staged: true}, nil
}

// Destination resolves the address of a destination image. When the image
// is staged, the returned Writeback must be committed after the engine has
// written the staging buffer; otherwise it is nil.
//
// The staging buffer is filled with the current destination pixels first,
// so committing the whole frame leaves pixels outside the written region
// as they were.
func (r *Resolver) Destination(img Image) (Address, *Writeback, error) {
	if img.Format.Embedding() != format.EmbedNone {
		return Address{}, nil, fmt.Errorf("%w: %v cannot be a destination", ErrUnresolvableAddress, img.Format)
	}
	if a, ok := r.direct(img); ok {
		return a, nil, nil
	}

	buf, err := r.stage(backend.SlotDestination, img)
	if err != nil {
		return Address{}, nil, err
	}
	return Address{Phys: buf.Phys, Staged: true}, &Writeback{pool: r.pool, buf: buf, dst: img.Pixels, log: r.log}, nil
}

// direct returns a zero-copy address when the image has one.
func (r *Resolver) direct(img Image) (Address, bool) {
	if img.PhysAddr != 0 {
		return Address{Phys: img.PhysAddr}, true
	}
	if img.HasMemoryID && r.phys != nil {
		if base, ok := r.phys.PhysRegion(img.MemoryID); ok {
			return Address{Phys: base + uint64(img.Offset)}, true
		}
	}
	return Address{}, false
}

// stage copies the image into slot s.
func (r *Resolver) stage(s backend.Slot, img Image) (physmem.Buffer, error) {
	if !format.CanStage(img.Format) {
		return physmem.Buffer{}, fmt.Errorf("%w: %v cannot be staged", ErrUnresolvableAddress, img.Format)
	}
	size := format.FrameSize(img.Format, img.Width, img.Height)
	if size == 0 {
		return physmem.Buffer{}, fmt.Errorf("%w: empty %dx%d frame", ErrUnresolvableAddress, img.Width, img.Height)
	}
	if len(img.Pixels) < size {
		return physmem.Buffer{}, fmt.Errorf("%w: %d bytes mapped, frame needs %d", ErrUnresolvableAddress, len(img.Pixels), size)
	}

	buf, err := r.pool.EnsureCapacity(s, size)
	if err != nil {
		return physmem.Buffer{}, err
	}
	copy(buf.Mem, img.Pixels[:size])
	r.log.Debug("resolve: staged", "slot", s, "format", img.Format, "bytes", size, "phys", buf.Phys)
	return buf, nil
}

// embedded reads the physical plane addresses a zero-copy producer stored
// in the buffer.
func embedded(img Image) (Address, error) {
	var a Address
	switch img.Format.Embedding() {
	case format.EmbedLumaChroma:
		if len(img.Pixels) < 8 {
			return Address{}, fmt.Errorf("%w: %v buffer too short for plane pointers", ErrUnresolvableAddress, img.Format)
		}
		a.Phys = uint64(binary.LittleEndian.Uint32(img.Pixels[0:]))
		a.Chroma = uint64(binary.LittleEndian.Uint32(img.Pixels[4:]))
	case format.EmbedLuma:
		if img.Offset < 0 || len(img.Pixels) < img.Offset+4 {
			return Address{}, fmt.Errorf("%w: %v buffer too short for plane pointer", ErrUnresolvableAddress, img.Format)
		}
		a.Phys = uint64(binary.LittleEndian.Uint32(img.Pixels[img.Offset:]))
	}
	if a.Phys == 0 {
		return Address{}, fmt.Errorf("%w: %v carries a null plane pointer", ErrUnresolvableAddress, img.Format)
	}
	return a, nil
}

// Writeback copies a staged destination back into the caller's memory.
type Writeback struct {
	pool *physmem.Pool
	buf  physmem.Buffer
	dst  []byte
	log  *slog.Logger
}

// Commit invalidates the staging buffer and copies the whole frame back.
// A nil Writeback commits nothing. A failed invalidate is logged and the
// copy proceeds.
func (w *Writeback) Commit() error {
	if w == nil {
		return nil
	}
	if err := w.pool.Invalidate(w.buf); err != nil {
		w.log.Warn("resolve: cache invalidate failed", "phys", w.buf.Phys, "err", err)
	}
	copy(w.dst, w.buf.Mem)
	return nil
}

// Size returns the number of bytes Commit copies.
func (w *Writeback) Size() int {
	if w == nil {
		return 0
	}
	return len(w.buf.Mem)
}
