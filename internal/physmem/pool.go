// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package physmem manages the two staging buffers the engine copies
// non-addressable images through.
package physmem

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/copybit/backend"
)

// Pool errors.
var (
	// ErrAllocationFailed is returned when the kernel allocator cannot
	// provide a block of the requested size.
	ErrAllocationFailed = errors.New("physmem: allocation failed")

	// ErrReleaseFailed is logged when a block cannot be returned to the
	// kernel allocator.
	ErrReleaseFailed = errors.New("physmem: release failed")

	// ErrClosed is returned by EnsureCapacity after Close.
	ErrClosed = errors.New("physmem: pool closed")
)

// Buffer is a staging buffer handed out by EnsureCapacity.
type Buffer struct {
	// Slot the buffer belongs to.
	Slot backend.Slot

	// Phys is the physical address the engine reads or writes.
	Phys uint64

	// Mem is the CPU view, exactly the requested size.
	Mem []byte

	// Reserved is true when the buffer lives in the carve-out.
	Reserved bool

	block backend.Block
}

type slot struct {
	block backend.Block
	used  int

	// reservedUsed is the in-use size of the carve-out region when the
	// last request was served from it, 0 otherwise.
	reservedUsed int
}

// Pool is a pair of growable, physically contiguous buffers, one per
// backend.Slot, optionally backed by fixed carve-out regions.
//
// A slot grows by replacement: the old block is freed and a new block of
// exactly the requested size is allocated. Capacity never shrinks; it drops
// to zero only when a replacement allocation fails.
//
// Thread safety: All methods are safe for concurrent use, but a Buffer stays
// valid only until the next EnsureCapacity on the same slot.
type Pool struct {
	mu       sync.Mutex
	alloc    backend.Allocator
	carveout backend.Carveout
	slots    [backend.NumSlots]slot
	closed   bool
	log      *slog.Logger
}

// New creates a pool on top of alloc. carveout may be nil.
func New(alloc backend.Allocator, carveout backend.Carveout, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Pool{alloc: alloc, carveout: carveout, log: log}
}

// EnsureCapacity returns a buffer of at least size bytes in slot s.
//
// A carve-out region large enough for the request is preferred. Otherwise
// the slot's own block is returned unchanged when it is large enough, and
// replaced when it is not.
func (p *Pool) EnsureCapacity(s backend.Slot, size int) (Buffer, error) {
	if s < 0 || s >= backend.NumSlots {
		return Buffer{}, fmt.Errorf("physmem: invalid slot %d", s)
	}
	if size <= 0 {
		return Buffer{}, fmt.Errorf("%w: size %d", ErrAllocationFailed, size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return Buffer{}, ErrClosed
	}

	sl := &p.slots[s]

	if p.carveout != nil {
		if region, ok := p.carveout.Region(s); ok && size <= region.Size() {
			sl.reservedUsed = size
			return Buffer{Slot: s, Phys: region.Phys, Mem: region.Mem[:size], Reserved: true, block: region}, nil
		}
	}
	sl.reservedUsed = 0

	if sl.block.Size() < size {
		if sl.block.Size() > 0 {
			if err := p.alloc.Free(sl.block); err != nil {
				p.log.Warn("physmem: free before grow failed",
					"slot", s, "size", sl.block.Size(), "err", fmt.Errorf("%w: %w", ErrReleaseFailed, err))
			}
			sl.block = backend.Block{}
			sl.used = 0
		}

		b, err := p.alloc.Alloc(size)
		if err != nil {
			return Buffer{}, fmt.Errorf("%w: %s slot, %d bytes: %w", ErrAllocationFailed, s, size, err)
		}
		p.log.Debug("physmem: slot grown", "slot", s, "size", size, "phys", b.Phys)
		sl.block = b
	}

	sl.used = size
	return Buffer{Slot: s, Phys: sl.block.Phys, Mem: sl.block.Mem[:size], block: sl.block}, nil
}

// Capacity returns the size of the growable block of slot s.
func (p *Pool) Capacity(s backend.Slot) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[s].block.Size()
}

// Used returns the in-use size recorded by the last EnsureCapacity on s.
func (p *Pool) Used(s backend.Slot) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots[s].reservedUsed > 0 {
		return p.slots[s].reservedUsed
	}
	return p.slots[s].used
}

// Invalidate drops CPU cache lines over buf so that engine writes become
// visible to the CPU.
func (p *Pool) Invalidate(buf Buffer) error {
	return p.alloc.Invalidate(buf.block, len(buf.Mem))
}

// Close frees every live block. It is idempotent; only the first call
// releases memory. All release errors are logged and the first is
// returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var first error
	for i := range p.slots {
		sl := &p.slots[i]
		if sl.block.Size() == 0 {
			continue
		}
		if err := p.alloc.Free(sl.block); err != nil {
			err = fmt.Errorf("%w: %s slot: %w", ErrReleaseFailed, backend.Slot(i), err)
			p.log.Warn("physmem: free on close failed", "err", err)
			if first == nil {
				first = err
			}
		}
		*sl = slot{}
	}
	return first
}
