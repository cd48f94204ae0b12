// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package emulator

import (
	"fmt"
	"slices"

	"github.com/gogpu/copybit/backend"
)

// Allocator hands out blocks from the machine's bus address space.
type Allocator struct {
	m      *Machine
	closed bool
}

var _ backend.Allocator = (*Allocator)(nil)

// Alloc implements backend.Allocator.
func (a *Allocator) Alloc(size int) (backend.Block, error) {
	m := a.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.closed {
		return backend.Block{}, ErrClosed
	}
	if err := m.callLocked(VerbAlloc); err != nil {
		return backend.Block{}, err
	}
	if size <= 0 {
		return backend.Block{}, fmt.Errorf("%w: size %d", ErrBadState, size)
	}
	if lim := m.cfg.MemoryLimit; lim > 0 && m.allocatedLocked()+size > lim {
		return backend.Block{}, fmt.Errorf("%w: %d bytes requested", ErrOutOfMemory, size)
	}
	r := m.insertLocked(make([]byte, size), kindAlloc)
	return backend.Block{Phys: r.phys, Mem: r.mem}, nil
}

// Free implements backend.Allocator.
func (a *Allocator) Free(b backend.Block) error {
	m := a.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.callLocked(VerbFree); err != nil {
		return err
	}
	i := m.indexLocked(b.Phys)
	if i < 0 || m.regions[i].kind != kindAlloc {
		return fmt.Errorf("%w: free of unknown block %#x", ErrBadState, b.Phys)
	}
	m.regions = slices.Delete(m.regions, i, i+1)
	return nil
}

// Invalidate implements backend.Allocator.
func (a *Allocator) Invalidate(b backend.Block, size int) error {
	m := a.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.callLocked(VerbInvalidate); err != nil {
		return err
	}
	if size > b.Size() {
		return fmt.Errorf("%w: invalidate %d of %d bytes", ErrBadState, size, b.Size())
	}
	return nil
}

// Close implements backend.Allocator.
func (a *Allocator) Close() error {
	m := a.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.callLocked(VerbCloseAllocator); err != nil {
		return err
	}
	a.closed = true
	return nil
}

func (m *Machine) allocatedLocked() int {
	n := 0
	for _, r := range m.regions {
		if r.kind == kindAlloc {
			n += len(r.mem)
		}
	}
	return n
}

// Carveout exposes the reserved staging regions.
type Carveout struct {
	m *Machine
}

var _ backend.Carveout = (*Carveout)(nil)

// Region implements backend.Carveout.
func (c *Carveout) Region(s backend.Slot) (backend.Block, bool) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if s < 0 || s >= backend.NumSlots || c.m.carve[s] == nil {
		return backend.Block{}, false
	}
	r := c.m.carve[s]
	return backend.Block{Phys: r.phys, Mem: r.mem}, true
}

// Close implements backend.Carveout.
func (c *Carveout) Close() error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.callLocked(VerbUnmapCarveout)
}

// Phys answers contiguity queries from Machine.Export.
type Phys struct {
	m *Machine
}

var _ backend.PhysQuerier = (*Phys)(nil)

// PhysRegion implements backend.PhysQuerier.
func (p *Phys) PhysRegion(memoryID int) (uint64, bool) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	if p.m.callLocked(VerbPhys) != nil {
		return 0, false
	}
	phys, ok := p.m.exports[memoryID]
	return phys, ok
}
