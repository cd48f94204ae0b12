// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package fimc

import (
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/internal/ioc"
)

// pmemRegion is struct pmem_region.
type pmemRegion struct {
	Offset uintptr
	Len    uintptr
}

// pmem request numbers. They are all declared with an unsigned int
// argument size whatever the argument really is.
var (
	pmemGetPhys      = ioc.IOW('p', 1, unsafe.Sizeof(uint32(0)))
	pmemMap          = ioc.IOW('p', 2, unsafe.Sizeof(uint32(0)))
	pmemUnmap        = ioc.IOW('p', 4, unsafe.Sizeof(uint32(0)))
	pmemConnect      = ioc.IOW('p', 6, unsafe.Sizeof(uint32(0)))
	pmemGetTotalSize = ioc.IOW('p', 7, unsafe.Sizeof(uint32(0)))
)

// defaultCarveoutSize is assumed when the driver cannot report its size.
const defaultCarveoutSize = 8 << 20

type subHeap struct {
	fd     int
	offset int
	block  backend.Block
}

// Carveout is the pmem region reserved at boot, split into one sub-heap
// per staging slot. The master mapping is shared; each sub-heap is a
// connected pmem file mapped over its part.
type Carveout struct {
	path string
	fd   int
	mem  []byte
	heap [backend.NumSlots]*subHeap
}

var _ backend.Carveout = (*Carveout)(nil)

// OpenCarveout maps the pmem region at path and divides it for a panel of
// the given geometry: the destination sub-heap holds one panel frame and
// the source sub-heap the rest.
//
// A node that may not be opened (EACCES) is reported as an error wrapping
// unix.EACCES; callers treat it as "no carve-out".
func OpenCarveout(path string, screen backend.Screen, log *slog.Logger) (*Carveout, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("fimc: open %s: %w", path, err)
	}
	c := &Carveout{path: path, fd: fd}

	var total pmemRegion
	size := defaultCarveoutSize
	if err := ioc.Do(fd, pmemGetTotalSize, unsafe.Pointer(&total)); err != nil {
		log.Debug("fimc: pmem size unknown, assuming default", "path", path, "size", size, "err", err)
	} else {
		size = int(total.Len)
	}

	c.mem, err = unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("fimc: mmap %s (%d bytes): %w", path, size, err)
	}

	var phys pmemRegion
	if err := ioc.Do(fd, pmemGetPhys, unsafe.Pointer(&phys)); err != nil {
		log.Warn("fimc: pmem physical base unknown", "path", path, "err", err)
		phys.Offset = 0
	}

	sizes, ok := backend.SplitCarveout(size, screen)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("fimc: %s: %d bytes cannot hold a %dx%d frame", path, size, screen.Width, screen.Height)
	}

	offset := 0
	for s := backend.SlotSource; s < backend.NumSlots; s++ {
		h, err := c.connect(offset, sizes[s], uint64(phys.Offset))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("fimc: %s %s sub-heap: %w", path, s, err)
		}
		c.heap[s] = h
		offset += sizes[s]
	}

	log.Info("fimc: carve-out mapped", "path", path, "size", size,
		"source", sizes[backend.SlotSource], "destination", sizes[backend.SlotDestination])
	return c, nil
}

// connect opens a sub-heap file bound to the master and maps
// [offset, offset+size) of the region into it.
func (c *Carveout) connect(offset, size int, physBase uint64) (*subHeap, error) {
	fd, err := unix.Open(c.path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	if err := ioc.DoValue(fd, pmemConnect, uintptr(c.fd)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("PMEM_CONNECT: %w", err)
	}
	r := pmemRegion{Offset: uintptr(offset), Len: uintptr(size)}
	if err := ioc.Do(fd, pmemMap, unsafe.Pointer(&r)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("PMEM_MAP: %w", err)
	}
	return &subHeap{
		fd:     fd,
		offset: offset,
		block: backend.Block{
			Phys: physBase + uint64(offset),
			Mem:  c.mem[offset : offset+size : offset+size],
		},
	}, nil
}

// Region implements backend.Carveout.
func (c *Carveout) Region(s backend.Slot) (backend.Block, bool) {
	if s < 0 || s >= backend.NumSlots || c.heap[s] == nil {
		return backend.Block{}, false
	}
	return c.heap[s].block, true
}

// Close implements backend.Carveout. Every sub-heap is unmapped even when
// one fails; the first error is returned.
func (c *Carveout) Close() error {
	var errs []error
	for s, h := range c.heap {
		if h == nil {
			continue
		}
		r := pmemRegion{Offset: uintptr(h.offset), Len: uintptr(h.block.Size())}
		if err := ioc.Do(h.fd, pmemUnmap, unsafe.Pointer(&r)); err != nil {
			errs = append(errs, fmt.Errorf("fimc: PMEM_UNMAP %s: %w", backend.Slot(s), err))
		}
		unix.Close(h.fd)
		c.heap[s] = nil
	}
	if c.mem != nil {
		if err := unix.Munmap(c.mem); err != nil {
			errs = append(errs, fmt.Errorf("fimc: munmap %s: %w", c.path, err))
		}
		c.mem = nil
	}
	if c.fd >= 0 {
		unix.Close(c.fd)
		c.fd = -1
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Phys answers whether a producer's buffer lives in pmem. A memory id is
// the producer's file descriptor on a pmem node; any other descriptor
// fails the query.
type Phys struct{}

var _ backend.PhysQuerier = Phys{}

// PhysRegion implements backend.PhysQuerier.
func (Phys) PhysRegion(memoryID int) (uint64, bool) {
	if memoryID < 0 {
		return 0, false
	}
	var r pmemRegion
	if err := ioc.Do(memoryID, pmemGetPhys, unsafe.Pointer(&r)); err != nil {
		return 0, false
	}
	return uint64(r.Offset), true
}

// isNoAccess reports whether err means the carve-out is not ours to use.
func isNoAccess(err error) bool {
	return errors.Is(err, unix.EACCES)
}
