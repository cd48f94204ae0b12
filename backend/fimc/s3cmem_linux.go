// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package fimc

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/internal/ioc"
)

// s3cMemAlloc is struct s3c_mem_alloc.
type s3cMemAlloc struct {
	Size    int32
	VirAddr uint32
	PhyAddr uint32
}

// s3cMemDMAParam is struct s3c_mem_dma_param.
type s3cMemDMAParam struct {
	Size    int32
	SrcAddr uint32
	DstAddr uint32
	Cfg     int32
}

// s3c-mem request numbers. The numbers exceed eight bits and spill into
// the type field, as they do in the driver header.
var (
	s3cMemCacheableAlloc = ioc.IOWR('M', 316, unsafe.Sizeof(s3cMemAlloc{}))
	s3cMemFree           = ioc.IOWR('M', 311, unsafe.Sizeof(s3cMemAlloc{}))
	s3cMemCacheInv       = ioc.IOWR('M', 330, unsafe.Sizeof(s3cMemDMAParam{}))
)

// Allocator allocates cacheable, physically contiguous blocks from the
// s3c-mem driver. The driver maps each block into the process and reports
// both addresses. The node is opened on first use.
type Allocator struct {
	path string

	mu sync.Mutex
	fd int
}

var _ backend.Allocator = (*Allocator)(nil)

// NewAllocator returns an allocator over the node at path.
func NewAllocator(path string) *Allocator {
	return &Allocator{path: path, fd: -1}
}

func (a *Allocator) node() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fd >= 0 {
		return a.fd, nil
	}
	fd, err := unix.Open(a.path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("fimc: open %s: %w", a.path, err)
	}
	a.fd = fd
	return fd, nil
}

// Alloc implements backend.Allocator.
func (a *Allocator) Alloc(size int) (backend.Block, error) {
	fd, err := a.node()
	if err != nil {
		return backend.Block{}, err
	}
	p := s3cMemAlloc{Size: int32(size)}
	if err := ioc.Do(fd, s3cMemCacheableAlloc, unsafe.Pointer(&p)); err != nil {
		return backend.Block{}, fmt.Errorf("fimc: S3C_MEM_CACHEABLE_ALLOC %d: %w", size, err)
	}
	return backend.Block{Phys: uint64(p.PhyAddr), Mem: mapped(p.VirAddr, size)}, nil
}

// Free implements backend.Allocator.
func (a *Allocator) Free(b backend.Block) error {
	fd, err := a.node()
	if err != nil {
		return err
	}
	p := s3cMemAlloc{Size: int32(b.Size()), VirAddr: virt(b.Mem), PhyAddr: uint32(b.Phys)}
	if err := ioc.Do(fd, s3cMemFree, unsafe.Pointer(&p)); err != nil {
		return fmt.Errorf("fimc: S3C_MEM_FREE %#x: %w", b.Phys, err)
	}
	return nil
}

// Invalidate implements backend.Allocator.
func (a *Allocator) Invalidate(b backend.Block, size int) error {
	fd, err := a.node()
	if err != nil {
		return err
	}
	p := s3cMemDMAParam{Size: int32(size), SrcAddr: virt(b.Mem)}
	if err := ioc.Do(fd, s3cMemCacheInv, unsafe.Pointer(&p)); err != nil {
		return fmt.Errorf("fimc: S3C_MEM_CACHE_INV %#x: %w", b.Phys, err)
	}
	return nil
}

// Close implements backend.Allocator.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fd < 0 {
		return nil
	}
	err := unix.Close(a.fd)
	a.fd = -1
	return err
}

// mapped returns the driver's mapping at vir as a byte slice.
func mapped(vir uint32, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(vir))), size)
}

func virt(mem []byte) uint32 {
	if len(mem) == 0 {
		return 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(mem))))
}
