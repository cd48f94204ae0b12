// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"image"
	"log/slog"

	"github.com/gogpu/copybit/format"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when no registered backend can be
	// opened, or the requested one is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNoCapability is returned when the engine node lacks the streaming
	// or video-output capability.
	ErrNoCapability = errors.New("backend: device lacks required capability")
)

// Caps is what the engine node reports about itself.
type Caps struct {
	Driver      string
	Card        string
	Streaming   bool
	VideoOutput bool
}

// PixFormat is a full-frame geometry and pixel format.
type PixFormat struct {
	Width  int
	Height int
	FourCC format.FourCC
}

// Framebuffer describes the output surface of one transaction.
type Framebuffer struct {
	// Base is the physical address of the first byte.
	Base uint64
	PixFormat
}

// DMABuffer is the descriptor queued for one transaction: the physical
// address and length of each source plane. Unused planes are zero.
type DMABuffer struct {
	Base   [format.MaxPlanes]uint64
	Length [format.MaxPlanes]int
}

// Engine is the post-processor programming interface.
// Calls are synchronous and the engine is single-user.
type Engine interface {
	// Capabilities queries the node.
	Capabilities() (Caps, error)

	// SourceFormat reads the current source format.
	SourceFormat() (PixFormat, error)

	// Control reads a control value.
	Control(id uint32) (int32, error)

	// SetControl writes a control value.
	SetControl(id uint32, value int32) error

	// SetSourceFormat programs the source full-frame geometry.
	SetSourceFormat(PixFormat) error

	// SetSourceCrop programs the source sampling window.
	SetSourceCrop(image.Rectangle) error

	// RequestBuffers sizes the user-pointer source queue; 0 releases it.
	RequestBuffers(count int) error

	// SetFramebuffer programs the output surface.
	SetFramebuffer(Framebuffer) error

	// SetWindow programs the output window inside the framebuffer.
	SetWindow(image.Rectangle) error

	// StreamOn starts the source queue.
	StreamOn() error

	// Queue submits one source buffer. The transaction has completed when
	// Queue returns.
	Queue(DMABuffer) error

	// StreamOff stops the source queue.
	StreamOff() error

	// Close releases the node.
	Close() error
}

// Block is one physically contiguous allocation.
type Block struct {
	// Phys is the bus address the engine uses.
	Phys uint64

	// Mem is the CPU mapping of the block. len(Mem) is the block size.
	Mem []byte
}

// Size returns the block size in bytes.
func (b Block) Size() int {
	return len(b.Mem)
}

// Allocator hands out physically contiguous memory.
type Allocator interface {
	// Alloc returns a new block of exactly size bytes.
	Alloc(size int) (Block, error)

	// Free releases a block returned by Alloc.
	Free(Block) error

	// Invalidate drops CPU cache lines over the first size bytes of b so
	// that reads observe what the engine wrote.
	Invalidate(b Block, size int) error

	// Close releases the allocator. Blocks must be freed first.
	Close() error
}

// Slot selects one of the two staging buffers.
type Slot int

// Staging slots.
const (
	SlotSource Slot = iota
	SlotDestination

	// NumSlots is the number of staging slots.
	NumSlots
)

// String returns "source" or "destination".
func (s Slot) String() string {
	switch s {
	case SlotSource:
		return "source"
	case SlotDestination:
		return "destination"
	default:
		return "slot(?)"
	}
}

// Carveout is memory reserved at boot and split into one fixed region per
// staging slot.
type Carveout interface {
	// Region returns the reserved block of slot s, if any.
	Region(s Slot) (Block, bool)

	// Close unmaps the regions.
	Close() error
}

// PhysQuerier reports whether a producer's memory handle is already backed
// by physically contiguous memory.
type PhysQuerier interface {
	// PhysRegion returns the physical base of memory id, or ok=false when
	// the memory is not physically contiguous.
	PhysRegion(memoryID int) (phys uint64, ok bool)
}

// Screen is the panel geometry read from the framebuffer device.
type Screen struct {
	Width        int
	Height       int
	BitsPerPixel int
}

// FrameBytes returns the size of one full panel frame.
func (s Screen) FrameBytes() int {
	return s.Width * s.Height * (s.BitsPerPixel / 8)
}

// Hardware bundles the interfaces of one opened backend.
type Hardware struct {
	Engine    Engine
	Allocator Allocator

	// Carveout may be nil.
	Carveout Carveout

	// Phys may be nil, in which case only explicit physical addresses are
	// treated as zero-copy.
	Phys PhysQuerier

	Screen Screen
}

// Close releases the bundle in reverse order of acquisition and returns
// the first error.
func (h *Hardware) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if h.Engine != nil {
		keep(h.Engine.Close())
	}
	if h.Carveout != nil {
		keep(h.Carveout.Close())
	}
	if h.Allocator != nil {
		keep(h.Allocator.Close())
	}
	return first
}

// Config is passed to a Factory.
type Config struct {
	Paths  Paths
	Logger *slog.Logger
}

// Log returns c.Logger or a discarding logger.
func (c Config) Log() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// Paths are the device nodes a kernel backend opens.
type Paths struct {
	Engine      string
	Allocator   string
	Carveout    string
	Framebuffer []string
	FBIndex     int
}

// DefaultPaths returns the node layout of Samsung S5PC110 devices.
func DefaultPaths() Paths {
	return Paths{
		Engine:      "/dev/video1",
		Allocator:   "/dev/s3c-mem",
		Carveout:    "/dev/pmem_gpu1",
		Framebuffer: []string{"/dev/graphics/fb%d", "/dev/fb%d"},
		FBIndex:     0,
	}
}

// PageSize is the granularity carve-out regions are rounded to.
const PageSize = 4096

// PageRound rounds n up to a multiple of PageSize.
func PageRound(n int) int {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

// SplitCarveout divides a reserved region of total bytes between the
// staging slots: the destination gets one page-rounded panel frame and the
// source the remainder, never past total. ok is false when the region cannot
// hold a panel frame.
func SplitCarveout(total int, screen Screen) (sizes [NumSlots]int, ok bool) {
	dst := PageRound(screen.FrameBytes())
	if dst <= 0 || dst >= total {
		return sizes, false
	}
	src := PageRound(total - dst)
	if dst+src > total {
		src = total - dst
	}
	sizes[SlotSource] = src
	sizes[SlotDestination] = dst
	return sizes, true
}

// withDefaults fills empty fields of p from DefaultPaths.
func (p Paths) withDefaults() Paths {
	def := DefaultPaths()
	if p.Engine == "" {
		p.Engine = def.Engine
	}
	if p.Allocator == "" {
		p.Allocator = def.Allocator
	}
	if p.Carveout == "" {
		p.Carveout = def.Carveout
	}
	if len(p.Framebuffer) == 0 {
		p.Framebuffer = def.Framebuffer
	}
	return p
}

// ResolvedPaths returns c.Paths with empty fields set to their defaults.
func (c Config) ResolvedPaths() Paths {
	return c.Paths.withDefaults()
}
