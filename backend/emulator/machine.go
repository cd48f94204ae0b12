// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package emulator is an in-process model of the post-processor, its
// physically contiguous allocator, the boot-time carve-out and the panel.
//
// A Machine owns a simulated bus address space. Memory handed to the
// engine must be registered in it, through Alloc, the carve-out, or Map for
// caller-owned bytes. Queue then checks every plane address against the
// registered regions and, for RGB formats, executes the scale and rotation
// with golang.org/x/image/draw.
//
// The package registers itself as backend.NameEmulator. It is never picked
// by backend.Default; select it explicitly.
package emulator

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/format"
)

// Emulator errors.
var (
	// ErrBusFault is returned by Queue when a plane or the framebuffer
	// is not inside a registered region.
	ErrBusFault = errors.New("emulator: bus fault")

	// ErrOutOfMemory is returned by Alloc past Config.MemoryLimit.
	ErrOutOfMemory = errors.New("emulator: out of memory")

	// ErrBadState is returned for calls made in the wrong engine state.
	ErrBadState = errors.New("emulator: invalid engine state")

	// ErrClosed is returned after the handle was closed.
	ErrClosed = errors.New("emulator: closed")
)

// Verb names one hardware call, for fault injection and call logs.
type Verb string

// Engine verbs carry the V4L2 request name they stand for.
const (
	VerbQueryCap       Verb = "QUERYCAP"
	VerbGetFormat      Verb = "G_FMT"
	VerbGetControl     Verb = "G_CTRL"
	VerbSetControl     Verb = "S_CTRL"
	VerbSetFormat      Verb = "S_FMT"
	VerbSetCrop        Verb = "S_CROP"
	VerbRequestBuffers Verb = "REQBUFS"
	VerbSetFramebuffer Verb = "S_FBUF"
	VerbSetWindow      Verb = "S_FMT_OVERLAY"
	VerbStreamOn       Verb = "STREAMON"
	VerbQueue          Verb = "QBUF"
	VerbStreamOff      Verb = "STREAMOFF"
	VerbCloseEngine    Verb = "CLOSE_ENGINE"
)

// Memory verbs.
const (
	VerbAlloc          Verb = "ALLOC"
	VerbFree           Verb = "FREE"
	VerbInvalidate     Verb = "CACHE_INV"
	VerbPhys           Verb = "GET_PHYS"
	VerbUnmapCarveout  Verb = "UNMAP"
	VerbCloseAllocator Verb = "CLOSE_ALLOCATOR"
)

// Config describes the emulated device.
type Config struct {
	// Revision is reported through the version control.
	Revision uint32

	Caps   backend.Caps
	Screen backend.Screen

	// MemoryLimit caps the bytes live in Alloc blocks; 0 is unlimited.
	MemoryLimit int

	// CarveoutSize is the reserved region split between the staging
	// slots; 0 disables the carve-out.
	CarveoutSize int
}

// DefaultConfig returns a revision 0x50 unit attached to an 800×480
// 32-bit panel, without carve-out.
func DefaultConfig() Config {
	return Config{
		Revision: format.Revision50,
		Caps: backend.Caps{
			Driver:      "emulator",
			Card:        "FIMC post-processor",
			Streaming:   true,
			VideoOutput: true,
		},
		Screen: backend.Screen{Width: 800, Height: 480, BitsPerPixel: 32},
	}
}

// Transaction is the programming seen by one Queue call.
type Transaction struct {
	Source      backend.PixFormat
	Crop        image.Rectangle
	Framebuffer backend.Framebuffer
	Window      image.Rectangle
	Rotation    int
	Buffer      backend.DMABuffer

	// Executed is true when pixels were written.
	Executed bool
}

type regionKind uint8

const (
	kindMapped regionKind = iota
	kindAlloc
	kindCarveout
)

type region struct {
	phys uint64
	mem  []byte
	kind regionKind
}

func (r *region) end() uint64 {
	return r.phys + uint64(len(r.mem))
}

// Machine is one emulated device. It is safe for concurrent use.
type Machine struct {
	mu  sync.Mutex
	cfg Config

	next    uint64
	regions []*region // sorted by phys
	exports map[int]uint64

	faults map[Verb]error
	calls  []Verb
	txns   []Transaction

	carve [backend.NumSlots]*region
	eng   engineState
}

// busBase is where the simulated address space starts.
const busBase = 0x4000_0000

// New creates a machine.
func New(cfg Config) *Machine {
	m := &Machine{
		cfg:     cfg,
		next:    busBase,
		exports: make(map[int]uint64),
		faults:  make(map[Verb]error),
	}
	m.eng.controls = make(map[uint32]int32)
	if sizes, ok := backend.SplitCarveout(cfg.CarveoutSize, cfg.Screen); ok {
		for s := backend.SlotSource; s < backend.NumSlots; s++ {
			m.carve[s] = m.insertLocked(make([]byte, sizes[s]), kindCarveout)
		}
	}
	return m
}

// Fail makes every later call of v return err. A nil err clears the fault.
func (m *Machine) Fail(v Verb, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, v)
		return
	}
	m.faults[v] = err
}

// Calls returns the verbs issued so far, in order.
func (m *Machine) Calls() []Verb {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// ResetCalls clears the call log.
func (m *Machine) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = m.calls[:0]
}

// Count returns how many times v was issued.
func (m *Machine) Count(v Verb) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == v {
			n++
		}
	}
	return n
}

// Transactions returns every queued transaction.
func (m *Machine) Transactions() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.txns)
}

// Live returns the number of Alloc blocks not yet freed.
func (m *Machine) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.regions {
		if r.kind == kindAlloc {
			n++
		}
	}
	return n
}

// Map registers caller memory in the bus address space and returns its
// physical address. The engine reads and writes mem in place.
func (m *Machine) Map(mem []byte) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(mem, kindMapped).phys
}

// Export makes memoryID report phys as its contiguous base.
func (m *Machine) Export(memoryID int, phys uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports[memoryID] = phys
}

// callLocked records v and returns the injected fault, if any.
// m.mu must be held.
func (m *Machine) callLocked(v Verb) error {
	m.calls = append(m.calls, v)
	if err := m.faults[v]; err != nil {
		return fmt.Errorf("emulator: %s: %w", v, err)
	}
	return nil
}

func (m *Machine) insertLocked(mem []byte, kind regionKind) *region {
	r := &region{phys: m.next, mem: mem, kind: kind}
	m.next += uint64(backend.PageRound(max(len(mem), 1)))
	i, _ := slices.BinarySearchFunc(m.regions, r.phys, func(x *region, p uint64) int {
		switch {
		case x.phys < p:
			return -1
		case x.phys > p:
			return 1
		}
		return 0
	})
	m.regions = slices.Insert(m.regions, i, r)
	return r
}

// indexLocked returns the index of the region starting at phys, or -1.
func (m *Machine) indexLocked(phys uint64) int {
	for i, r := range m.regions {
		if r.phys == phys {
			return i
		}
	}
	return -1
}

// spanLocked returns the bytes [phys, phys+n) when they lie inside one
// registered region.
func (m *Machine) spanLocked(phys uint64, n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	for _, r := range m.regions {
		if phys >= r.phys && phys+uint64(n) <= r.end() {
			off := phys - r.phys
			return r.mem[off : off+uint64(n)], nil
		}
	}
	return nil, fmt.Errorf("%w: %#x+%d", ErrBusFault, phys, n)
}

// Hardware opens a fresh handle set on m.
func (m *Machine) Hardware(cfg backend.Config) (*backend.Hardware, error) {
	m.mu.Lock()
	screen := m.cfg.Screen
	hasCarve := m.carve[backend.SlotSource] != nil
	m.mu.Unlock()

	hw := &backend.Hardware{
		Engine:    &Engine{m: m},
		Allocator: &Allocator{m: m},
		Phys:      &Phys{m: m},
		Screen:    screen,
	}
	if hasCarve {
		hw.Carveout = &Carveout{m: m}
	}
	cfg.Log().Debug("emulator: opened", "revision", fmt.Sprintf("%#x", m.cfg.Revision), "carveout", hasCarve)
	return hw, nil
}

// Factory returns a backend.Factory bound to m.
func (m *Machine) Factory() backend.Factory {
	return m.Hardware
}

func init() {
	backend.Register(backend.NameEmulator, func(cfg backend.Config) (*backend.Hardware, error) {
		return New(DefaultConfig()).Hardware(cfg)
	})
}
