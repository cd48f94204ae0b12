package emulator

import (
	"encoding/binary"
	"errors"
	"image"
	"slices"
	"testing"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/format"
	"github.com/gogpu/copybit/internal/v4l2"
)

func newEngine(t *testing.T, cfg Config) (*Machine, *backend.Hardware) {
	t.Helper()
	m := New(cfg)
	hw, err := m.Hardware(backend.Config{})
	if err != nil {
		t.Fatalf("Hardware() error = %v", err)
	}
	return m, hw
}

// frame32 returns a w×h RGB32 frame where pixel (x, y) holds y*10+x.
func frame32(w, h int) []byte {
	b := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			binary.LittleEndian.PutUint32(b[(y*w+x)*4:], uint32(y*10+x))
		}
	}
	return b
}

func px32(b []byte, w, x, y int) uint32 {
	return binary.LittleEndian.Uint32(b[(y*w+x)*4:])
}

type txn struct {
	src    backend.PixFormat
	crop   image.Rectangle
	fb     backend.Framebuffer
	window image.Rectangle
	rot    int32
	buf    backend.DMABuffer
}

func run(e backend.Engine, tx txn) error {
	steps := []func() error{
		func() error { return e.SetSourceFormat(tx.src) },
		func() error { return e.SetSourceCrop(tx.crop) },
		func() error { return e.RequestBuffers(1) },
		func() error { return e.SetControl(v4l2.CIDRotation, tx.rot) },
		func() error { return e.SetFramebuffer(tx.fb) },
		func() error { return e.SetWindow(tx.window) },
		e.StreamOn,
		func() error { return e.Queue(tx.buf) },
	}
	var err error
	for _, step := range steps {
		if err = step(); err != nil {
			break
		}
	}
	e.StreamOff()
	e.RequestBuffers(0)
	return err
}

func single(phys uint64, n int) backend.DMABuffer {
	var b backend.DMABuffer
	b.Base[0] = phys
	b.Length[0] = n
	return b
}

func TestEngine_Identity(t *testing.T) {
	m, hw := newEngine(t, DefaultConfig())

	src := frame32(16, 8)
	dst := make([]byte, len(src))
	pf := backend.PixFormat{Width: 16, Height: 8, FourCC: format.FourCCRGB32}

	err := run(hw.Engine, txn{
		src:    pf,
		crop:   image.Rect(0, 0, 16, 8),
		fb:     backend.Framebuffer{Base: m.Map(dst), PixFormat: pf},
		window: image.Rect(0, 0, 16, 8),
		buf:    single(m.Map(src), len(src)),
	})
	if err != nil {
		t.Fatalf("transaction error = %v", err)
	}
	if !slices.Equal(dst, src) {
		t.Error("destination differs from source after 1:1 copy")
	}

	want := []Verb{
		VerbSetFormat, VerbSetCrop, VerbRequestBuffers, VerbSetControl,
		VerbSetFramebuffer, VerbSetWindow, VerbStreamOn, VerbQueue,
		VerbStreamOff, VerbRequestBuffers,
	}
	if got := m.Calls(); !slices.Equal(got, want) {
		t.Errorf("Calls() = %v, want %v", got, want)
	}

	txns := m.Transactions()
	if len(txns) != 1 || !txns[0].Executed {
		t.Fatalf("Transactions() = %+v, want one executed", txns)
	}
}

func TestEngine_Rotate(t *testing.T) {
	const sw, sh = 3, 2

	tests := []struct {
		name   string
		rot    int32
		fb     image.Point // programmed frame
		window image.Rectangle
		realW  int
		checks map[image.Point]uint32
	}{
		{
			name:   "90 clockwise",
			rot:    90,
			fb:     image.Pt(3, 2),
			window: image.Rect(0, 0, 3, 2),
			realW:  2,
			checks: map[image.Point]uint32{
				{0, 0}: 10,
				{1, 0}: 0,
				{0, 2}: 12,
				{1, 2}: 2,
			},
		},
		{
			name:   "180",
			rot:    180,
			fb:     image.Pt(3, 2),
			window: image.Rect(0, 0, 3, 2),
			realW:  3,
			checks: map[image.Point]uint32{
				{0, 0}: 12,
				{2, 1}: 0,
				{1, 0}: 11,
			},
		},
		{
			name:   "270 counter-clockwise",
			rot:    270,
			fb:     image.Pt(3, 2),
			window: image.Rect(0, 0, 3, 2),
			realW:  2,
			checks: map[image.Point]uint32{
				{0, 0}: 2,
				{1, 0}: 12,
				{1, 2}: 10,
				{0, 2}: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, hw := newEngine(t, DefaultConfig())
			src := frame32(sw, sh)
			dst := make([]byte, sw*sh*4)

			err := run(hw.Engine, txn{
				src:  backend.PixFormat{Width: sw, Height: sh, FourCC: format.FourCCRGB32},
				crop: image.Rect(0, 0, sw, sh),
				fb: backend.Framebuffer{
					Base:      m.Map(dst),
					PixFormat: backend.PixFormat{Width: tt.fb.X, Height: tt.fb.Y, FourCC: format.FourCCRGB32},
				},
				window: tt.window,
				rot:    tt.rot,
				buf:    single(m.Map(src), len(src)),
			})
			if err != nil {
				t.Fatalf("transaction error = %v", err)
			}
			for p, want := range tt.checks {
				if got := px32(dst, tt.realW, p.X, p.Y); got != want {
					t.Errorf("dst%v = %d, want %d", p, got, want)
				}
			}
		})
	}
}

func TestEngine_Downscale565(t *testing.T) {
	m, hw := newEngine(t, DefaultConfig())

	src := make([]byte, 4*4*2)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			binary.LittleEndian.PutUint16(src[(y*4+x)*2:], uint16(0xf000|y<<4|x))
		}
	}
	dst := make([]byte, 2*2*2)

	err := run(hw.Engine, txn{
		src:  backend.PixFormat{Width: 4, Height: 4, FourCC: format.FourCCRGB565},
		crop: image.Rect(0, 0, 4, 4),
		fb: backend.Framebuffer{
			Base:      m.Map(dst),
			PixFormat: backend.PixFormat{Width: 2, Height: 2, FourCC: format.FourCCRGB565},
		},
		window: image.Rect(0, 0, 2, 2),
		buf:    single(m.Map(src), len(src)),
	})
	if err != nil {
		t.Fatalf("transaction error = %v", err)
	}

	want := []uint16{0xf011, 0xf013, 0xf031, 0xf033}
	for i, w := range want {
		if got := binary.LittleEndian.Uint16(dst[i*2:]); got != w {
			t.Errorf("dst[%d] = %#x, want %#x", i, got, w)
		}
	}
}

func TestEngine_MixedFormatsAreRecordedOnly(t *testing.T) {
	m, hw := newEngine(t, DefaultConfig())

	src := make([]byte, format.FrameSize(format.YCbCr420SP, 16, 8))
	dst := make([]byte, 16*8*2)
	layout := format.Layout(format.FourCCNV12, 16, 8)
	base := m.Map(src)

	var buf backend.DMABuffer
	for i := range 2 {
		buf.Base[i] = base + uint64(layout[i].Offset)
		buf.Length[i] = layout[i].Length
	}

	err := run(hw.Engine, txn{
		src:  backend.PixFormat{Width: 16, Height: 8, FourCC: format.FourCCNV12},
		crop: image.Rect(0, 0, 16, 8),
		fb: backend.Framebuffer{
			Base:      m.Map(dst),
			PixFormat: backend.PixFormat{Width: 16, Height: 8, FourCC: format.FourCCRGB565},
		},
		window: image.Rect(0, 0, 16, 8),
		buf:    buf,
	})
	if err != nil {
		t.Fatalf("transaction error = %v", err)
	}
	if txns := m.Transactions(); len(txns) != 1 || txns[0].Executed {
		t.Errorf("Transactions() = %+v, want one recorded, not executed", txns)
	}
}

func TestEngine_BusFault(t *testing.T) {
	m, hw := newEngine(t, DefaultConfig())
	pf := backend.PixFormat{Width: 16, Height: 8, FourCC: format.FourCCRGB32}
	dst := make([]byte, 16*8*4)

	err := run(hw.Engine, txn{
		src:    pf,
		crop:   image.Rect(0, 0, 16, 8),
		fb:     backend.Framebuffer{Base: m.Map(dst), PixFormat: pf},
		window: image.Rect(0, 0, 16, 8),
		buf:    single(0x1000, 16*8*4),
	})
	if !errors.Is(err, ErrBusFault) {
		t.Fatalf("error = %v, want ErrBusFault", err)
	}
	// Stream-off and release still reached the engine.
	if got := m.Count(VerbStreamOff); got != 1 {
		t.Errorf("STREAMOFF count = %d, want 1", got)
	}
}

func TestEngine_StateChecks(t *testing.T) {
	_, hw := newEngine(t, DefaultConfig())
	e := hw.Engine

	if err := e.StreamOn(); !errors.Is(err, ErrBadState) {
		t.Errorf("StreamOn() without buffers error = %v, want ErrBadState", err)
	}
	if err := e.Queue(backend.DMABuffer{}); !errors.Is(err, ErrBadState) {
		t.Errorf("Queue() while stopped error = %v, want ErrBadState", err)
	}
	if err := e.SetControl(v4l2.CIDRotation, 45); !errors.Is(err, ErrBadState) {
		t.Errorf("SetControl(rotation, 45) error = %v, want ErrBadState", err)
	}
	if err := e.SetSourceFormat(backend.PixFormat{Width: 16, Height: 8, FourCC: format.FourCC(1)}); !errors.Is(err, ErrBadState) {
		t.Errorf("SetSourceFormat(unknown) error = %v, want ErrBadState", err)
	}
	if err := e.SetSourceFormat(backend.PixFormat{Width: 16, Height: 8, FourCC: format.FourCCRGB565}); err != nil {
		t.Fatalf("SetSourceFormat() error = %v", err)
	}
	if err := e.SetSourceCrop(image.Rect(8, 0, 24, 8)); !errors.Is(err, ErrBadState) {
		t.Errorf("SetSourceCrop(outside) error = %v, want ErrBadState", err)
	}
}

func TestEngine_Control(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Revision = 0x43
	_, hw := newEngine(t, cfg)

	v, err := hw.Engine.Control(v4l2.CIDFIMCVersion)
	if err != nil {
		t.Fatalf("Control(version) error = %v", err)
	}
	if v != 0x43 {
		t.Errorf("Control(version) = %#x, want 0x43", v)
	}
	if _, err := hw.Engine.Control(v4l2.CIDPrivateBase + 99); !errors.Is(err, ErrBadState) {
		t.Errorf("Control(unknown) error = %v, want ErrBadState", err)
	}
}

func TestEngine_Fault(t *testing.T) {
	m, hw := newEngine(t, DefaultConfig())
	boom := errors.New("boom")

	m.Fail(VerbQueryCap, boom)
	if _, err := hw.Engine.Capabilities(); !errors.Is(err, boom) {
		t.Errorf("Capabilities() error = %v, want boom", err)
	}
	m.Fail(VerbQueryCap, nil)
	caps, err := hw.Engine.Capabilities()
	if err != nil {
		t.Fatalf("Capabilities() after clear error = %v", err)
	}
	if !caps.Streaming || !caps.VideoOutput {
		t.Errorf("Capabilities() = %+v, want streaming video output", caps)
	}
}

func TestEngine_Closed(t *testing.T) {
	_, hw := newEngine(t, DefaultConfig())
	if err := hw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := hw.Engine.Capabilities(); !errors.Is(err, ErrClosed) {
		t.Errorf("Capabilities() after Close error = %v, want ErrClosed", err)
	}
	if _, err := hw.Allocator.Alloc(16); !errors.Is(err, ErrClosed) {
		t.Errorf("Alloc() after Close error = %v, want ErrClosed", err)
	}
}

func TestAllocator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemoryLimit = 8192
	m, hw := newEngine(t, cfg)
	a := hw.Allocator

	b, err := a.Alloc(4096)
	if err != nil {
		t.Fatalf("Alloc(4096) error = %v", err)
	}
	if b.Size() != 4096 {
		t.Errorf("Size() = %d, want 4096", b.Size())
	}
	if b.Phys%backend.PageSize != 0 {
		t.Errorf("Phys = %#x, want page aligned", b.Phys)
	}
	if _, err := a.Alloc(8192); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("Alloc over limit error = %v, want ErrOutOfMemory", err)
	}
	if got := m.Live(); got != 1 {
		t.Errorf("Live() = %d, want 1", got)
	}
	if err := a.Invalidate(b, 4096); err != nil {
		t.Errorf("Invalidate() error = %v", err)
	}
	if err := a.Free(b); err != nil {
		t.Errorf("Free() error = %v", err)
	}
	if err := a.Free(b); !errors.Is(err, ErrBadState) {
		t.Errorf("double Free() error = %v, want ErrBadState", err)
	}
	if got := m.Live(); got != 0 {
		t.Errorf("Live() after Free = %d, want 0", got)
	}
}

func TestAllocator_FreeMappedRejected(t *testing.T) {
	m, hw := newEngine(t, DefaultConfig())
	mem := make([]byte, 64)
	phys := m.Map(mem)
	if err := hw.Allocator.Free(backend.Block{Phys: phys, Mem: mem}); !errors.Is(err, ErrBadState) {
		t.Errorf("Free(mapped) error = %v, want ErrBadState", err)
	}
}

func TestCarveout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CarveoutSize = 8 << 20
	_, hw := newEngine(t, cfg)

	if hw.Carveout == nil {
		t.Fatal("Carveout = nil with CarveoutSize set")
	}
	frame := backend.PageRound(cfg.Screen.FrameBytes())

	src, ok := hw.Carveout.Region(backend.SlotSource)
	if !ok || src.Size() != 8<<20-frame {
		t.Errorf("source region = %d bytes (ok=%v), want %d", src.Size(), ok, 8<<20-frame)
	}
	dst, ok := hw.Carveout.Region(backend.SlotDestination)
	if !ok || dst.Size() != frame {
		t.Errorf("destination region = %d bytes (ok=%v), want %d", dst.Size(), ok, frame)
	}
	if dst.Phys < src.Phys+uint64(src.Size()) {
		t.Errorf("destination %#x overlaps source %#x+%d", dst.Phys, src.Phys, src.Size())
	}
	if _, ok := hw.Carveout.Region(backend.NumSlots); ok {
		t.Error("Region(NumSlots) ok = true")
	}
}

func TestCarveout_Disabled(t *testing.T) {
	_, hw := newEngine(t, DefaultConfig())
	if hw.Carveout != nil {
		t.Error("Carveout != nil without CarveoutSize")
	}
}

func TestPhys(t *testing.T) {
	m, hw := newEngine(t, DefaultConfig())
	m.Export(7, 0x5000_0000)

	if phys, ok := hw.Phys.PhysRegion(7); !ok || phys != 0x5000_0000 {
		t.Errorf("PhysRegion(7) = %#x, %v, want 0x50000000, true", phys, ok)
	}
	if _, ok := hw.Phys.PhysRegion(8); ok {
		t.Error("PhysRegion(8) ok = true for unexported memory")
	}
}

func TestRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.NameEmulator) {
		t.Fatal("emulator backend not registered")
	}
	hw, err := backend.Open(backend.NameEmulator, backend.Config{})
	if err != nil {
		t.Fatalf("Open(emulator) error = %v", err)
	}
	defer hw.Close()
	if hw.Screen.Width != 800 || hw.Screen.Height != 480 {
		t.Errorf("Screen = %+v, want 800x480", hw.Screen)
	}
}
