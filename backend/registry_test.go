package backend

import (
	"errors"
	"slices"
	"testing"
)

func TestRegisterUnregister(t *testing.T) {
	const name = "test-registry"
	factory := func(Config) (*Hardware, error) { return &Hardware{}, nil }

	Register(name, factory)
	t.Cleanup(func() { Unregister(name) })

	if !IsRegistered(name) {
		t.Fatalf("IsRegistered(%q) = false, want true", name)
	}
	if !slices.Contains(Available(), name) {
		t.Errorf("Available() = %v, want it to contain %q", Available(), name)
	}
	if Get(name) == nil {
		t.Error("Get returned nil for a registered backend")
	}

	Unregister(name)
	if IsRegistered(name) {
		t.Errorf("IsRegistered(%q) = true after Unregister", name)
	}
	if Get(name) != nil {
		t.Error("Get returned a factory after Unregister")
	}
}

func TestAvailableSorted(t *testing.T) {
	for _, n := range []string{"zz-test", "aa-test"} {
		Register(n, func(Config) (*Hardware, error) { return nil, nil })
		t.Cleanup(func() { Unregister(n) })
	}
	if names := Available(); !slices.IsSorted(names) {
		t.Errorf("Available() = %v, want sorted", names)
	}
}

func TestOpen(t *testing.T) {
	want := &Hardware{Screen: Screen{Width: 800, Height: 480, BitsPerPixel: 32}}
	Register("test-open", func(Config) (*Hardware, error) { return want, nil })
	t.Cleanup(func() { Unregister("test-open") })

	hw, err := Open("test-open", Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if hw != want {
		t.Errorf("Open() = %p, want %p", hw, want)
	}
}

func TestOpen_NotRegistered(t *testing.T) {
	_, err := Open("no-such-backend", Config{})
	if !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open() error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestOpen_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	Register("test-fail", func(Config) (*Hardware, error) { return nil, boom })
	t.Cleanup(func() { Unregister("test-fail") })

	if _, err := Open("test-fail", Config{}); !errors.Is(err, boom) {
		t.Errorf("Open() error = %v, want wrapped boom", err)
	}
}

func TestDefault(t *testing.T) {
	saved := Get(NameFIMC)
	t.Cleanup(func() {
		if saved != nil {
			Register(NameFIMC, saved)
		} else {
			Unregister(NameFIMC)
		}
	})

	t.Run("not registered", func(t *testing.T) {
		Unregister(NameFIMC)
		if _, err := Default(Config{}); !errors.Is(err, ErrBackendNotAvailable) {
			t.Errorf("Default() error = %v, want ErrBackendNotAvailable", err)
		}
	})

	t.Run("open fails", func(t *testing.T) {
		boom := errors.New("no device")
		Register(NameFIMC, func(Config) (*Hardware, error) { return nil, boom })
		_, err := Default(Config{})
		if !errors.Is(err, ErrBackendNotAvailable) || !errors.Is(err, boom) {
			t.Errorf("Default() error = %v, want ErrBackendNotAvailable and boom", err)
		}
	})

	t.Run("emulator is not implicit", func(t *testing.T) {
		Unregister(NameFIMC)
		Register(NameEmulator, func(Config) (*Hardware, error) { return &Hardware{}, nil })
		t.Cleanup(func() { Unregister(NameEmulator) })
		if _, err := Default(Config{}); !errors.Is(err, ErrBackendNotAvailable) {
			t.Errorf("Default() error = %v, want ErrBackendNotAvailable", err)
		}
	})

	t.Run("opens", func(t *testing.T) {
		want := &Hardware{}
		Register(NameFIMC, func(Config) (*Hardware, error) { return want, nil })
		hw, err := Default(Config{})
		if err != nil {
			t.Fatalf("Default() error = %v", err)
		}
		if hw != want {
			t.Error("Default() returned a different bundle")
		}
	})
}

type closeRecorder struct {
	order *[]string
	name  string
	err   error
}

func (c closeRecorder) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

type fakeCarveout struct{ closeRecorder }

func (fakeCarveout) Region(Slot) (Block, bool) { return Block{}, false }

func TestHardwareClose(t *testing.T) {
	var order []string
	first := errors.New("carveout")
	hw := &Hardware{
		Carveout: fakeCarveout{closeRecorder{order: &order, name: "carveout", err: first}},
	}
	if err := hw.Close(); !errors.Is(err, first) {
		t.Errorf("Close() error = %v, want %v", err, first)
	}
	if !slices.Equal(order, []string{"carveout"}) {
		t.Errorf("close order = %v", order)
	}
}

func TestScreenFrameBytes(t *testing.T) {
	s := Screen{Width: 800, Height: 480, BitsPerPixel: 32}
	if got := s.FrameBytes(); got != 800*480*4 {
		t.Errorf("FrameBytes() = %d, want %d", got, 800*480*4)
	}
}

func TestSlotString(t *testing.T) {
	if SlotSource.String() != "source" || SlotDestination.String() != "destination" {
		t.Errorf("Slot strings = %q, %q", SlotSource, SlotDestination)
	}
}

func TestDefaultPaths(t *testing.T) {
	p := DefaultPaths()
	if p.Engine != "/dev/video1" {
		t.Errorf("Engine = %q, want /dev/video1", p.Engine)
	}
	if len(p.Framebuffer) != 2 || p.Framebuffer[0] != "/dev/graphics/fb%d" {
		t.Errorf("Framebuffer = %v", p.Framebuffer)
	}
}

func TestPageRound(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 0},
		{1, 4096},
		{4096, 4096},
		{4097, 8192},
	}
	for _, tt := range tests {
		if got := PageRound(tt.in); got != tt.want {
			t.Errorf("PageRound(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSplitCarveout(t *testing.T) {
	screen := Screen{Width: 800, Height: 480, BitsPerPixel: 32}
	frame := PageRound(800 * 480 * 4)

	sizes, ok := SplitCarveout(8<<20, screen)
	if !ok {
		t.Fatal("SplitCarveout() ok = false")
	}
	if sizes[SlotDestination] != frame {
		t.Errorf("destination = %d, want %d", sizes[SlotDestination], frame)
	}
	if sizes[SlotSource] != 8<<20-frame {
		t.Errorf("source = %d, want %d", sizes[SlotSource], 8<<20-frame)
	}

	if _, ok := SplitCarveout(frame, screen); ok {
		t.Error("SplitCarveout() ok = true for a region with no room for the source")
	}
	if _, ok := SplitCarveout(8<<20, Screen{}); ok {
		t.Error("SplitCarveout() ok = true without panel geometry")
	}
}

func TestResolvedPaths(t *testing.T) {
	cfg := Config{Paths: Paths{Engine: "/dev/video3", FBIndex: 1}}
	p := cfg.ResolvedPaths()
	if p.Engine != "/dev/video3" {
		t.Errorf("Engine = %q, want /dev/video3", p.Engine)
	}
	if p.Allocator != "/dev/s3c-mem" || p.Carveout != "/dev/pmem_gpu1" {
		t.Errorf("memory paths = %q, %q, want defaults", p.Allocator, p.Carveout)
	}
	if len(p.Framebuffer) != 2 || p.FBIndex != 1 {
		t.Errorf("Framebuffer = %v index %d, want defaults with index 1", p.Framebuffer, p.FBIndex)
	}
}
