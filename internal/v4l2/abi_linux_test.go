//go:build linux

package v4l2

import (
	"testing"
	"unsafe"
)

func TestPortableSizes(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"Capability", unsafe.Sizeof(Capability{}), 104},
		{"PixFormat", unsafe.Sizeof(PixFormat{}), 32},
		{"Rect", unsafe.Sizeof(Rect{}), 16},
		{"Crop", unsafe.Sizeof(Crop{}), 20},
		{"RequestBuffers", unsafe.Sizeof(RequestBuffers{}), 20},
		{"Timecode", unsafe.Sizeof(Timecode{}), 16},
		{"Control", unsafe.Sizeof(Control{}), 8},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("sizeof(%s) = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestWordSizes(t *testing.T) {
	ptr := unsafe.Sizeof(uintptr(0))

	tests := []struct {
		name  string
		got   uintptr
		want4 uintptr
		want8 uintptr
	}{
		{"Format", unsafe.Sizeof(Format{}), 204, 208},
		{"Framebuffer", unsafe.Sizeof(Framebuffer{}), 44, 48},
		{"Buffer", unsafe.Sizeof(Buffer{}), 68, 88},
		{"FIMCBuffer", unsafe.Sizeof(FIMCBuffer{}), 24, 40},
	}

	for _, tt := range tests {
		want := tt.want8
		if ptr == 4 {
			want = tt.want4
		}
		if tt.got != want {
			t.Errorf("sizeof(%s) = %d, want %d", tt.name, tt.got, want)
		}
	}
}

func TestFormatUnionOffset(t *testing.T) {
	var f Format
	got := unsafe.Offsetof(f.Raw)
	if got != unsafe.Sizeof(uintptr(0)) && got != 4 {
		t.Errorf("union offset = %d", got)
	}
	if unsafe.Pointer(f.Pix()) != unsafe.Pointer(&f.Raw) {
		t.Error("Pix does not alias the union")
	}
	if unsafe.Pointer(f.Win()) != unsafe.Pointer(&f.Raw) {
		t.Error("Win does not alias the union")
	}
}

func TestRequestNumbers(t *testing.T) {
	if VidiocQueryCap != 0x80685600 {
		t.Errorf("VidiocQueryCap = %#x, want 0x80685600", VidiocQueryCap)
	}
	if VidiocStreamOn != 0x40045612 {
		t.Errorf("VidiocStreamOn = %#x, want 0x40045612", VidiocStreamOn)
	}
	if VidiocStreamOff != 0x40045613 {
		t.Errorf("VidiocStreamOff = %#x, want 0x40045613", VidiocStreamOff)
	}
	if VidiocSetControl != 0xc008561c {
		t.Errorf("VidiocSetControl = %#x, want 0xc008561c", VidiocSetControl)
	}
	if VidiocSetCrop != 0x4014563c {
		t.Errorf("VidiocSetCrop = %#x, want 0x4014563c", VidiocSetCrop)
	}
	if VidiocRequestBuffers != 0xc0145608 {
		t.Errorf("VidiocRequestBuffers = %#x, want 0xc0145608", VidiocRequestBuffers)
	}
}
