package ioc

import "testing"

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		req  uintptr
		want uintptr
	}{
		// VIDIOC_STREAMON = _IOW('V', 18, int)
		{"streamon", IOW('V', 18, 4), 0x40045612},
		// VIDIOC_QUERYCAP = _IOR('V', 0, struct v4l2_capability)
		{"querycap", IOR('V', 0, 104), 0x80685600},
		// VIDIOC_S_CTRL = _IOWR('V', 28, struct v4l2_control)
		{"s_ctrl", IOWR('V', 28, 8), 0xc008561c},
		// FBIOGET_VSCREENINFO is a bare number in the kernel headers.
		{"io", IO('F', 0), 0x4600},
		// PMEM_GET_PHYS = _IOW('p', 1, unsigned int)
		{"pmem get phys", IOW('p', 1, 4), 0x40047001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.req != tt.want {
				t.Errorf("request = %#x, want %#x", tt.req, tt.want)
			}
		})
	}
}

func TestEncode_WideNumber(t *testing.T) {
	// S3C_MEM_CACHEABLE_ALLOC = _IOWR('M', 316, struct s3c_mem_alloc).
	// 316 does not fit in eight bits and carries into the type field.
	got := IOWR('M', 316, 12)
	want := uintptr(3<<30 | 12<<16 | 'M'<<8 | 316)
	if got != want {
		t.Errorf("IOWR('M', 316, 12) = %#x, want %#x", got, want)
	}
}

func TestDirSize(t *testing.T) {
	req := IOWR('V', 5, 208)
	if got := Dir(req); got != Read|Write {
		t.Errorf("Dir = %d, want %d", got, Read|Write)
	}
	if got := Size(req); got != 208 {
		t.Errorf("Size = %d, want 208", got)
	}
}
