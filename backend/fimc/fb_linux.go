// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package fimc

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/internal/ioc"
)

// fbioGetVScreenInfo is FBIOGET_VSCREENINFO; the fb ioctls predate _IOC.
const fbioGetVScreenInfo = 0x4600

type fbBitfield struct {
	Offset   uint32
	Length   uint32
	MSBRight uint32
}

// fbVarScreenInfo is struct fb_var_screeninfo.
type fbVarScreenInfo struct {
	XRes         uint32
	YRes         uint32
	XResVirtual  uint32
	YResVirtual  uint32
	XOffset      uint32
	YOffset      uint32
	BitsPerPixel uint32
	Grayscale    uint32
	Red          fbBitfield
	Green        fbBitfield
	Blue         fbBitfield
	Transp       fbBitfield
	Nonstd       uint32
	Activate     uint32
	Height       uint32
	Width        uint32
	AccelFlags   uint32
	Pixclock     uint32
	LeftMargin   uint32
	RightMargin  uint32
	UpperMargin  uint32
	LowerMargin  uint32
	HSyncLen     uint32
	VSyncLen     uint32
	Sync         uint32
	VMode        uint32
	Rotate       uint32
	Colorspace   uint32
	Reserved     [4]uint32
}

// ReadScreen reads the panel geometry from the first framebuffer node that
// opens. templates are fmt patterns taking the framebuffer index.
func ReadScreen(templates []string, index int) (backend.Screen, error) {
	var errs []error
	for _, tpl := range templates {
		path := fmt.Sprintf(tpl, index)
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", path, err))
			continue
		}
		var info fbVarScreenInfo
		err = ioc.Do(fd, fbioGetVScreenInfo, unsafe.Pointer(&info))
		unix.Close(fd)
		if err != nil {
			return backend.Screen{}, fmt.Errorf("fimc: %s FBIOGET_VSCREENINFO: %w", path, err)
		}
		return backend.Screen{
			Width:        int(info.XRes),
			Height:       int(info.YRes),
			BitsPerPixel: int(info.BitsPerPixel),
		}, nil
	}
	if len(errs) == 0 {
		return backend.Screen{}, errors.New("fimc: no framebuffer node configured")
	}
	return backend.Screen{}, fmt.Errorf("fimc: no framebuffer: %w", errors.Join(errs...))
}
