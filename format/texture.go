// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package format

import "github.com/gogpu/gputypes"

// TextureFormat returns the GPU texture format a compositor would sample
// a layer of format f with, or TextureFormatUndefined when the layer cannot
// be uploaded as a single texture.
//
// A compositor routes a layer to the post-processor when CanAccelerate is
// true and to the GPU when TextureFormat is defined.
func (f Format) TextureFormat() gputypes.TextureFormat {
	switch f {
	case RGBA8888, RGBX8888:
		return gputypes.TextureFormatRGBA8Unorm
	case BGRA8888:
		return gputypes.TextureFormatBGRA8Unorm
	default:
		return gputypes.TextureFormatUndefined
	}
}

// LumaTextureFormat returns the single-channel texture format of the Y
// plane for planar and semi-planar YUV formats.
func (f Format) LumaTextureFormat() gputypes.TextureFormat {
	d, ok := catalog[f]
	if !ok || d.hw == 0 {
		return gputypes.TextureFormatUndefined
	}
	if hw := hwTable[d.hw]; hw.YUV && hw.Planes > 1 {
		return gputypes.TextureFormatR8Unorm
	}
	return gputypes.TextureFormatUndefined
}
