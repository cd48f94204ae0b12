// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package copybit

import (
	"image"
	"iter"
)

// Region yields the clip rectangles of one blit. A region is consumed
// once; Next returns false when it is exhausted.
type Region interface {
	Next() (image.Rectangle, bool)
}

type rects struct {
	rs []image.Rectangle
}

// Rects returns a region over rs.
func Rects(rs ...image.Rectangle) Region {
	return &rects{rs: rs}
}

func (r *rects) Next() (image.Rectangle, bool) {
	if len(r.rs) == 0 {
		return image.Rectangle{}, false
	}
	c := r.rs[0]
	r.rs = r.rs[1:]
	return c, true
}

type seqRegion struct {
	next func() (image.Rectangle, bool)
	stop func()
}

// Seq adapts an iterator to a Region. Blit stops the iterator when it
// returns, also when it gives up early.
func Seq(seq iter.Seq[image.Rectangle]) Region {
	next, stop := iter.Pull(seq)
	return &seqRegion{next: next, stop: stop}
}

func (s *seqRegion) Next() (image.Rectangle, bool) {
	return s.next()
}

func (s *seqRegion) Stop() {
	s.stop()
}

// stopper is implemented by regions holding resources.
type stopper interface {
	Stop()
}
