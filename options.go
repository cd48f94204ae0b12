// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package copybit

import (
	"sync"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/internal/fimc"
	"github.com/gogpu/copybit/internal/v4l2"
)

// Option configures a Session.
//
// Example:
//
//	// Kernel backend at the default node paths
//	s := copybit.NewSession()
//
//	// Engine on a different node
//	s := copybit.NewSession(copybit.WithPaths(backend.Paths{Engine: "/dev/video2"}))
type Option func(*options)

type options struct {
	backend string
	factory backend.Factory
	paths   backend.Paths
	limits  Limits
	locker  sync.Locker
}

func defaultOptions() options {
	return options{
		limits: DefaultLimits(),
		locker: new(sync.Mutex),
	}
}

// WithBackend selects a registered backend by name instead of the default
// priority order.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithBackendFactory opens the hardware through f. It takes precedence
// over WithBackend.
//
// Example:
//
//	m := emulator.New(emulator.DefaultConfig())
//	s := copybit.NewSession(copybit.WithBackendFactory(m.Factory()))
func WithBackendFactory(f backend.Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithPaths overrides device node paths. Empty fields keep their defaults.
func WithPaths(p backend.Paths) Option {
	return func(o *options) {
		o.paths = p
	}
}

// WithLimits replaces the engine thresholds.
func WithLimits(l Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithLocker sets the lock that serializes Open and Close. Hosts that
// already hold a lock around their compositor state can pass it here.
// A nil locker keeps the default.
func WithLocker(l sync.Locker) Option {
	return func(o *options) {
		if l != nil {
			o.locker = l
		}
	}
}

// Limits are the engine thresholds.
type Limits struct {
	// Minimum source and destination region sizes.
	SrcMinWidth  int
	SrcMinHeight int
	DstMinWidth  int
	DstMinHeight int

	// MaxScale is the reported minification and magnification limit.
	MaxScale int

	// VersionControl is the engine control the revision is read from.
	VersionControl uint32
}

// DefaultLimits returns the thresholds of the S5PC110 post-processor.
func DefaultLimits() Limits {
	return Limits{
		SrcMinWidth:    16,
		SrcMinHeight:   8,
		DstMinWidth:    8,
		DstMinHeight:   4,
		MaxScale:       63,
		VersionControl: v4l2.CIDFIMCVersion,
	}
}

func (l Limits) driver() fimc.Limits {
	return fimc.Limits{
		SrcMinWidth:    l.SrcMinWidth,
		SrcMinHeight:   l.SrcMinHeight,
		DstMinWidth:    l.DstMinWidth,
		DstMinHeight:   l.DstMinHeight,
		VersionControl: l.VersionControl,
	}
}
