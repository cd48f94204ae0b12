// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package copybit

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/copybit/backend"
	"github.com/gogpu/copybit/format"
	"github.com/gogpu/copybit/internal/fimc"
	"github.com/gogpu/copybit/internal/geom"
	"github.com/gogpu/copybit/internal/physmem"
	"github.com/gogpu/copybit/internal/resolve"
)

// Session shares one opened engine between the handles of a host. The
// first Open opens the hardware; the Close matching the last Open
// releases it.
//
// A host creates one Session and passes it to every component that blits.
// Open and Close are serialized by the session lock (see WithLocker).
type Session struct {
	lock sync.Locker
	opts options

	refs int
	dev  *Device
}

// NewSession returns a session that opens the hardware on first use.
func NewSession(opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Session{lock: o.locker, opts: o}
}

// Open returns the session's Device, opening the hardware if no handle is
// open. Every successful Open must be paired with one Device.Close.
func (s *Session) Open() (*Device, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.refs > 0 {
		s.refs++
		return s.dev, nil
	}

	d, err := s.openDevice()
	if err != nil {
		return nil, err
	}
	s.dev = d
	s.refs = 1
	return d, nil
}

// Refs returns the number of open handles.
func (s *Session) Refs() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.refs
}

func (s *Session) openDevice() (*Device, error) {
	log := Logger()
	cfg := backend.Config{Paths: s.opts.paths, Logger: log}

	var hw *backend.Hardware
	var err error
	switch {
	case s.opts.factory != nil:
		hw, err = s.opts.factory(cfg)
	case s.opts.backend != "":
		hw, err = backend.Open(s.opts.backend, cfg)
	default:
		hw, err = backend.Default(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("copybit: open backend: %w", err)
	}

	drv, err := fimc.Open(hw.Engine, s.opts.limits.driver(), log)
	if err != nil {
		if cerr := hw.Close(); cerr != nil {
			log.Warn("copybit: close after failed open", "err", cerr)
		}
		return nil, fmt.Errorf("copybit: open engine: %w", err)
	}

	pool := physmem.New(hw.Allocator, hw.Carveout, log)
	d := &Device{
		session: s,
		hw:      hw,
		drv:     drv,
		pool:    pool,
		res:     resolve.New(pool, hw.Phys, log),
		log:     log,
		limits:  s.opts.limits,
		alpha:   opaque,
	}
	log.Info("copybit: session opened",
		"revision", fmt.Sprintf("%#x", drv.Revision()), "version", d.Version(),
		"screen", fmt.Sprintf("%dx%d", hw.Screen.Width, hw.Screen.Height),
		"carveout", hw.Carveout != nil)
	return d, nil
}

// release drops one handle and tears the device down with the last one.
func (s *Session) release(d *Device) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.refs == 0 || s.dev != d {
		return ErrClosed
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	s.dev = nil
	return d.teardown()
}

// opaque is the plane alpha of a blit without blending.
const opaque = 255

// Device is an open handle on the engine. It is returned by Session.Open
// and shared by every opener of the session.
//
// Blits on one Device are serialized: the engine and the two staging
// slots can serve a single caller at a time. Set changes the state of the
// next blit only; every blit restores the defaults when it returns.
type Device struct {
	session *Session
	hw      *backend.Hardware
	drv     *fimc.Driver
	pool    *physmem.Pool
	res     *resolve.Resolver
	log     *slog.Logger
	limits  Limits

	mu        sync.Mutex
	closed    bool
	transform geom.Transform
	alpha     int
}

// Close releases one handle. The hardware and staging memory are
// released by the Close matching the last Open. Closing more often than
// opening returns ErrClosed.
func (d *Device) Close() error {
	return d.session.release(d)
}

// teardown frees the staging buffers, then closes the engine and the
// memory nodes. It waits for a running blit.
func (d *Device) teardown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true

	var first error
	if err := d.pool.Close(); err != nil {
		d.log.Warn("copybit: releasing staging memory", "err", err)
		first = err
	}
	if err := d.hw.Close(); err != nil {
		d.log.Warn("copybit: releasing hardware", "err", err)
		if first == nil {
			first = err
		}
	}
	d.log.Info("copybit: session closed")
	return first
}

// Version returns 1 for the revision 0x50 post-processor and 0 for
// earlier units.
func (d *Device) Version() int {
	if d.drv.Revision() == format.Revision50 {
		return 1
	}
	return 0
}

// Screen returns the panel geometry read at open.
func (d *Device) Screen() backend.Screen {
	return d.hw.Screen
}
