// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Backend names.
const (
	NameFIMC     = "fimc"
	NameEmulator = "emulator"
)

// Factory opens a backend.
type Factory func(Config) (*Hardware, error)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for Default. The emulator is never picked implicitly:
	// it cannot reach memory the caller only knows by physical address.
	backendPriority = []string{NameFIMC}
)

// Register makes factory available under name, replacing any factory
// registered before. Backend packages call it from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes the factory registered under name.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns the factory registered under name, or nil.
func Get(name string) Factory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return backends[name]
}

// Open opens the backend registered under name.
func Open(name string, cfg Config) (*Hardware, error) {
	factory := Get(name)
	if factory == nil {
		return nil, fmt.Errorf("%w: %q is not registered", ErrBackendNotAvailable, name)
	}
	hw, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return hw, nil
}

// Default opens the first backend in priority order that opens without
// error. The errors of every attempt are joined when none succeeds.
func Default(cfg Config) (*Hardware, error) {
	registryMu.RLock()
	candidates := make([]string, 0, len(backendPriority))
	for _, name := range backendPriority {
		if _, ok := backends[name]; ok {
			candidates = append(candidates, name)
		}
	}
	registryMu.RUnlock()

	if len(candidates) == 0 {
		return nil, ErrBackendNotAvailable
	}

	var errs []error
	for _, name := range candidates {
		hw, err := Open(name, cfg)
		if err == nil {
			cfg.Log().Info("backend: opened", "name", name)
			return hw, nil
		}
		cfg.Log().Warn("backend: open failed", "name", name, "err", err)
		errs = append(errs, err)
	}
	return nil, errors.Join(append([]error{ErrBackendNotAvailable}, errs...)...)
}
