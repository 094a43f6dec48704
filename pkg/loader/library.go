// SPDX-License-Identifier: Apache-2.0
/*
Copyright (C) 2026 The MiStomp Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package loader

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BowmanRA/mistomp/pkg/ladspa"
	"github.com/BowmanRA/mistomp/pkg/ptr"
)

// MaxPluginsPerModule is the largest number of descriptors enumerated from a
// single module.
const MaxPluginsPerModule = 4096

var (
	// ErrClosed is returned when using a Library after Close.
	ErrClosed = errors.New("plugin module is closed")

	// ErrPluginNotFound is returned when no descriptor matches a query.
	ErrPluginNotFound = errors.New("plugin not found")
)

// SymbolSource resolves the exported symbols of a plugin module.
type SymbolSource interface {
	// Lookup returns the address of the named symbol.
	Lookup(name string) (uintptr, error)

	// Owns returns true if addr is a function address that can be called
	// safely, i.e. it lies inside a loaded module.
	Owns(addr uintptr) bool

	// Close releases the module. It is called once by Library.Close.
	Close() error
}

// DiscoveryFunction is the ladspa_descriptor entry point of a module. It
// returns the address of the descriptor at the given index, or zero when
// there are no more plugins.
type DiscoveryFunction interface {
	Describe(index uint64) uintptr
}

// Library represents a LADSPA plugin module, loaded either from a shared
// object in the local filesystem or from a static symbol table.
//
// A Library must stay open for as long as any instance of its plugins is
// alive: instances Retain the library when created and Release it when
// cleaned up.
type Library struct {
	m        sync.Mutex
	path     string
	source   SymbolSource
	discover DiscoveryFunction
	opts     ladspa.DecodeOptions
	mem      ladspa.Memory
	live     int
	closed   bool
}

// Open loads the LADSPA module at the given path, resolving every symbol
// eagerly. If successful, returns a *Library and a nil error. The error
// wraps ladspa.ErrLoad if the file cannot be loaded, and
// ladspa.ErrMissingEntryPoint if it is not a LADSPA module.
func Open(path string) (*Library, error) {
	src, err := dlopen(path)
	if err != nil {
		return nil, err
	}
	return NewLibrary(path, src)
}

// NewLibrary is the same as Open, but resolves symbols through the given
// source. The source is closed if the entry point cannot be resolved.
func NewLibrary(path string, src SymbolSource) (*Library, error) {
	addr, err := src.Lookup(EntryPoint)
	if err != nil || addr == 0 {
		cerr := src.Close()
		if err == nil {
			err = errors.New("symbol resolves to null")
		}
		return nil, errors.Join(fmt.Errorf("%w: %s: %s", ladspa.ErrMissingEntryPoint, path, err.Error()), cerr)
	}
	return &Library{
		path:     path,
		source:   src,
		discover: nativeDiscovery(addr),
		mem:      ptr.Native{},
		opts: ladspa.DecodeOptions{
			Layout:      ladspa.HostLayout(),
			ResolveFunc: src.Owns,
		},
	}, nil
}

// Path returns the path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// LoadDescriptor returns the descriptor at the given index. It returns a
// nil descriptor and a nil error if the module has no plugin at index.
func (l *Library) LoadDescriptor(index uint64) (*ladspa.Descriptor, error) {
	l.m.Lock()
	defer l.m.Unlock()
	return l.loadDescriptor(index)
}

func (l *Library) loadDescriptor(index uint64) (*ladspa.Descriptor, error) {
	if l.closed {
		return nil, ErrClosed
	}
	addr := l.discover.Describe(index)
	if addr == 0 {
		return nil, nil
	}
	d, err := ladspa.Decode(l.mem, addr, l.opts)
	if err != nil {
		return nil, fmt.Errorf("%s, index %d: %w", l.path, index, err)
	}
	return d, nil
}

// Descriptors enumerates the plugins of the module, starting at index 0 and
// stopping at the first null descriptor. If a descriptor cannot be decoded,
// enumeration stops and the descriptors decoded so far are returned along
// with the error.
func (l *Library) Descriptors() ([]*ladspa.Descriptor, error) {
	l.m.Lock()
	defer l.m.Unlock()
	var res []*ladspa.Descriptor
	for i := uint64(0); i < MaxPluginsPerModule; i++ {
		d, err := l.loadDescriptor(i)
		if err != nil {
			return res, err
		}
		if d == nil {
			break
		}
		res = append(res, d)
	}
	return res, nil
}

// Match selects a plugin descriptor.
type Match func(*ladspa.Descriptor) bool

// ByUniqueID matches descriptors with the given unique ID.
func ByUniqueID(id uint64) Match {
	return func(d *ladspa.Descriptor) bool { return d.UniqueID == id }
}

// ByLabel matches descriptors with the given label.
func ByLabel(label string) Match {
	return func(d *ladspa.Descriptor) bool { return d.Label == label }
}

// Find returns the first descriptor of the module selected by match. The
// error wraps ErrPluginNotFound if there is none. Descriptors listed before
// a malformed one are still searched.
func (l *Library) Find(match Match) (*ladspa.Descriptor, error) {
	ds, err := l.Descriptors()
	for _, d := range ds {
		if match(d) {
			return d, nil
		}
	}
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%w in %s", ErrPluginNotFound, l.path), err)
	}
	return nil, fmt.Errorf("%w in %s", ErrPluginNotFound, l.path)
}

// Retain records a new live plugin instance. It fails if the library is
// already closed.
func (l *Library) Retain() error {
	l.m.Lock()
	defer l.m.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.live++
	return nil
}

// Release records that a plugin instance has been cleaned up.
func (l *Library) Release() {
	l.m.Lock()
	defer l.m.Unlock()
	if l.live > 0 {
		l.live--
	}
}

// Live returns the number of live plugin instances.
func (l *Library) Live() int {
	l.m.Lock()
	defer l.m.Unlock()
	return l.live
}

// Close unloads the module. If instances of its plugins are still alive,
// the module is left loaded and the error wraps ladspa.ErrLiveInstances.
// Closing an already closed library has no effect.
func (l *Library) Close() error {
	l.m.Lock()
	defer l.m.Unlock()
	if l.closed {
		return nil
	}
	if l.live > 0 {
		return fmt.Errorf("%w: %s has %d", ladspa.ErrLiveInstances, l.path, l.live)
	}
	l.closed = true
	return l.source.Close()
}

// staticSource resolves symbols from a fixed table of addresses, such as
// plugins linked into the executable.
type staticSource map[string]uintptr

// StaticSymbols returns a SymbolSource for modules that are already part of
// the process image. Function addresses are checked with Resolvable.
func StaticSymbols(symbols map[string]uintptr) SymbolSource {
	return staticSource(symbols)
}

func (s staticSource) Lookup(name string) (uintptr, error) {
	if addr, ok := s[name]; ok && addr != 0 {
		return addr, nil
	}
	return 0, fmt.Errorf("symbol %q not found", name)
}

func (s staticSource) Owns(addr uintptr) bool {
	return Resolvable(addr)
}

func (s staticSource) Close() error {
	return nil
}
