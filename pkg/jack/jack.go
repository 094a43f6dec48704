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

// Package jack is a minimal client of the JACK Audio Connection Kit.
//
// libjack is bound when first needed, so programs using this package start
// and run their other commands on machines where JACK is not installed. The
// Client type implements bridge.AudioServer.
package jack

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/ebitengine/purego"
)

// DefaultAudioType is the JACK type of mono 32 bit float audio ports.
const DefaultAudioType = "32 bit float mono audio"

// ErrUnavailable is returned when libjack cannot be loaded.
var ErrUnavailable = errors.New("JACK library not available")

// port flags, from jack/types.h
const (
	portIsInput    = 0x1
	portIsOutput   = 0x2
	portIsPhysical = 0x4
)

// JackNoStartServer, from jack/types.h
const optionNoStartServer = 0x01

// errno returned by jack_connect for connections that already exist
const errAlreadyConnected = 17

// api holds the libjack functions used by the package.
type api struct {
	handle uintptr

	clientClose    func(client uintptr) int32
	clientName     func(client uintptr) string
	sampleRate     func(client uintptr) uint32
	bufferSize     func(client uintptr) uint32
	setBufferSize  func(client uintptr, frames uint32) int32
	portRegister   func(client uintptr, name, kind string, flags, size uint64) uintptr
	portUnregister func(client, port uintptr) int32
	portName       func(port uintptr) string
	getPorts       func(client uintptr, namePattern, typePattern string, flags uint64) uintptr
	free           func(p uintptr)
	connect        func(client uintptr, src, dst string) int32
	setProcess     func(client, callback, arg uintptr) int32
	activate       func(client uintptr) int32
	deactivate     func(client uintptr) int32

	// called through cgo
	clientOpen    uintptr
	portGetBuffer uintptr
}

var (
	loadOnce sync.Once
	lib      *api
	loadErr  error
)

// libraryNames lists the names tried, in order, when loading libjack.
func libraryNames() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"libjack.0.dylib", "/usr/local/lib/libjack.0.dylib", "/opt/homebrew/lib/libjack.0.dylib"}
	default:
		return []string{"libjack.so.0", "libjack.so"}
	}
}

// Load binds libjack. It is called by Open, and can be called beforehand to
// check that JACK is installed. The result of the first call is cached.
func Load() error {
	loadOnce.Do(func() {
		lib, loadErr = load()
	})
	return loadErr
}

func load() (a *api, err error) {
	var handle uintptr
	var errs []string
	for _, name := range libraryNames() {
		h, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			handle = h
			break
		}
		errs = append(errs, err.Error())
	}
	if handle == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, strings.Join(errs, "; "))
	}

	// RegisterLibFunc panics on missing symbols
	defer func() {
		if r := recover(); r != nil {
			_ = purego.Dlclose(handle)
			a, err = nil, fmt.Errorf("%w: %v", ErrUnavailable, r)
		}
	}()

	a = &api{handle: handle}
	purego.RegisterLibFunc(&a.clientClose, handle, "jack_client_close")
	purego.RegisterLibFunc(&a.clientName, handle, "jack_get_client_name")
	purego.RegisterLibFunc(&a.sampleRate, handle, "jack_get_sample_rate")
	purego.RegisterLibFunc(&a.bufferSize, handle, "jack_get_buffer_size")
	purego.RegisterLibFunc(&a.setBufferSize, handle, "jack_set_buffer_size")
	purego.RegisterLibFunc(&a.portRegister, handle, "jack_port_register")
	purego.RegisterLibFunc(&a.portUnregister, handle, "jack_port_unregister")
	purego.RegisterLibFunc(&a.portName, handle, "jack_port_name")
	purego.RegisterLibFunc(&a.getPorts, handle, "jack_get_ports")
	purego.RegisterLibFunc(&a.free, handle, "jack_free")
	purego.RegisterLibFunc(&a.connect, handle, "jack_connect")
	purego.RegisterLibFunc(&a.setProcess, handle, "jack_set_process_callback")
	purego.RegisterLibFunc(&a.activate, handle, "jack_activate")
	purego.RegisterLibFunc(&a.deactivate, handle, "jack_deactivate")

	for _, sym := range []struct {
		dst  *uintptr
		name string
	}{
		{&a.clientOpen, "jack_client_open"},
		{&a.portGetBuffer, "jack_port_get_buffer"},
	} {
		if *sym.dst, err = purego.Dlsym(handle, sym.name); err != nil {
			_ = purego.Dlclose(handle)
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
		}
	}
	return a, nil
}

// Status is the jack_status_t returned when opening a client.
type Status uint32

var statusNames = []string{
	"Failure",
	"InvalidOption",
	"NameNotUnique",
	"ServerStarted",
	"ServerFailed",
	"ServerError",
	"NoSuchClient",
	"LoadFailure",
	"InitFailure",
	"ShmFailure",
	"VersionError",
	"BackendError",
	"ClientZombie",
}

func (s Status) String() string {
	var names []string
	for i, n := range statusNames {
		if s&(1<<i) != 0 {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("%#x", uint32(s))
	}
	return strings.Join(names, "|")
}

// Direction selects input or output ports.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

func (d Direction) flag() uint64 {
	if d == Input {
		return portIsInput
	}
	return portIsOutput
}
