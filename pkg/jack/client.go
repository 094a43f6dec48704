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

package jack

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/BowmanRA/mistomp/pkg/bridge"
	"github.com/BowmanRA/mistomp/pkg/cgo"
	"github.com/BowmanRA/mistomp/pkg/ptr"
)

// maxPortNameLen bounds the port names read from jack_get_ports.
const maxPortNameLen = 320

var (
	// ErrClosed is returned by the methods of a closed Client.
	ErrClosed = errors.New("JACK client is closed")

	errActive = errors.New("JACK client is active")
)

// clients maps the user data of the process callback to the client
// receiving it.
var clients cgo.Table[processTarget]

type processTarget struct {
	f atomic.Pointer[bridge.ProcessFunc]
}

func dispatch(h cgo.Handle, frames uint32) int {
	t := clients.Value(h)
	if t == nil {
		return 0
	}
	f := t.f.Load()
	if f == nil {
		return 0
	}
	return (*f)(frames)
}

// Client is a JACK client. Its methods must not be called concurrently,
// except for Buffer, which is meant to be called from the process
// callback.
type Client struct {
	m      sync.Mutex
	lib    *api
	ptr    uintptr
	name   string
	target processTarget
	handle cgo.Handle
	active bool
	ports  []uintptr
}

var _ bridge.AudioServer = (*Client)(nil)

// Open connects to the running JACK server as a new client. The server
// may give the client a different name if name is already taken.
func Open(name string) (*Client, error) {
	if err := Load(); err != nil {
		return nil, err
	}
	var status uint32
	p := clientOpen(lib.clientOpen, name, optionNoStartServer, &status)
	if p == 0 {
		return nil, fmt.Errorf("opening JACK client %q: %s", name, Status(status))
	}
	return &Client{lib: lib, ptr: p, name: lib.clientName(p)}, nil
}

// Name returns the name given to the client by the server.
func (c *Client) Name() string {
	return c.name
}

// SampleRate returns the sample rate of the server.
func (c *Client) SampleRate() uint32 {
	if c.ptr == 0 {
		return 0
	}
	return c.lib.sampleRate(c.ptr)
}

// BlockSize returns the number of frames of each process cycle.
func (c *Client) BlockSize() uint32 {
	if c.ptr == 0 {
		return 0
	}
	return c.lib.bufferSize(c.ptr)
}

// SetBlockSize asks the server to change its block size. This affects
// every client of the server.
func (c *Client) SetBlockSize(frames uint32) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.ptr == 0 {
		return ErrClosed
	}
	if rc := c.lib.setBufferSize(c.ptr, frames); rc != 0 {
		return fmt.Errorf("setting JACK block size to %d: error %d", frames, rc)
	}
	return nil
}

// RegisterPort creates an audio port owned by the client.
func (c *Client) RegisterPort(name string, dir Direction) (bridge.Port, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.ptr == 0 {
		return 0, ErrClosed
	}
	p := c.lib.portRegister(c.ptr, name, DefaultAudioType, dir.flag(), 0)
	if p == 0 {
		return 0, fmt.Errorf("registering JACK %s port %q", dir, name)
	}
	c.ports = append(c.ports, p)
	return bridge.Port(p), nil
}

// PortName returns the full name of a port, prefixed by the client name.
func (c *Client) PortName(p bridge.Port) string {
	return c.lib.portName(uintptr(p))
}

// PhysicalPorts returns the names of the hardware audio ports of the given
// direction, as seen by clients: capture ports are outputs and playback
// ports are inputs.
func (c *Client) PhysicalPorts(dir Direction) ([]string, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.ptr == 0 {
		return nil, ErrClosed
	}
	list := c.lib.getPorts(c.ptr, "", DefaultAudioType, dir.flag()|portIsPhysical)
	if list == 0 {
		return nil, nil
	}
	defer c.lib.free(list)
	return readStrings(ptr.Native{}, list)
}

// readStrings reads a null terminated array of C strings.
func readStrings(mem ptr.Native, list uintptr) ([]string, error) {
	size := unsafe.Sizeof(uintptr(0))
	var res []string
	for i := uintptr(0); ; i++ {
		p, err := mem.ReadUint(list+i*size, size)
		if err != nil {
			return res, err
		}
		if p == 0 {
			return res, nil
		}
		s, err := mem.ReadCString(uintptr(p), maxPortNameLen)
		if err != nil {
			return res, err
		}
		res = append(res, s)
	}
}

// Connect connects two ports by name. Connecting ports that are already
// connected is not an error.
func (c *Client) Connect(src, dst string) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.ptr == 0 {
		return ErrClosed
	}
	if rc := c.lib.connect(c.ptr, src, dst); rc != 0 && rc != errAlreadyConnected {
		return fmt.Errorf("connecting %s to %s: error %d", src, dst, rc)
	}
	return nil
}

// Buffer returns the sample buffer of a port owned by the client for the
// current process cycle. It does not allocate.
func (c *Client) Buffer(p bridge.Port, frames uint32) unsafe.Pointer {
	return portGetBuffer(c.lib.portGetBuffer, uintptr(p), frames)
}

// SetProcessCallback sets the function called by the server on its
// realtime thread for every process cycle. The callback can be replaced at
// any time, but is registered with the server only before the first
// activation.
func (c *Client) SetProcessCallback(f bridge.ProcessFunc) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.ptr == 0 {
		return ErrClosed
	}
	if c.handle == 0 {
		if c.active {
			return errActive
		}
		h, err := clients.New(&c.target)
		if err != nil {
			return err
		}
		if rc := c.lib.setProcess(c.ptr, processCallback(), uintptr(h)); rc != 0 {
			clients.Delete(h)
			return fmt.Errorf("setting JACK process callback: error %d", rc)
		}
		c.handle = h
	}
	c.target.f.Store(&f)
	return nil
}

// Activate tells the server the client is ready to process audio.
func (c *Client) Activate() error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.ptr == 0 {
		return ErrClosed
	}
	if c.active {
		return nil
	}
	if rc := c.lib.activate(c.ptr); rc != 0 {
		return fmt.Errorf("activating JACK client: error %d", rc)
	}
	c.active = true
	return nil
}

// Deactivate removes the client from the process graph. The process
// callback is not called anymore once Deactivate returns.
func (c *Client) Deactivate() error {
	c.m.Lock()
	defer c.m.Unlock()
	return c.deactivate()
}

func (c *Client) deactivate() error {
	if c.ptr == 0 {
		return ErrClosed
	}
	if !c.active {
		return nil
	}
	if rc := c.lib.deactivate(c.ptr); rc != 0 {
		return fmt.Errorf("deactivating JACK client: error %d", rc)
	}
	c.active = false
	return nil
}

// Close deactivates the client, unregisters its ports and disconnects it
// from the server. Close is idempotent.
func (c *Client) Close() error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.ptr == 0 {
		return nil
	}
	var errs []error
	errs = append(errs, c.deactivate())
	for _, p := range c.ports {
		if rc := c.lib.portUnregister(c.ptr, p); rc != 0 {
			errs = append(errs, fmt.Errorf("unregistering JACK port: error %d", rc))
		}
	}
	c.ports = nil
	if rc := c.lib.clientClose(c.ptr); rc != 0 {
		errs = append(errs, fmt.Errorf("closing JACK client: error %d", rc))
	}
	c.ptr = 0
	if c.handle != 0 {
		clients.Delete(c.handle)
		c.handle = 0
	}
	c.target.f.Store(nil)
	return errors.Join(errs...)
}
