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

// Package bridge moves audio between an audio server and a plugin instance
// from inside the server's real-time process callback.
//
// Everything the callback needs is prepared by New on the setup goroutine.
// Process itself never allocates, locks or logs on the success path, and
// never lets a failure escape: a panic or an error turns the block into
// silence and is recorded for Monitor to report from a normal goroutine.
package bridge

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/BowmanRA/mistomp/pkg/pinned"
)

// Port is an opaque handle of a port registered on the audio server.
type Port uintptr

// ProcessFunc is invoked by the audio server once per block. It returns 0
// on success.
type ProcessFunc func(frames uint32) int

// AudioServer is the part of an audio server client used by the bridge.
type AudioServer interface {
	// Buffer returns the sample buffer of a port for the current block. It
	// is only valid inside the process callback.
	Buffer(port Port, frames uint32) unsafe.Pointer
	SampleRate() uint32
	BlockSize() uint32
	SetProcessCallback(f ProcessFunc) error
}

// Processor runs a plugin on connected buffers. *plugin.Instance
// implements it.
type Processor interface {
	Connect(port uint32, data unsafe.Pointer) error
	Run(frames uint32) error
}

// InputBinding feeds a server input port into a plugin audio input.
type InputBinding struct {
	Port       Port
	PluginPort uint32
}

// OutputBinding copies a plugin audio output to a server output port,
// scaled by Gain. Several outputs can share the same plugin port.
type OutputBinding struct {
	Port       Port
	PluginPort uint32
	Gain       float32
}

// Send copies a server input port to a server output port, scaled by Gain,
// without going through the plugin.
type Send struct {
	From Port
	To   Port
	Gain float32
}

// Config describes the routing of a Bridge.
type Config struct {
	Inputs  []InputBinding
	Outputs []OutputBinding
	Sends   []Send

	// Scratch lists plugin audio ports that have no server binding. They
	// are connected to private buffers of MaxBlockSize frames.
	Scratch []uint32

	Policy ConnectPolicy

	// MaxBlockSize defaults to the block size of the server.
	MaxBlockSize uint32
}

// Bridge is the process callback connecting an AudioServer to a Processor.
// Its routing is fixed at creation.
type Bridge struct {
	server AudioServer
	proc   Processor
	policy ConnectPolicy

	inputs  []InputBinding
	outputs []OutputBinding
	sends   []Send

	// addresses fetched for the current block, and the ones last
	// connected to the plugin
	inAddr      []unsafe.Pointer
	outAddr     []unsafe.Pointer
	sendFrom    []unsafe.Pointer
	sendTo      []unsafe.Pointer
	prevIn      []unsafe.Pointer
	prevOut     []unsafe.Pointer
	fetched     bool
	scratchDone bool

	// index of the output connected to the same plugin port, -1 for
	// outputs connected themselves
	primary []int

	scratch     []uint32
	scratchBufs []*pinned.Floats
	maxBlock    uint32

	counters
}

// New validates cfg and prepares a bridge. The bridge does nothing until
// Attach is called.
func New(server AudioServer, proc Processor, cfg Config) (*Bridge, error) {
	if server == nil || proc == nil {
		return nil, errors.New("bridge requires an audio server and a processor")
	}
	if len(cfg.Inputs)+len(cfg.Outputs)+len(cfg.Sends) == 0 {
		return nil, errors.New("bridge has no binding and no send")
	}
	for _, o := range cfg.Outputs {
		if err := checkGain(o.Gain); err != nil {
			return nil, fmt.Errorf("output of plugin port %d: %w", o.PluginPort, err)
		}
	}
	for _, s := range cfg.Sends {
		if err := checkGain(s.Gain); err != nil {
			return nil, fmt.Errorf("send: %w", err)
		}
	}
	bound := map[uint32]string{}
	for _, in := range cfg.Inputs {
		if _, ok := bound[in.PluginPort]; ok {
			return nil, fmt.Errorf("plugin port %d is bound more than once", in.PluginPort)
		}
		bound[in.PluginPort] = "input"
	}
	for _, p := range cfg.Scratch {
		if _, ok := bound[p]; ok {
			return nil, fmt.Errorf("plugin port %d is both bound and scratch", p)
		}
		bound[p] = "scratch"
	}
	for _, o := range cfg.Outputs {
		if kind, ok := bound[o.PluginPort]; ok && kind != "output" {
			return nil, fmt.Errorf("plugin port %d is bound as %s and as output", o.PluginPort, kind)
		}
		bound[o.PluginPort] = "output"
	}

	maxBlock := cfg.MaxBlockSize
	if maxBlock == 0 {
		maxBlock = server.BlockSize()
	}
	if maxBlock == 0 && len(cfg.Scratch) > 0 {
		return nil, errors.New("scratch ports require a maximum block size")
	}

	b := &Bridge{
		server:   server,
		proc:     proc,
		policy:   cfg.Policy,
		inputs:   append([]InputBinding(nil), cfg.Inputs...),
		outputs:  append([]OutputBinding(nil), cfg.Outputs...),
		sends:    append([]Send(nil), cfg.Sends...),
		inAddr:   make([]unsafe.Pointer, len(cfg.Inputs)),
		outAddr:  make([]unsafe.Pointer, len(cfg.Outputs)),
		sendFrom: make([]unsafe.Pointer, len(cfg.Sends)),
		sendTo:   make([]unsafe.Pointer, len(cfg.Sends)),
		prevIn:   make([]unsafe.Pointer, len(cfg.Inputs)),
		prevOut:  make([]unsafe.Pointer, len(cfg.Outputs)),
		primary:  make([]int, len(cfg.Outputs)),
		scratch:  append([]uint32(nil), cfg.Scratch...),
		maxBlock: maxBlock,
	}

	first := map[uint32]int{}
	for i, o := range b.outputs {
		if j, ok := first[o.PluginPort]; ok {
			b.primary[i] = j
			continue
		}
		first[o.PluginPort] = i
		b.primary[i] = -1
	}

	for range b.scratch {
		buf, err := pinned.NewFloats(int(maxBlock))
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("allocating scratch buffer: %w", err)
		}
		b.scratchBufs = append(b.scratchBufs, buf)
	}
	return b, nil
}

func checkGain(g float32) error {
	if math.IsNaN(float64(g)) || math.IsInf(float64(g), 0) || g < 0 {
		return fmt.Errorf("invalid gain %v", g)
	}
	return nil
}

// Attach registers Process as the process callback of the server.
func (b *Bridge) Attach() error {
	return b.server.SetProcessCallback(b.Process)
}

// Close releases the scratch buffers. It must be called only once the
// server no longer invokes Process.
func (b *Bridge) Close() error {
	var errs []error
	for _, buf := range b.scratchBufs {
		errs = append(errs, buf.Free())
	}
	b.scratchBufs = nil
	return errors.Join(errs...)
}
