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

package bridge

import (
	"errors"

	"github.com/BowmanRA/mistomp/pkg/ptr"
)

var (
	errNilBuffer      = errors.New("audio server returned a null buffer")
	errBlockTooLarge  = errors.New("block is larger than the scratch buffers")
	errPanicRecovered = errors.New("panic in process callback")
)

// Process is the process callback. It always returns 0: a failed block is
// replaced by silence on every output instead of being reported to the
// server.
func (b *Bridge) Process(frames uint32) int {
	b.fetched = false
	defer func() {
		if r := recover(); r != nil {
			b.fail(FailurePanic, errPanicRecovered, r, frames)
		}
	}()
	if kind, err := b.process(frames); err != nil {
		b.fail(kind, err, nil, frames)
		return 0
	}
	b.blocks.Add(1)
	return 0
}

func (b *Bridge) process(frames uint32) (FailureKind, error) {
	if len(b.scratch) > 0 && frames > b.maxBlock {
		return FailureBlockSize, errBlockTooLarge
	}
	if err := b.fetch(frames); err != nil {
		return FailureBuffer, err
	}
	if err := b.connect(); err != nil {
		return FailureConnect, err
	}
	if err := b.proc.Run(frames); err != nil {
		return FailureRun, err
	}

	n := int(frames)
	// secondary outputs copy the primary one before it is scaled
	for i := range b.outputs {
		if j := b.primary[i]; j >= 0 {
			copy(ptr.Float32s(b.outAddr[i], n), ptr.Float32s(b.outAddr[j], n))
		}
	}
	for i, o := range b.outputs {
		scale(ptr.Float32s(b.outAddr[i], n), o.Gain)
	}
	for i, s := range b.sends {
		from := ptr.Float32s(b.sendFrom[i], n)
		to := ptr.Float32s(b.sendTo[i], n)
		for k := range to {
			to[k] = from[k] * s.Gain
		}
	}
	return FailureNone, nil
}

// fetch stores the buffer addresses of the current block.
func (b *Bridge) fetch(frames uint32) error {
	for i, in := range b.inputs {
		if b.inAddr[i] = b.server.Buffer(in.Port, frames); b.inAddr[i] == nil {
			return errNilBuffer
		}
	}
	if err := b.fetchOutputs(frames); err != nil {
		return err
	}
	for i, s := range b.sends {
		if b.sendFrom[i] = b.server.Buffer(s.From, frames); b.sendFrom[i] == nil {
			return errNilBuffer
		}
	}
	return nil
}

// fetchOutputs asks for every output and send destination, even after a
// null buffer, so that silence can reach all the others.
func (b *Bridge) fetchOutputs(frames uint32) error {
	b.fetched = true
	var err error
	for i, o := range b.outputs {
		if b.outAddr[i] = b.server.Buffer(o.Port, frames); b.outAddr[i] == nil {
			err = errNilBuffer
		}
	}
	for i, s := range b.sends {
		if b.sendTo[i] = b.server.Buffer(s.To, frames); b.sendTo[i] == nil {
			err = errNilBuffer
		}
	}
	return err
}

// connect connects the plugin audio ports according to the policy.
func (b *Bridge) connect() error {
	every := b.policy == ConnectEveryBlock
	for i, in := range b.inputs {
		if every || b.prevIn[i] != b.inAddr[i] {
			if err := b.proc.Connect(in.PluginPort, b.inAddr[i]); err != nil {
				return err
			}
			b.prevIn[i] = b.inAddr[i]
		}
	}
	for i, o := range b.outputs {
		if b.primary[i] >= 0 {
			continue
		}
		if every || b.prevOut[i] != b.outAddr[i] {
			if err := b.proc.Connect(o.PluginPort, b.outAddr[i]); err != nil {
				return err
			}
			b.prevOut[i] = b.outAddr[i]
		}
	}
	if every || !b.scratchDone {
		for i, p := range b.scratch {
			if err := b.proc.Connect(p, b.scratchBufs[i].Pointer(0)); err != nil {
				return err
			}
		}
		b.scratchDone = true
	}
	return nil
}

// silence zero-fills every output of the current block. Buffers are
// fetched again if the failure happened before they were. Null buffers
// are skipped.
func (b *Bridge) silence(frames uint32) {
	defer func() {
		// a server failing to hand out buffers leaves nothing to silence
		_ = recover()
	}()
	if !b.fetched {
		_ = b.fetchOutputs(frames)
	}
	n := int(frames)
	for _, addr := range b.outAddr {
		clear(ptr.Float32s(addr, n))
	}
	for _, addr := range b.sendTo {
		clear(ptr.Float32s(addr, n))
	}
}

// scale multiplies buf by gain in place, skipping the identity gain.
func scale(buf []float32, gain float32) {
	if gain == 1 {
		return
	}
	for i := range buf {
		buf[i] *= gain
	}
}
