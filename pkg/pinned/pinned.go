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

// Package pinned allocates blocks of float32 values outside of the Go heap.
//
// The memory of a block never moves and is never scanned by the garbage
// collector, so its addresses can be handed to native code and kept there
// for as long as the block is alive. Blocks are locked into RAM when the
// process is allowed to do so, to avoid page faults on real-time threads.
package pinned

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const floatSize = int(unsafe.Sizeof(float32(0)))

// ErrFreed is returned when using a block after Free.
var ErrFreed = errors.New("pinned block already freed")

// Floats is a fixed-size block of float32 values backed by an anonymous
// memory mapping. The zero value is not usable, use NewFloats.
type Floats struct {
	m      sync.Mutex
	mem    []byte
	vals   []float32
	locked bool
}

// NewFloats maps a zeroed block of n values. The block is mlocked if the
// RLIMIT_MEMLOCK allows it; failing to lock is not an error, see Locked.
func NewFloats(n int) (*Floats, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid pinned block size %d", n)
	}
	size := n * floatSize
	if size == 0 {
		size = floatSize
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mapping %d bytes: %w", size, err)
	}
	f := &Floats{mem: mem}
	if n > 0 {
		f.vals = unsafe.Slice((*float32)(unsafe.Pointer(&mem[0])), n)
	}
	f.locked = unix.Mlock(mem) == nil
	return f, nil
}

// Len returns the number of values in the block.
func (f *Floats) Len() int {
	return len(f.vals)
}

// Slice returns the values of the block. The slice must not be used after
// Free.
func (f *Floats) Slice() []float32 {
	return f.vals
}

// Pointer returns the stable address of the i-th value. It panics if i is
// out of range.
func (f *Floats) Pointer(i int) unsafe.Pointer {
	return unsafe.Pointer(&f.vals[i])
}

// Locked returns true if the block is locked into RAM.
func (f *Floats) Locked() bool {
	return f.locked
}

// Zero sets all the values to zero.
func (f *Floats) Zero() {
	clear(f.vals)
}

// Free unmaps the block. Calling Free more than once returns ErrFreed.
func (f *Floats) Free() error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.mem == nil {
		return ErrFreed
	}
	if f.locked {
		_ = unix.Munlock(f.mem)
		f.locked = false
	}
	err := unix.Munmap(f.mem)
	f.mem = nil
	f.vals = nil
	if err != nil {
		return fmt.Errorf("unmapping pinned block: %w", err)
	}
	return nil
}
