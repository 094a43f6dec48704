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

// Package cgo maps values that live in Go memory to integers that can
// travel through native code as opaque user data, for instance the void*
// argument of a callback registered with a C library.
package cgo

import (
	"errors"
	"sync/atomic"
)

// Handle identifies a value stored in a Table. The underlying type fits
// in a C void*. The zero Handle is never valid and can be used as a
// sentinel in C APIs.
type Handle uintptr

const (
	// MaxHandle is the largest value that a Handle can hold.
	MaxHandle = 64 - 1

	// max number of times we're willing to iterate over the table to do
	// compare-and-swap before giving up
	maxNewHandleRounds = 20
)

// ErrNoHandle is returned when all the slots of a Table are in use.
var ErrNoHandle = errors.New("no free handle")

// Table is a fixed-size, lock-free replacement for runtime/cgo.Handle.
// Looking up a value neither allocates nor blocks, so it can be done from
// a callback running on a real-time thread owned by a C library.
//
// The zero value is an empty table ready to use.
type Table[T any] struct {
	slots [MaxHandle + 1]atomic.Pointer[T]
}

// New stores v and returns its handle. The handle is valid until Delete
// is called on it. Freed handles are made available again.
func (t *Table[T]) New(v *T) (Handle, error) {
	if v == nil {
		return 0, errors.New("cannot store a nil value")
	}
	for round := 0; round < maxNewHandleRounds; round++ {
		// note: slot 0 is never used
		for h := 1; h <= MaxHandle; h++ {
			if t.slots[h].CompareAndSwap(nil, v) {
				return Handle(h), nil
			}
		}
	}
	return 0, ErrNoHandle
}

// Value returns the value associated with h, or nil if h is not valid.
func (t *Table[T]) Value(h Handle) *T {
	if h == 0 || h > MaxHandle {
		return nil
	}
	return t.slots[h].Load()
}

// Delete invalidates h. It must only be called once the native code no
// longer holds a copy of the handle.
//
// The method panics if the handle is invalid.
func (t *Table[T]) Delete(h Handle) {
	if h == 0 || h > MaxHandle || t.slots[h].Swap(nil) == nil {
		panic("mistomp/cgo: misuse (delete) of an invalid Handle")
	}
}

// Len returns the number of valid handles.
func (t *Table[T]) Len() int {
	n := 0
	for h := 1; h <= MaxHandle; h++ {
		if t.slots[h].Load() != nil {
			n++
		}
	}
	return n
}
