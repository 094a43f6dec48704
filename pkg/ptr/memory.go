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

package ptr

import (
	"fmt"
	"unsafe"

	"github.com/BowmanRA/mistomp/pkg/ladspa"
)

// Native reads the address space of the current process in native byte
// order.
type Native struct{}

var _ ladspa.Memory = Native{}

// ReadUint reads an unsigned integer of 1, 2, 4 or 8 bytes at addr.
func (Native) ReadUint(addr, width uintptr) (v uint64, err error) {
	if err = checkAddr(addr); err != nil {
		return 0, err
	}
	switch width {
	case 1, 2, 4, 8:
	default:
		return 0, fmt.Errorf("unsupported read width %d", width)
	}
	p := unsafe.Add(unsafe.Pointer(nil), addr)
	err = Guard(func() {
		switch width {
		case 1:
			v = uint64(*(*uint8)(p))
		case 2:
			v = uint64(*(*uint16)(p))
		case 4:
			v = uint64(*(*uint32)(p))
		case 8:
			v = *(*uint64)(p)
		}
	})
	return v, err
}

// ReadCString copies the null terminated string at addr. The read stops
// with an error if no terminator is found within max bytes.
func (Native) ReadCString(addr uintptr, max int) (s string, err error) {
	if err = checkAddr(addr); err != nil {
		return "", err
	}
	n := -1
	err = Guard(func() {
		n = strnlen(addr, max)
	})
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("%w: string at %#x is not terminated within %d bytes", ladspa.ErrUnreadablePointer, addr, max)
	}
	return string(unsafe.Slice((*byte)(unsafe.Add(unsafe.Pointer(nil), addr)), n)), nil
}

// strnlen returns the length of the string at addr, or -1 if there is no
// terminator within max bytes.
func strnlen(addr uintptr, max int) int {
	base := unsafe.Add(unsafe.Pointer(nil), addr)
	for i := 0; i < max; i++ {
		if *(*byte)(unsafe.Add(base, i)) == 0 {
			return i
		}
	}
	return -1
}
