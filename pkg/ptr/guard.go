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
	"runtime/debug"

	"github.com/BowmanRA/mistomp/pkg/ladspa"
)

// minAddr is the lowest address considered for a read. The page at zero is
// never mapped, and the runtime reports faults inside it as nil dereferences.
const minAddr = 0x1000

// Guard calls f with memory faults turned into recoverable panics, and
// returns an error wrapping ladspa.ErrUnreadablePointer if f faults.
// Panics that are not caused by a memory fault are propagated.
//
// Guard must not be used on a real-time thread: the fault path allocates.
func Guard(f func()) (err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			if fault, ok := r.(interface{ Addr() uintptr }); ok {
				err = fmt.Errorf("%w: fault at %#x", ladspa.ErrUnreadablePointer, fault.Addr())
				return
			}
			panic(r)
		}
	}()
	f()
	return nil
}

func checkAddr(addr uintptr) error {
	if addr < minAddr {
		return fmt.Errorf("%w: invalid address %#x", ladspa.ErrUnreadablePointer, addr)
	}
	return nil
}
