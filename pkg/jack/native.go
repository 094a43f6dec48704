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

/*
#include <stdint.h>

#include <stdlib.h>

typedef void *(*jack_client_open_t)(const char *, uint32_t, uint32_t *, ...);
typedef void *(*jack_port_get_buffer_t)(void *, uint32_t);

// jack_client_open is variadic, which purego cannot bind.
static uintptr_t __client_open(uintptr_t f, const char *name, uint32_t options, uint32_t *status)
{
	return (uintptr_t)((jack_client_open_t)f)(name, options, status);
}

// jack_port_get_buffer is called on the process thread for every port and
// every block, so it goes through a plain cgo call instead of purego.
static void *__port_get_buffer(uintptr_t f, uintptr_t port, uint32_t frames)
{
	return ((jack_port_get_buffer_t)f)((void *)port, frames);
}

extern int mistompProcess(uint32_t frames, uintptr_t arg);

static uintptr_t __process_callback(void)
{
	return (uintptr_t)&mistompProcess;
}
*/
import "C"
import "unsafe"

func clientOpen(f uintptr, name string, options uint32, status *uint32) uintptr {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return uintptr(C.__client_open(C.uintptr_t(f), cname, C.uint32_t(options), (*C.uint32_t)(unsafe.Pointer(status))))
}

func portGetBuffer(f, port uintptr, frames uint32) unsafe.Pointer {
	return C.__port_get_buffer(C.uintptr_t(f), C.uintptr_t(port), C.uint32_t(frames))
}

func processCallback() uintptr {
	return uintptr(C.__process_callback())
}
