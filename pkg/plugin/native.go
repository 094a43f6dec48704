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

package plugin

// note: cgo does not support calling function pointers, so we have to
// create wrappers around those to call them from Go code. Addresses travel
// as uintptr_t so that no Go pointer is ever handed to the plugin.

/*
#include <stdint.h>

typedef void* (*__instantiate_fn)(const void*, unsigned long);
typedef void (*__connect_port_fn)(void*, unsigned long, float*);
typedef void (*__handle_fn)(void*);
typedef void (*__run_fn)(void*, unsigned long);
typedef void (*__gain_fn)(void*, float);

static uintptr_t __instantiate(uintptr_t f, uintptr_t d, unsigned long sr)
{
	return (uintptr_t)((__instantiate_fn)f)((const void*)d, sr);
}

static void __connect_port(uintptr_t f, uintptr_t h, unsigned long port, uintptr_t data)
{
	((__connect_port_fn)f)((void*)h, port, (float*)data);
}

static void __call(uintptr_t f, uintptr_t h)
{
	((__handle_fn)f)((void*)h);
}

static void __run(uintptr_t f, uintptr_t h, unsigned long n)
{
	((__run_fn)f)((void*)h, n);
}

static void __set_gain(uintptr_t f, uintptr_t h, float g)
{
	((__gain_fn)f)((void*)h, g);
}
*/
import "C"
import "unsafe"

func callInstantiate(f, desc uintptr, sampleRate uint32) uintptr {
	return uintptr(C.__instantiate(C.uintptr_t(f), C.uintptr_t(desc), C.ulong(sampleRate)))
}

func callConnectPort(f, h uintptr, port uint32, data unsafe.Pointer) {
	C.__connect_port(C.uintptr_t(f), C.uintptr_t(h), C.ulong(port), C.uintptr_t(uintptr(data)))
}

func callHandle(f, h uintptr) {
	C.__call(C.uintptr_t(f), C.uintptr_t(h))
}

func callRun(f, h uintptr, frames uint32) {
	C.__run(C.uintptr_t(f), C.uintptr_t(h), C.ulong(frames))
}

func callSetGain(f, h uintptr, gain float32) {
	C.__set_gain(C.uintptr_t(f), C.uintptr_t(h), C.float(gain))
}
