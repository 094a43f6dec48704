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

package loader

// note: cgo does not support calling function pointers, so we have to
// create wrappers around those to call them from Go code

/*
#cgo linux LDFLAGS: -ldl
#cgo CFLAGS: -I${SRCDIR}

#define _GNU_SOURCE
#include <dlfcn.h>
#include <stddef.h>
#include <stdint.h>
#include <stdio.h>
#include <stdlib.h>

#include "ladspa_abi.h"

#define __errlen 512

static size_t __errlen_value(void)
{
	return __errlen;
}

static void __set_err(char *buf, const char *err)
{
	snprintf(buf, __errlen, "%s", err ? err : "unknown error");
}

static void* __dlopen(const char *path, char *err)
{
	dlerror();
	void *h = dlopen(path, RTLD_NOW | RTLD_LOCAL);
	if (!h) __set_err(err, dlerror());
	return h;
}

// clear dlerror, call dlsym, and report the error (if any) alongside the symbol.
static uintptr_t __dlsym(void *h, const char *name, char *err)
{
	dlerror();
	void *p = dlsym(h, name);
	const char *e = dlerror();
	if (e) {
		__set_err(err, e);
		return 0;
	}
	return (uintptr_t)p;
}

static int __dlclose(void *h, char *err)
{
	dlerror();
	int rc = dlclose(h);
	if (rc != 0) __set_err(err, dlerror());
	return rc;
}

static int __dladdr(uintptr_t addr)
{
	Dl_info info;
	return dladdr((void*)addr, &info) != 0 && info.dli_fname != NULL;
}

static uintptr_t __describe(uintptr_t f, unsigned long index)
{
	return (uintptr_t)((mistomp_ladspa_discovery)f)(index);
}

static size_t __abi_size(void)
{
	return sizeof(mistomp_ladspa_descriptor);
}

static size_t __abi_ptr_size(void)
{
	return sizeof(void*);
}

#define __abi_field(f) offsetof(mistomp_ladspa_descriptor, f), sizeof(((mistomp_ladspa_descriptor*)0)->f)

// offset and width of each field, in declaration order
static const size_t __abi_fields[] = {
	__abi_field(unique_id),
	__abi_field(label),
	__abi_field(properties),
	__abi_field(name),
	__abi_field(maker),
	__abi_field(copyright),
	__abi_field(port_count),
	__abi_field(port_descriptors),
	__abi_field(port_names),
	__abi_field(port_range_hints),
	__abi_field(implementation_data),
	__abi_field(instantiate),
	__abi_field(connect_port),
	__abi_field(activate),
	__abi_field(run),
	__abi_field(run_adding),
	__abi_field(set_run_adding_gain),
	__abi_field(deactivate),
	__abi_field(cleanup),
};

static size_t __abi_field_at(int i)
{
	return __abi_fields[i];
}
*/
import "C"
import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/BowmanRA/mistomp/pkg/ladspa"
)

// EntryPoint is the name of the discovery function exported by every
// LADSPA module.
const EntryPoint = "ladspa_descriptor"

type errBuf struct {
	p *C.char
}

func newErrBuf() errBuf {
	return errBuf{p: (*C.char)(C.calloc(C.__errlen_value(), 1))}
}

func (e errBuf) String() string {
	return C.GoString(e.p)
}

func (e errBuf) free() {
	C.free(unsafe.Pointer(e.p))
}

// dynamicSource resolves symbols of a module opened with dlopen.
type dynamicSource struct {
	path   string
	handle unsafe.Pointer
}

func dlopen(path string) (*dynamicSource, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	buf := newErrBuf()
	defer buf.free()

	h := C.__dlopen(cpath, buf.p)
	if h == nil {
		return nil, fmt.Errorf("%w: dlopen(%q) failed: %s", ladspa.ErrLoad, path, buf.String())
	}
	return &dynamicSource{path: path, handle: h}, nil
}

func (s *dynamicSource) Lookup(name string) (uintptr, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	buf := newErrBuf()
	defer buf.free()

	addr := uintptr(C.__dlsym(s.handle, cname, buf.p))
	if addr == 0 {
		msg := buf.String()
		if msg == "" {
			msg = "symbol resolves to null"
		}
		return 0, fmt.Errorf("dlsym(%q) failed: %s", name, msg)
	}
	return addr, nil
}

func (s *dynamicSource) Owns(addr uintptr) bool {
	return Resolvable(addr)
}

func (s *dynamicSource) Close() error {
	if s.handle == nil {
		return nil
	}
	buf := newErrBuf()
	defer buf.free()
	if C.__dlclose(s.handle, buf.p) != 0 {
		return fmt.Errorf("dlclose(%q) failed: %s", s.path, buf.String())
	}
	s.handle = nil
	return nil
}

// Resolvable returns true if addr lies inside the mapped image of a module
// loaded in the current process, including the executable itself.
func Resolvable(addr uintptr) bool {
	if addr == 0 {
		return false
	}
	return C.__dladdr(C.uintptr_t(addr)) != 0
}

// nativeDiscovery is the address of a ladspa_descriptor function.
type nativeDiscovery uintptr

func (f nativeDiscovery) Describe(index uint64) uintptr {
	return uintptr(C.__describe(C.uintptr_t(f), C.ulong(index)))
}

// compilerLayout returns the descriptor layout as computed by the C
// compiler for the build target.
func compilerLayout() (*ladspa.Layout, error) {
	fields := ladspa.HostLayout().Fields()
	specs := make([]ladspa.FieldSpec, 0, len(fields))
	for i, f := range fields {
		specs = append(specs, ladspa.FieldSpec{
			Field:  f.Field,
			Offset: uintptr(C.__abi_field_at(C.int(2 * i))),
			Width:  uintptr(C.__abi_field_at(C.int(2*i + 1))),
		})
	}
	return ladspa.NewLayout("compiler", uintptr(C.__abi_size()), uintptr(C.__abi_ptr_size()), specs)
}

// CheckLayout returns a non-nil error if the descriptor layout used to
// decode plugins does not match the one of the C compiler.
func CheckLayout() error {
	host := ladspa.HostLayout()
	cc, err := compilerLayout()
	if err != nil {
		return err
	}
	if host.Size != cc.Size {
		return fmt.Errorf("descriptor size mismatch: %s has %d bytes, compiler has %d", host.Name, host.Size, cc.Size)
	}
	var errs []error
	for _, f := range host.Fields() {
		if c := cc.Spec(f.Field); c != f {
			errs = append(errs, fmt.Errorf("field %s: %s has offset %d width %d, compiler has offset %d width %d",
				f.Field, host.Name, f.Offset, f.Width, c.Offset, c.Width))
		}
	}
	return errors.Join(errs...)
}
