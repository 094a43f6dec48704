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
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/BowmanRA/mistomp/pkg/ladspa"
)

const testString = "hello poiana"

// mapGuarded maps two pages and makes the second one inaccessible.
func mapGuarded(t *testing.T) (page []byte, guard uintptr) {
	size := unix.Getpagesize()
	mem, err := unix.Mmap(-1, 0, 2*size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Munmap(mem) })
	require.NoError(t, unix.Mprotect(mem[size:], unix.PROT_NONE))
	return mem[:size], uintptr(unsafe.Pointer(&mem[size]))
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func TestReadCString(t *testing.T) {
	page, _ := mapGuarded(t)
	copy(page, testString+"\x00trailing")

	str, err := Native{}.ReadCString(addrOf(page), ladspa.MaxStringLen)
	require.NoError(t, err)
	assert.Equal(t, testString, str)

	// the result is a copy
	page[0] = 'X'
	assert.Equal(t, testString, str)

	_, err = Native{}.ReadCString(addrOf(page), 4)
	assert.ErrorIs(t, err, ladspa.ErrUnreadablePointer)
	assert.ErrorContains(t, err, "not terminated")
}

func TestReadCStringEmpty(t *testing.T) {
	page, _ := mapGuarded(t)
	str, err := Native{}.ReadCString(addrOf(page), ladspa.MaxStringLen)
	require.NoError(t, err)
	assert.Empty(t, str)
}

func TestReadCStringFault(t *testing.T) {
	page, guard := mapGuarded(t)

	// an unterminated string running into the protected page
	tail := page[len(page)-len(testString):]
	copy(tail, testString)
	_, err := Native{}.ReadCString(addrOf(tail), ladspa.MaxStringLen)
	assert.ErrorIs(t, err, ladspa.ErrUnreadablePointer)

	_, err = Native{}.ReadCString(guard, ladspa.MaxStringLen)
	assert.ErrorIs(t, err, ladspa.ErrUnreadablePointer)

	_, err = Native{}.ReadCString(0, ladspa.MaxStringLen)
	assert.ErrorIs(t, err, ladspa.ErrUnreadablePointer)
}

func TestReadUint(t *testing.T) {
	page, guard := mapGuarded(t)
	binary.NativeEndian.PutUint64(page[8:], 0x0102030405060708)
	binary.NativeEndian.PutUint32(page[16:], 0xdeadbeef)
	binary.NativeEndian.PutUint16(page[20:], 0xcafe)
	page[22] = 0x7f

	mem := Native{}
	v, err := mem.ReadUint(addrOf(page[8:]), 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v)

	v, err = mem.ReadUint(addrOf(page[16:]), 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), v)

	v, err = mem.ReadUint(addrOf(page[20:]), 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xcafe), v)

	v, err = mem.ReadUint(addrOf(page[22:]), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7f), v)

	_, err = mem.ReadUint(addrOf(page), 3)
	assert.ErrorContains(t, err, "unsupported read width")

	_, err = mem.ReadUint(guard, 8)
	assert.ErrorIs(t, err, ladspa.ErrUnreadablePointer)

	_, err = mem.ReadUint(8, 8)
	assert.ErrorIs(t, err, ladspa.ErrUnreadablePointer)
}

func TestGuardPropagatesPanics(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		_ = Guard(func() { panic("boom") })
	})
	assert.NoError(t, Guard(func() {}))
}

func TestFloat32s(t *testing.T) {
	assert.Nil(t, Float32s(nil, 4))

	page, _ := mapGuarded(t)
	vals := Float32s(unsafe.Pointer(&page[0]), 4)
	require.Len(t, vals, 4)
	vals[1] = 0.5
	assert.Equal(t, uint32(0x3f000000), binary.NativeEndian.Uint32(page[4:]))
}
