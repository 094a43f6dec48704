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

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BowmanRA/mistomp/internal/fixture"
	"github.com/BowmanRA/mistomp/pkg/bridge"
	"github.com/BowmanRA/mistomp/pkg/ptr"
)

func TestDispatch(t *testing.T) {
	var target processTarget
	h, err := clients.New(&target)
	require.NoError(t, err)
	defer clients.Delete(h)

	assert.Zero(t, dispatch(h, 64), "no callback set")

	var got uint32
	f := bridge.ProcessFunc(func(frames uint32) int {
		got = frames
		return 7
	})
	target.f.Store(&f)
	assert.Equal(t, 7, dispatch(h, 64))
	assert.Equal(t, uint32(64), got)

	assert.Zero(t, dispatch(0, 64))
	assert.Zero(t, dispatch(h+1, 64))
}

func TestClientOpenTrampoline(t *testing.T) {
	var status uint32
	p := clientOpen(fixture.ClientOpen(), "mistomp-test", optionNoStartServer, &status)
	assert.NotZero(t, p)
	assert.Zero(t, status)
	name, options := fixture.LastClient()
	assert.Equal(t, "mistomp-test", name)
	assert.Equal(t, uint32(optionNoStartServer), options)

	p = clientOpen(fixture.ClientOpen(), "", optionNoStartServer, &status)
	assert.Zero(t, p)
	assert.Equal(t, "Failure|InvalidOption", Status(status).String())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Failure|ServerFailed", Status(0x01|0x10).String())
	assert.Equal(t, "NameNotUnique", Status(0x04).String())
	assert.Equal(t, "0x0", Status(0).String())
}

func TestDirection(t *testing.T) {
	assert.Equal(t, uint64(portIsInput), Input.flag())
	assert.Equal(t, uint64(portIsOutput), Output.flag())
	assert.Equal(t, "input", Input.String())
	assert.Equal(t, "output", Output.String())
}

func TestReadStrings(t *testing.T) {
	a := []byte("system:capture_1\x00")
	b := []byte("system:capture_2\x00")
	list := []uintptr{
		uintptr(unsafe.Pointer(&a[0])),
		uintptr(unsafe.Pointer(&b[0])),
		0,
	}
	res, err := readStrings(ptr.Native{}, uintptr(unsafe.Pointer(&list[0])))
	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
	runtime.KeepAlive(list)
	require.NoError(t, err)
	assert.Equal(t, []string{"system:capture_1", "system:capture_2"}, res)
}

func openClient(t *testing.T) *Client {
	if err := Load(); err != nil {
		t.Skipf("skipping: %s", err)
	}
	c, err := Open("mistomp-test")
	if err != nil {
		t.Skipf("skipping, no JACK server: %s", err)
	}
	t.Cleanup(func() { assert.NoError(t, c.Close()) })
	return c
}

func TestClient(t *testing.T) {
	c := openClient(t)
	assert.NotEmpty(t, c.Name())
	assert.NotZero(t, c.SampleRate())
	assert.NotZero(t, c.BlockSize())

	in, err := c.RegisterPort("in", Input)
	require.NoError(t, err)
	out, err := c.RegisterPort("out", Output)
	require.NoError(t, err)
	assert.Equal(t, c.Name()+":in", c.PortName(in))

	_, err = c.PhysicalPorts(Output)
	assert.NoError(t, err)

	require.NoError(t, c.SetProcessCallback(func(frames uint32) int {
		src := ptr.Float32s(c.Buffer(in, frames), int(frames))
		dst := ptr.Float32s(c.Buffer(out, frames), int(frames))
		copy(dst, src)
		return 0
	}))
	require.NoError(t, c.Activate())
	require.NoError(t, c.Connect(c.PortName(out), c.PortName(in)))
	require.NoError(t, c.Connect(c.PortName(out), c.PortName(in)), "already connected")
	require.NoError(t, c.Deactivate())

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Activate(), ErrClosed)
	assert.NoError(t, c.Close())
}
