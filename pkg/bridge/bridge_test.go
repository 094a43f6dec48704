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
	"context"
	"errors"
	"math"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BowmanRA/mistomp/pkg/pinned"
	"github.com/BowmanRA/mistomp/pkg/ptr"
)

const (
	frames = 64

	portIn Port = iota + 1
	portOut
	portOut2
	portDry
	portNil
)

type fakeServer struct {
	bufs  map[Port]*pinned.Floats
	block uint32
	cb    ProcessFunc
}

func newFakeServer(t *testing.T, ports ...Port) *fakeServer {
	s := &fakeServer{bufs: map[Port]*pinned.Floats{}, block: frames}
	for _, p := range ports {
		s.add(t, p)
	}
	return s
}

func (s *fakeServer) add(t *testing.T, p Port) *pinned.Floats {
	// room for oversized blocks
	buf, err := pinned.NewFloats(2 * frames)
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Free() })
	s.bufs[p] = buf
	return buf
}

func (s *fakeServer) Buffer(p Port, _ uint32) unsafe.Pointer {
	if buf, ok := s.bufs[p]; ok {
		return buf.Pointer(0)
	}
	return nil
}

func (s *fakeServer) SampleRate() uint32 { return 48000 }
func (s *fakeServer) BlockSize() uint32  { return s.block }

func (s *fakeServer) SetProcessCallback(f ProcessFunc) error {
	s.cb = f
	return nil
}

func (s *fakeServer) fill(p Port, v float32) {
	for i := range s.bufs[p].Slice() {
		s.bufs[p].Slice()[i] = v
	}
}

func (s *fakeServer) samples(p Port) []float32 {
	return s.bufs[p].Slice()[:frames]
}

// gainProcessor copies its input port 0 to its output port 1, scaled by gain.
type gainProcessor struct {
	gain     float32
	ports    [4]unsafe.Pointer
	connects int
	runs     int
	panicked any
	err      error
}

func (p *gainProcessor) Connect(port uint32, data unsafe.Pointer) error {
	if port >= uint32(len(p.ports)) {
		return errors.New("port out of range")
	}
	p.connects++
	p.ports[port] = data
	return nil
}

func (p *gainProcessor) Run(n uint32) error {
	p.runs++
	if p.panicked != nil {
		panic(p.panicked)
	}
	if p.err != nil {
		return p.err
	}
	in := ptr.Float32s(p.ports[0], int(n))
	out := ptr.Float32s(p.ports[1], int(n))
	for i := range out {
		out[i] = in[i] * p.gain
	}
	return nil
}

func simpleConfig(gain float32) Config {
	return Config{
		Inputs:  []InputBinding{{Port: portIn, PluginPort: 0}},
		Outputs: []OutputBinding{{Port: portOut, PluginPort: 1, Gain: gain}},
	}
}

func TestProcess(t *testing.T) {
	server := newFakeServer(t, portIn, portOut)
	proc := &gainProcessor{gain: 2}
	b, err := New(server, proc, simpleConfig(0.25))
	require.NoError(t, err)
	defer b.Close()

	for i := range server.samples(portIn) {
		server.samples(portIn)[i] = float32(i)
	}
	assert.Zero(t, b.Process(frames))
	for i, v := range server.samples(portOut) {
		assert.Equal(t, float32(i)*2*0.25, v)
	}
	s := b.Stats()
	assert.Equal(t, uint64(1), s.Blocks)
	assert.Zero(t, s.Failures)
	assert.Nil(t, s.LastFailure)
}

func TestProcessPanicIsSilenced(t *testing.T) {
	server := newFakeServer(t, portIn, portOut)
	proc := &gainProcessor{gain: 1, panicked: "boom"}
	b, err := New(server, proc, simpleConfig(1))
	require.NoError(t, err)
	defer b.Close()

	server.fill(portIn, 1)
	server.fill(portOut, 1)
	assert.NotPanics(t, func() {
		assert.Zero(t, b.Process(frames))
	})
	for _, v := range server.samples(portOut) {
		require.Zero(t, v)
	}

	s := b.Stats()
	assert.Zero(t, s.Blocks)
	assert.Equal(t, uint64(1), s.Failures)
	require.NotNil(t, s.LastFailure)
	assert.Equal(t, FailurePanic, s.LastFailure.Kind)
	assert.Equal(t, "boom", s.LastFailure.Panic)
	assert.Contains(t, s.LastFailure.String(), "panic")

	// no retries, every block fails on its own
	assert.Zero(t, b.Process(frames))
	assert.Equal(t, 2, proc.runs)
	assert.Equal(t, uint64(2), b.Stats().Failures)
}

func TestProcessRunErrorIsSilenced(t *testing.T) {
	server := newFakeServer(t, portIn, portOut, portDry, portOut2)
	proc := &gainProcessor{gain: 1, err: errors.New("not active")}
	cfg := simpleConfig(1)
	cfg.Sends = []Send{{From: portDry, To: portOut2, Gain: 1}}
	b, err := New(server, proc, cfg)
	require.NoError(t, err)
	defer b.Close()

	server.fill(portOut, 1)
	server.fill(portOut2, 1)
	assert.Zero(t, b.Process(frames))
	for i := range server.samples(portOut) {
		require.Zero(t, server.samples(portOut)[i])
		require.Zero(t, server.samples(portOut2)[i])
	}
	last := b.Stats().LastFailure
	require.NotNil(t, last)
	assert.Equal(t, FailureRun, last.Kind)
	assert.EqualError(t, last.Err, "not active")
}

func TestProcessNilBuffer(t *testing.T) {
	server := newFakeServer(t, portOut)
	proc := &gainProcessor{gain: 1}
	b, err := New(server, proc, Config{
		Inputs:  []InputBinding{{Port: portNil, PluginPort: 0}},
		Outputs: []OutputBinding{{Port: portOut, PluginPort: 1, Gain: 1}},
	})
	require.NoError(t, err)
	defer b.Close()

	server.fill(portOut, 1)
	assert.Zero(t, b.Process(frames))
	assert.Zero(t, proc.runs)
	assert.Equal(t, FailureBuffer, b.Stats().LastFailure.Kind)
	for _, v := range server.samples(portOut) {
		require.Zero(t, v, "outputs are fetched again to be silenced")
	}
}

func TestProcessNilOutputSilencesTheOthers(t *testing.T) {
	server := newFakeServer(t, portIn, portOut, portOut2, portDry)
	proc := &gainProcessor{gain: 1}
	b, err := New(server, proc, Config{
		Inputs: []InputBinding{{Port: portIn, PluginPort: 0}},
		Outputs: []OutputBinding{
			{Port: portOut, PluginPort: 1, Gain: 1},
			{Port: portNil, PluginPort: 2, Gain: 1},
			{Port: portOut2, PluginPort: 3, Gain: 1},
		},
		Sends: []Send{{From: portIn, To: portDry, Gain: 1}},
	})
	require.NoError(t, err)
	defer b.Close()

	server.fill(portIn, 1)
	server.fill(portOut, 0.7)
	server.fill(portOut2, 0.7)
	server.fill(portDry, 0.7)
	assert.Zero(t, b.Process(frames))
	assert.Zero(t, proc.runs)
	assert.Equal(t, uint64(1), b.Stats().Failures)
	assert.Equal(t, FailureBuffer, b.Stats().LastFailure.Kind)
	for _, p := range []Port{portOut, portOut2, portDry} {
		for _, v := range server.samples(p) {
			require.Zero(t, v, "port %d", p)
		}
	}
}

func TestConnectPolicy(t *testing.T) {
	t.Run("every_block", func(t *testing.T) {
		server := newFakeServer(t, portIn, portOut)
		proc := &gainProcessor{gain: 1}
		b, err := New(server, proc, simpleConfig(1))
		require.NoError(t, err)
		defer b.Close()
		for i := 0; i < 3; i++ {
			b.Process(frames)
		}
		assert.Equal(t, 6, proc.connects)
	})

	t.Run("once", func(t *testing.T) {
		server := newFakeServer(t, portIn, portOut)
		proc := &gainProcessor{gain: 1}
		cfg := simpleConfig(1)
		cfg.Policy = ConnectOnce
		b, err := New(server, proc, cfg)
		require.NoError(t, err)
		defer b.Close()
		for i := 0; i < 3; i++ {
			b.Process(frames)
		}
		assert.Equal(t, 2, proc.connects)

		// the input buffer moves, only that port is connected again
		moved := server.add(t, portIn)
		moved.Slice()[0] = 3
		b.Process(frames)
		assert.Equal(t, 3, proc.connects)
		assert.Equal(t, moved.Pointer(0), proc.ports[0])
		assert.Equal(t, float32(3), server.samples(portOut)[0])
	})
}

func TestSecondaryOutputsAndSends(t *testing.T) {
	server := newFakeServer(t, portIn, portOut, portOut2, portDry)
	proc := &gainProcessor{gain: 1}
	b, err := New(server, proc, Config{
		Inputs: []InputBinding{{Port: portIn, PluginPort: 0}},
		Outputs: []OutputBinding{
			{Port: portOut, PluginPort: 1, Gain: 1},
			{Port: portOut2, PluginPort: 1, Gain: 0.01},
		},
		Sends: []Send{{From: portIn, To: portDry, Gain: 0.5}},
	})
	require.NoError(t, err)
	defer b.Close()

	server.fill(portIn, 2)
	assert.Zero(t, b.Process(frames))
	assert.Equal(t, 2, proc.connects, "shared plugin port is connected once")
	for i := 0; i < frames; i++ {
		assert.Equal(t, float32(2), server.samples(portOut)[i])
		assert.InDelta(t, 0.02, server.samples(portOut2)[i], 1e-7)
		assert.Equal(t, float32(1), server.samples(portDry)[i])
	}
}

func TestScratchPorts(t *testing.T) {
	server := newFakeServer(t, portIn, portOut)
	proc := &gainProcessor{gain: 1}
	cfg := simpleConfig(1)
	cfg.Scratch = []uint32{2, 3}
	cfg.Policy = ConnectOnce
	b, err := New(server, proc, cfg)
	require.NoError(t, err)

	assert.Zero(t, b.Process(frames))
	assert.NotNil(t, proc.ports[2])
	assert.NotNil(t, proc.ports[3])
	assert.NotEqual(t, proc.ports[2], proc.ports[3])
	assert.Equal(t, 4, proc.connects)

	server.fill(portOut, 1)
	assert.Zero(t, b.Process(frames+1))
	assert.Equal(t, FailureBlockSize, b.Stats().LastFailure.Kind)
	assert.Equal(t, 1, proc.runs)
	assert.Zero(t, server.samples(portOut)[0])

	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}

func TestNewErrors(t *testing.T) {
	server := newFakeServer(t, portIn, portOut)
	proc := &gainProcessor{}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"negative_gain", simpleConfig(-1)},
		{"nan_gain", simpleConfig(float32(math.NaN()))},
		{"inf_send", Config{Sends: []Send{{From: portIn, To: portOut, Gain: float32(math.Inf(1))}}}},
		{"duplicate_input", Config{Inputs: []InputBinding{{portIn, 0}, {portOut, 0}}}},
		{"input_and_output", Config{
			Inputs:  []InputBinding{{portIn, 0}},
			Outputs: []OutputBinding{{portOut, 0, 1}},
		}},
		{"scratch_and_input", Config{Inputs: []InputBinding{{portIn, 0}}, Scratch: []uint32{0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(server, proc, tt.cfg)
			assert.Error(t, err)
		})
	}

	_, err := New(nil, proc, simpleConfig(1))
	assert.Error(t, err)
	_, err = New(server, nil, simpleConfig(1))
	assert.Error(t, err)

	server.block = 0
	cfg := simpleConfig(1)
	cfg.Scratch = []uint32{2}
	_, err = New(server, proc, cfg)
	assert.ErrorContains(t, err, "maximum block size")
}

func TestAttach(t *testing.T) {
	server := newFakeServer(t, portIn, portOut)
	b, err := New(server, &gainProcessor{gain: 1}, simpleConfig(1))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Attach())
	require.NotNil(t, server.cb)
	assert.Zero(t, server.cb(frames))
	assert.Equal(t, uint64(1), b.Stats().Blocks)
}

func TestProcessDoesNotAllocate(t *testing.T) {
	server := newFakeServer(t, portIn, portOut, portOut2, portDry)
	b, err := New(server, &gainProcessor{gain: 1}, Config{
		Inputs: []InputBinding{{Port: portIn, PluginPort: 0}},
		Outputs: []OutputBinding{
			{Port: portOut, PluginPort: 1, Gain: 0.5},
			{Port: portOut2, PluginPort: 1, Gain: 1},
		},
		Sends:   []Send{{From: portIn, To: portDry, Gain: 0.5}},
		Scratch: []uint32{2},
	})
	require.NoError(t, err)
	defer b.Close()

	allocs := testing.AllocsPerRun(100, func() {
		b.Process(frames)
	})
	assert.Zero(t, allocs)
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []ConnectPolicy{ConnectEveryBlock, ConnectOnce} {
		parsed, err := ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, ConnectEveryBlock, p)
	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}

func TestMonitor(t *testing.T) {
	server := newFakeServer(t, portIn, portOut)
	proc := &gainProcessor{gain: 1, panicked: "boom"}
	b, err := New(server, proc, simpleConfig(1))
	require.NoError(t, err)
	defer b.Close()

	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	assert.Zero(t, b.report(logger, 0))
	assert.Zero(t, logs.Len(), "nothing to report")

	b.Process(frames)
	b.Process(frames)
	assert.Equal(t, uint64(2), b.report(logger, 0))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "audio blocks replaced by silence", entry.Message)
	assert.Equal(t, uint64(2), entry.ContextMap()["new"])

	assert.Equal(t, uint64(2), b.report(logger, 2))
	assert.Equal(t, 1, logs.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Monitor(ctx, logger, time.Millisecond)
		close(done)
	}()
	assert.Eventually(t, func() bool { return logs.Len() == 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
