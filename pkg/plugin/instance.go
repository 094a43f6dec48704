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

// Package plugin manages the lifecycle of a single LADSPA plugin instance.
//
// The LADSPA ABI mandates the call order instantiate, connect_port,
// activate, run, deactivate, cleanup. An Instance tracks its lifecycle with
// a state machine on the setup goroutine and refuses calls made out of
// order. Connect and Run are safe to call from a real-time thread: they do
// not allocate, lock or log.
package plugin

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/felixgeelhaar/statekit"

	"github.com/BowmanRA/mistomp/pkg/ladspa"
	"github.com/BowmanRA/mistomp/pkg/pinned"
)

// ErrNotControlInput is returned when writing a value to a port that is not
// a control input.
var ErrNotControlInput = errors.New("port is not a control input")

// Owner keeps the module of a plugin loaded while instances are alive.
// *loader.Library implements it.
type Owner interface {
	Retain() error
	Release()
}

// Instance is a live instance of a LADSPA plugin.
type Instance struct {
	desc       *ladspa.Descriptor
	fns        ladspa.FunctionTable
	owner      Owner
	handle     uintptr
	sampleRate uint32

	// one pinned slot per port, only the control ones are connected
	controls  *pinned.Floats
	connected []atomic.Bool

	interp *statekit.Interpreter[lifecycle]
	// runnable is read by Run on the real-time thread. A plugin without
	// an activate function stays runnable from instantiation to cleanup.
	runnable     atomic.Bool
	alwaysActive bool
	activations  int
}

// Instantiate creates an instance of the plugin described by d. The owner,
// if non-nil, is retained until Cleanup.
//
// Every control port is connected to host storage that stays at a fixed
// address for the whole life of the instance, and control inputs are set
// to the defaults declared by their range hints. Audio ports are left
// unconnected.
//
// A plugin that provides no activate function can run as soon as it is
// instantiated.
func Instantiate(owner Owner, d *ladspa.Descriptor, sampleRate uint32) (*Instance, error) {
	if d == nil {
		return nil, errors.New("nil plugin descriptor")
	}
	if err := checkFunctions(d); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", d, err)
	}
	if sampleRate == 0 {
		return nil, errors.New("sample rate must be positive")
	}

	controls, err := pinned.NewFloats(int(d.PortCount))
	if err != nil {
		return nil, fmt.Errorf("allocating control storage: %w", err)
	}
	if owner != nil {
		if err := owner.Retain(); err != nil {
			_ = controls.Free()
			return nil, err
		}
	}
	release := func() {
		_ = controls.Free()
		if owner != nil {
			owner.Release()
		}
	}

	inst := &Instance{
		desc:       d,
		fns:        d.Functions,
		owner:      owner,
		sampleRate: sampleRate,
		controls:   controls,
		connected:  make([]atomic.Bool, d.PortCount),
	}
	inst.interp, err = buildLifecycle(inst)
	if err != nil {
		release()
		return nil, err
	}

	inst.handle = callInstantiate(inst.fns.Instantiate, d.Address, sampleRate)
	if inst.handle == 0 {
		inst.interp.Stop()
		release()
		return nil, fmt.Errorf("%w: %s returned a null handle", ladspa.ErrInstantiation, d)
	}

	for _, p := range d.Ports() {
		if p.Kind != ladspa.KindControl {
			continue
		}
		if v, ok := p.Hint.Default(sampleRate); ok && p.Direction == ladspa.DirectionInput {
			controls.Slice()[p.Index] = v
		}
		callConnectPort(inst.fns.ConnectPort, inst.handle, p.Index, controls.Pointer(int(p.Index)))
		inst.connected[p.Index].Store(true)
	}
	if inst.fns.Activate == 0 {
		inst.alwaysActive = true
		inst.runnable.Store(true)
	}
	return inst, nil
}

func checkFunctions(d *ladspa.Descriptor) error {
	var missing []string
	if d.Functions.Instantiate == 0 {
		missing = append(missing, ladspa.FieldInstantiate.String())
	}
	if d.Functions.ConnectPort == 0 {
		missing = append(missing, ladspa.FieldConnectPort.String())
	}
	if d.Functions.Run == 0 {
		missing = append(missing, ladspa.FieldRun.String())
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s does not provide %v", ladspa.ErrUnsupportedPlugin, d, missing)
	}
	return nil
}

// Descriptor returns the descriptor the instance was created from.
func (i *Instance) Descriptor() *ladspa.Descriptor {
	return i.desc
}

// SampleRate returns the sample rate the instance was created with.
func (i *Instance) SampleRate() uint32 {
	return i.sampleRate
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	return State(i.interp.State().Value)
}

// Activations returns how many times the instance has been activated.
func (i *Instance) Activations() int {
	return i.activations
}

// Connect connects a port to a data location. The location must not be
// managed by the Go garbage collector, and must stay valid until the port
// is connected elsewhere or the instance is cleaned up.
func (i *Instance) Connect(port uint32, data unsafe.Pointer) error {
	if i.handle == 0 {
		return ladspa.ErrInvalidState
	}
	if port >= i.desc.PortCount {
		return ladspa.ErrPortRange
	}
	callConnectPort(i.fns.ConnectPort, i.handle, port, data)
	i.connected[port].Store(true)
	return nil
}

// Unconnected returns the ports that were never connected. It is safe to
// call while Connect runs on another thread.
func (i *Instance) Unconnected() []uint32 {
	var res []uint32
	for p := range i.connected {
		if !i.connected[p].Load() {
			res = append(res, uint32(p))
		}
	}
	return res
}

func (i *Instance) controlInput(port uint32) error {
	if i.handle == 0 {
		return ladspa.ErrInvalidState
	}
	if port >= i.desc.PortCount {
		return fmt.Errorf("%w: %d", ladspa.ErrPortRange, port)
	}
	if !i.desc.Port(port).IsControlInput() {
		return fmt.Errorf("%w: %d", ErrNotControlInput, port)
	}
	return nil
}

// SetControl writes the value of a control input. The plugin observes the
// value on its next run.
func (i *Instance) SetControl(port uint32, v float32) error {
	if err := i.controlInput(port); err != nil {
		return err
	}
	i.controls.Slice()[port] = v
	return nil
}

// SetControlByName is the same as SetControl, but selects the port by name
// ignoring case.
func (i *Instance) SetControlByName(name string, v float32) error {
	p, ok := i.desc.PortByName(name)
	if !ok {
		return fmt.Errorf("%w: no port named %q", ladspa.ErrPortRange, name)
	}
	return i.SetControl(p.Index, v)
}

// SetControlDefaults writes several control inputs at once. Nothing is
// written if any of the ports is not a control input.
func (i *Instance) SetControlDefaults(values map[uint32]float32) error {
	for port := range values {
		if err := i.controlInput(port); err != nil {
			return err
		}
	}
	for port, v := range values {
		i.controls.Slice()[port] = v
	}
	return nil
}

// Control returns the current value of a control port, either an input or
// an output.
func (i *Instance) Control(port uint32) (float32, error) {
	if i.handle == 0 {
		return 0, ladspa.ErrInvalidState
	}
	if port >= i.desc.PortCount {
		return 0, fmt.Errorf("%w: %d", ladspa.ErrPortRange, port)
	}
	if i.desc.Port(port).Kind != ladspa.KindControl {
		return 0, fmt.Errorf("port %d is not a control port", port)
	}
	return i.controls.Slice()[port], nil
}

// send fires a lifecycle event and reports whether the machine accepted it.
func (i *Instance) send(event string) error {
	from := i.State()
	i.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	if i.State() == from {
		return fmt.Errorf("%w: cannot handle %s in state %s", ladspa.ErrInvalidState, event, from)
	}
	return nil
}

func (i *Instance) expect(event string, states ...State) error {
	cur := i.State()
	for _, s := range states {
		if cur == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot handle %s in state %s", ladspa.ErrInvalidState, event, cur)
}

// Activate prepares the instance to run. For a plugin without an activate
// function it only moves the lifecycle to StateActive.
func (i *Instance) Activate() error {
	if err := i.expect(EventActivate, StateInstantiated, StateInactive); err != nil {
		return err
	}
	if i.fns.Activate != 0 {
		callHandle(i.fns.Activate, i.handle)
	}
	if err := i.send(EventActivate); err != nil {
		return err
	}
	i.runnable.Store(true)
	return nil
}

// Run processes a block of frames. It fails with ladspa.ErrInvalidState
// unless the instance is active, or has no activate function and was not
// cleaned up.
func (i *Instance) Run(frames uint32) error {
	if !i.runnable.Load() {
		return ladspa.ErrInvalidState
	}
	callRun(i.fns.Run, i.handle, frames)
	return nil
}

// RunAdding is the same as Run, but the plugin adds its output to the
// output buffers, scaled by the gain set with SetRunAddingGain.
func (i *Instance) RunAdding(frames uint32) error {
	if i.fns.RunAdding == 0 {
		return ladspa.ErrUnsupportedPlugin
	}
	if !i.runnable.Load() {
		return ladspa.ErrInvalidState
	}
	callRun(i.fns.RunAdding, i.handle, frames)
	return nil
}

// SetRunAddingGain sets the gain applied by RunAdding.
func (i *Instance) SetRunAddingGain(gain float32) error {
	if i.fns.SetRunAddingGain == 0 {
		return ladspa.ErrUnsupportedPlugin
	}
	if i.handle == 0 {
		return ladspa.ErrInvalidState
	}
	callSetGain(i.fns.SetRunAddingGain, i.handle, gain)
	return nil
}

// Deactivate stops the instance. It can be activated again later.
func (i *Instance) Deactivate() error {
	if err := i.expect(EventDeactivate, StateActive); err != nil {
		return err
	}
	if !i.alwaysActive {
		i.runnable.Store(false)
	}
	if i.fns.Deactivate != 0 {
		callHandle(i.fns.Deactivate, i.handle)
	}
	return i.send(EventDeactivate)
}

// Cleanup destroys the instance, deactivating it first if needed, and
// releases its owner. No other method can be used afterwards.
func (i *Instance) Cleanup() error {
	if err := i.expect(EventCleanup, StateInstantiated, StateActive, StateInactive); err != nil {
		return err
	}
	if i.State() == StateActive {
		if err := i.Deactivate(); err != nil {
			return err
		}
	}
	i.runnable.Store(false)
	if i.fns.Cleanup != 0 {
		callHandle(i.fns.Cleanup, i.handle)
	}
	i.handle = 0
	err := errors.Join(i.send(EventCleanup), i.controls.Free())
	if i.owner != nil {
		i.owner.Release()
	}
	return err
}
